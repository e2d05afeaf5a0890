package validators

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-feed/backend/internal/models"
)

func TestValidatePostRequest(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(models.CreatePostRequest{Title: "hello"}))

	err := v.Validate(models.CreatePostRequest{Description: "no title"})
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestValidateProfileRequest(t *testing.T) {
	v := NewValidator()
	short := "A"
	assert.Error(t, v.Validate(models.UpdateProfileRequest{Name: &short}))
	assert.NoError(t, v.Validate(models.UpdateProfileRequest{}))
}
