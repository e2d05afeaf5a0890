package media

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadURL(t *testing.T) {
	got := DownloadURL("demo.appspot.com", ObjectName("post1"), "tok-1")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/demo.appspot.com/o/images%2Fpost1?alt=media&token=tok-1", got)
}

func TestUploadRejectsNonImages(t *testing.T) {
	u := &StorageUploader{bucketName: "demo"}
	_, err := u.Upload(context.Background(), "p1", strings.NewReader("x"), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}
