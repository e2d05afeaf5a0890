package models

// User is the record stored at users/{uid}.
type User struct {
	Name    string `json:"name,omitempty"`
	AboutMe string `json:"aboutMe,omitempty"`
}

// UpdateProfileRequest defines the request body for the settings screen.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	AboutMe *string `json:"aboutMe,omitempty" validate:"omitempty,max=280"`
}
