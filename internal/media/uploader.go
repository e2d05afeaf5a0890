// Package media uploads post images to Firebase Storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var (
	ErrUploadFailed     = errors.New("image upload failed")
	ErrUnsupportedMedia = errors.New("only image uploads are supported")
)

// Uploader stores an image for a post and returns its public download URL.
type Uploader interface {
	Upload(ctx context.Context, postID string, r io.Reader, contentType string) (string, error)
}

// BucketProvider is satisfied by the Firebase Admin storage client.
type BucketProvider interface {
	Bucket(name string) (*gcs.BucketHandle, error)
}

// StorageUploader writes objects into a Firebase Storage bucket.
type StorageUploader struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewStorageUploader creates a new StorageUploader
func NewStorageUploader(client BucketProvider, bucketName string) (*StorageUploader, error) {
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketName, err)
	}
	return &StorageUploader{bucket: bucket, bucketName: bucketName}, nil
}

// ObjectName is where the image of a post is stored.
func ObjectName(postID string) string {
	return "images/" + postID
}

// Upload streams r into the bucket. The object gets a download token so the
// returned URL works without credentials.
func (u *StorageUploader) Upload(ctx context.Context, postID string, r io.Reader, contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrUnsupportedMedia
	}
	name := ObjectName(postID)
	token := uuid.NewString()

	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return DownloadURL(u.bucketName, name, token), nil
}

// DownloadURL builds the Firebase Storage download URL of an object.
func DownloadURL(bucket, object, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(object), url.QueryEscape(token))
}
