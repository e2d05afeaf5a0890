package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated        = errors.New("sign in required")
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrSelfFollow             = fmt.Errorf("%w: you cannot follow yourself", ErrInvalidOperation)
	ErrNotPostOwner           = fmt.Errorf("%w: only the creator can change this post", ErrInvalidOperation)
	ErrForeignPostIndex       = fmt.Errorf("%w: post index belongs to another user", ErrInvalidOperation)
	ErrPostNotFound           = errors.New("post not found")
	ErrAuthoredPostsNotLoaded = errors.New("authored posts not loaded yet")
	ErrUpvoteStateChanged     = errors.New("upvote state changed, reload and retry")
)

// WriteError is returned when the store rejects a fan-out write. The write is
// not retried.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
