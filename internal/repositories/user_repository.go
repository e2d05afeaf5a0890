package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// UserRepository defines the interface for user profile reads
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (*models.User, error)
	GetName(ctx context.Context, uid string) (string, error)
}

// StoreUserRepository implements UserRepository on the tree store
type StoreUserRepository struct {
	store store.Store
}

// NewStoreUserRepository creates a new StoreUserRepository
func NewStoreUserRepository(s store.Store) *StoreUserRepository {
	return &StoreUserRepository{store: s}
}

// GetUser returns an empty profile when none was saved yet
func (r *StoreUserRepository) GetUser(ctx context.Context, uid string) (*models.User, error) {
	snap, err := r.store.Get(ctx, UserPath(uid))
	if err != nil {
		return nil, err
	}
	var user models.User
	if snap.Exists() {
		if err := snap.Unmarshal(&user); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", uid, err)
		}
	}
	return &user, nil
}

func (r *StoreUserRepository) GetName(ctx context.Context, uid string) (string, error) {
	snap, err := r.store.Get(ctx, UserNamePath(uid))
	if err != nil {
		return "", err
	}
	name, _ := snap.Value.(string)
	return name, nil
}
