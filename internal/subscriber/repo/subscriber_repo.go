package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/subscriber/entity"
)

type SubscriberRepo struct {
	store docstore.Store
}

func NewSubscriberRepo(s docstore.Store) *SubscriberRepo {
	return &SubscriberRepo{store: s}
}

// uniquer is implemented by stores that can enforce a unique field.
type uniquer interface {
	EnsureUnique(ctx context.Context, collection, field string) error
}

// EnsureIndexes adds the unique email constraint when the store supports it.
func (r *SubscriberRepo) EnsureIndexes(ctx context.Context) error {
	if u, ok := r.store.(uniquer); ok {
		return u.EnsureUnique(ctx, docstore.CollectionSubscriptions, "email")
	}
	return nil
}

// Exists reports whether email is already subscribed.
func (r *SubscriberRepo) Exists(ctx context.Context, email string) (bool, error) {
	n, err := r.store.Count(ctx, docstore.CollectionSubscriptions, docstore.Eq("email", email))
	if err != nil {
		return false, fmt.Errorf("subscriber: %w", err)
	}
	return n > 0, nil
}

func (r *SubscriberRepo) Create(ctx context.Context, s *entity.Subscriber) error {
	id, err := r.store.Insert(ctx, docstore.CollectionSubscriptions, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}
