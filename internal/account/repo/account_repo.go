package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
)

// AccountRepo provides data access for the accounts collection.
type AccountRepo struct {
	store docstore.Store
}

func NewAccountRepo(s docstore.Store) *AccountRepo { return &AccountRepo{store: s} }

// Create inserts a new account document. Returns new ID.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) (string, error) {
	id, err := r.store.Insert(ctx, docstore.CollectionAccounts, a)
	if err != nil {
		return "", err
	}
	a.ID = id
	return id, nil
}

// FindByEmail returns the accounts whose email matches exactly. More than one
// result means the duplicate guard was raced.
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) ([]entity.Account, error) {
	return r.find(ctx, docstore.Eq("email", email))
}

// FindByUID looks an account up by its embedded identifier, not the document id.
func (r *AccountRepo) FindByUID(ctx context.Context, uid string) ([]entity.Account, error) {
	return r.find(ctx, docstore.Eq("uid", uid))
}

// Update writes the given fields onto the account document.
func (r *AccountRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	return r.store.Update(ctx, docstore.CollectionAccounts, id, fields)
}

func (r *AccountRepo) find(ctx context.Context, filters ...docstore.Filter) ([]entity.Account, error) {
	res, err := r.store.Query(ctx, docstore.CollectionAccounts, docstore.Query{Filters: filters})
	if err != nil {
		return nil, err
	}
	out := make([]entity.Account, 0, len(res.Documents))
	for _, doc := range res.Documents {
		var a entity.Account
		if err := doc.Decode(&a); err != nil {
			return nil, fmt.Errorf("account: %w", err)
		}
		a.ID = doc.ID
		out = append(out, a)
	}
	return out, nil
}
