package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/organization/entity"
)

// OrganizationRepo reads and writes profiles and member grants.
type OrganizationRepo struct {
	store docstore.Store
}

func NewOrganizationRepo(s docstore.Store) *OrganizationRepo { return &OrganizationRepo{store: s} }

// FindProfile returns the profile of ownerUID or docstore.ErrNotFound.
func (r *OrganizationRepo) FindProfile(ctx context.Context, ownerUID string) (*entity.Profile, error) {
	res, err := r.store.Query(ctx, docstore.CollectionOrganizationProfiles, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("ownerUid", ownerUID)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, docstore.ErrNotFound
	}
	var p entity.Profile
	if err := res.Documents[0].Decode(&p); err != nil {
		return nil, fmt.Errorf("organization profile: %w", err)
	}
	p.ID = res.Documents[0].ID
	return &p, nil
}

func (r *OrganizationRepo) CreateProfile(ctx context.Context, p *entity.Profile) error {
	id, err := r.store.Insert(ctx, docstore.CollectionOrganizationProfiles, p)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *OrganizationRepo) UpdateProfile(ctx context.Context, id string, fields map[string]any) error {
	return r.store.Update(ctx, docstore.CollectionOrganizationProfiles, id, fields)
}

func (r *OrganizationRepo) AddMember(ctx context.Context, m *entity.Member) error {
	id, err := r.store.Insert(ctx, docstore.CollectionOrganizationMembers, m)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// Members returns the grants of ownerUID, optionally narrowed to one email,
// in grant order.
func (r *OrganizationRepo) Members(ctx context.Context, ownerUID, email string) ([]entity.Member, error) {
	filters := []docstore.Filter{docstore.Eq("ownerId", ownerUID)}
	if email != "" {
		filters = append(filters, docstore.Eq("email", email))
	}
	res, err := r.store.Query(ctx, docstore.CollectionOrganizationMembers, docstore.Query{Filters: filters})
	if err != nil {
		return nil, err
	}
	out := make([]entity.Member, 0, len(res.Documents))
	for _, doc := range res.Documents {
		var m entity.Member
		if err := doc.Decode(&m); err != nil {
			return nil, fmt.Errorf("organization member: %w", err)
		}
		m.ID = doc.ID
		out = append(out, m)
	}
	return out, nil
}
