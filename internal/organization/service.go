package organization

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/organization/entity"
	orgrepo "github.com/ovaphlow/pitchfork/service-rewards-go/internal/organization/repo"
)

// TimeLayout matches the account timestamps.
const TimeLayout = "2006-01-02 15:04:05"

var (
	ErrDuplicateMember = errors.New("member already granted")
	ErrInvalidName     = errors.New("organization name is required")
	ErrInvalidEmail    = errors.New("member email is not valid")
)

// Service manages the organization profile and its member grants.
type Service struct {
	repo   *orgrepo.OrganizationRepo
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store docstore.Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: orgrepo.NewOrganizationRepo(store), logger: logger, now: time.Now}
}

// GetOrCreate returns the profile of ownerUID, creating it with defaultName
// on first access.
func (s *Service) GetOrCreate(ctx context.Context, ownerUID, defaultName string) (*entity.Profile, error) {
	p, err := s.repo.FindProfile(ctx, ownerUID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	p = &entity.Profile{OwnerUID: ownerUID, Name: strings.TrimSpace(defaultName), CreatedAt: s.stamp()}
	if err := s.repo.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			// created concurrently
			return s.repo.FindProfile(ctx, ownerUID)
		}
		return nil, fmt.Errorf("create organization: %w", err)
	}
	s.logger.Infow("organization created", "owner", ownerUID)
	return p, nil
}

// Rename sets the display name of the organization.
func (s *Service) Rename(ctx context.Context, ownerUID, name string) (*entity.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	p, err := s.GetOrCreate(ctx, ownerUID, name)
	if err != nil {
		return nil, err
	}
	if p.Name == name {
		return p, nil
	}
	p.Name, p.UpdatedAt = name, s.stamp()
	if err := s.repo.UpdateProfile(ctx, p.ID, map[string]any{"displayName": p.Name, "updatedAt": p.UpdatedAt}); err != nil {
		return nil, fmt.Errorf("rename organization: %w", err)
	}
	return p, nil
}

// Grant gives email the role in the organization of ownerUID. A second grant
// for the same email is rejected with ErrDuplicateMember.
func (s *Service) Grant(ctx context.Context, ownerUID, email, role, grantedBy string) (*entity.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	r, err := entity.ParseRole(role)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Members(ctx, ownerUID, email)
	if err != nil {
		return nil, fmt.Errorf("check member: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrDuplicateMember
	}
	m := &entity.Member{OwnerUID: ownerUID, Email: email, Role: r, GrantedBy: grantedBy, GrantedAt: s.stamp()}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("grant member: %w", err)
	}
	s.logger.Infow("member granted", "owner", ownerUID, "role", r)
	return m, nil
}

// ListMembers returns the grants of the organization in grant order.
func (s *Service) ListMembers(ctx context.Context, ownerUID string) ([]entity.Member, error) {
	return s.repo.Members(ctx, ownerUID, "")
}

func (s *Service) stamp() string { return s.now().Format(TimeLayout) }
