package subscriber

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/subscriber/entity"
	subscriberrepo "github.com/ovaphlow/pitchfork/service-rewards-go/internal/subscriber/repo"
)

var ErrInvalidEmail = errors.New("email address is not valid")

type Service struct {
	repo   *subscriberrepo.SubscriberRepo
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store docstore.Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: subscriberrepo.NewSubscriberRepo(store), logger: logger, now: time.Now}
}

// EnsureIndexes prepares the store for Subscribe.
func (s *Service) EnsureIndexes(ctx context.Context) error { return s.repo.EnsureIndexes(ctx) }

// Subscribe records email unless it is already subscribed. created is false
// for a repeat subscription.
func (s *Service) Subscribe(ctx context.Context, email string) (created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, perr := mail.ParseAddress(email); perr != nil || addr.Address != email {
		return false, ErrInvalidEmail
	}
	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	sub := &entity.Subscriber{Email: email, CreatedAt: s.now().Format("2006-01-02 15:04:05")}
	if err := s.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Debugw("subscribed", "id", sub.ID)
	return true, nil
}
