package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward/entity"
	rewardrepo "github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward/repo"
)

var ErrNotFound = errors.New("reward not found")

// Service owns the rewards catalog. It is the PageFetcher and StatsSource
// behind a ListSession.
type Service struct {
	repo   *rewardrepo.RewardRepo
	logger *zap.SugaredLogger
	// ExpiringWithin is the window, from today, in which a validTo date
	// counts as expiring.
	ExpiringWithin time.Duration
	now            func() time.Time
}

func NewService(store docstore.Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		repo:           rewardrepo.NewRewardRepo(store),
		logger:         logger,
		ExpiringWithin: 7 * 24 * time.Hour,
		now:            time.Now,
	}
}

// Create validates and inserts a reward from the admin form.
func (s *Service) Create(ctx context.Context, rw *entity.Reward) (*entity.Reward, error) {
	if err := rw.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.Create(ctx, rw); err != nil {
		s.logger.Errorw("create reward failed", "err", err)
		return nil, fmt.Errorf("create reward: %w", err)
	}
	return rw, nil
}

// Replace is the edit-mode save: the stored reward is overwritten with rw.
func (s *Service) Replace(ctx context.Context, id string, rw *entity.Reward) (*entity.Reward, error) {
	if err := rw.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rw.ID = id
	if err := s.repo.Replace(ctx, rw); err != nil {
		s.logger.Errorw("replace reward failed", "id", id, "err", err)
		return nil, fmt.Errorf("replace reward: %w", err)
	}
	return rw, nil
}

// Get returns one reward.
func (s *Service) Get(ctx context.Context, id string) (*entity.Reward, error) {
	rw, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rw, nil
}

// FetchPage returns up to pageSize rewards after the cursor. One extra
// record is requested so HasMore is exact.
func (s *Service) FetchPage(ctx context.Context, pageSize int, after docstore.Cursor) (Page, error) {
	if pageSize <= 0 {
		return Page{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	rewards, cursors, err := s.repo.Page(ctx, pageSize+1, after)
	if err != nil {
		return Page{}, err
	}
	page := Page{Records: rewards}
	if len(rewards) > pageSize {
		page.Records = rewards[:pageSize]
		page.NextCursor = cursors[pageSize-1]
		page.HasMore = true
	}
	return page, nil
}

// Stats counts the catalog. The three counts are independent queries and
// run concurrently.
func (s *Service) Stats(ctx context.Context) (entity.Stats, error) {
	var st entity.Stats
	today := s.now()
	from := today.Format(entity.DateLayout)
	to := today.Add(s.ExpiringWithin).Format(entity.DateLayout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx)
		st.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.Count(gctx, docstore.Eq("status", string(entity.StatusClaimed)))
		st.Claimed = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.Count(gctx,
			docstore.Filter{Field: "validTo", Op: docstore.OpGte, Value: from},
			docstore.Filter{Field: "validTo", Op: docstore.OpLte, Value: to})
		st.Expiring = n
		return err
	})
	if err := g.Wait(); err != nil {
		return entity.Stats{}, fmt.Errorf("reward stats: %w", err)
	}
	st.Unclaimed = st.Total - st.Claimed
	return st, nil
}
