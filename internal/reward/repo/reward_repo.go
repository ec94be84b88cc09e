package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward/entity"
)

// RewardRepo provides data access for the rewards collection.
type RewardRepo struct {
	store docstore.Store
}

func NewRewardRepo(s docstore.Store) *RewardRepo { return &RewardRepo{store: s} }

// Create inserts a reward and returns its generated id.
func (r *RewardRepo) Create(ctx context.Context, rw *entity.Reward) (string, error) {
	id, err := r.store.Insert(ctx, docstore.CollectionRewards, rw)
	if err != nil {
		return "", err
	}
	rw.ID = id
	return id, nil
}

// Replace writes every field of rw over the stored document.
func (r *RewardRepo) Replace(ctx context.Context, rw *entity.Reward) error {
	raw, err := json.Marshal(rw)
	if err != nil {
		return err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	return r.store.Update(ctx, docstore.CollectionRewards, rw.ID, fields)
}

// GetByID returns a reward or docstore.ErrNotFound.
func (r *RewardRepo) GetByID(ctx context.Context, id string) (*entity.Reward, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionRewards, id)
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// Page returns up to limit rewards in insertion order after the cursor,
// with the cursor of every returned reward.
func (r *RewardRepo) Page(ctx context.Context, limit int, after docstore.Cursor) ([]entity.Reward, []docstore.Cursor, error) {
	res, err := r.store.Query(ctx, docstore.CollectionRewards, docstore.Query{Limit: limit, StartAfter: after})
	if err != nil {
		return nil, nil, err
	}
	rewards := make([]entity.Reward, 0, len(res.Documents))
	cursors := make([]docstore.Cursor, 0, len(res.Documents))
	for _, doc := range res.Documents {
		rw, err := decode(doc)
		if err != nil {
			return nil, nil, err
		}
		rewards = append(rewards, *rw)
		cursors = append(cursors, doc.Cursor)
	}
	return rewards, cursors, nil
}

// Count counts rewards matching filters.
func (r *RewardRepo) Count(ctx context.Context, filters ...docstore.Filter) (int, error) {
	return r.store.Count(ctx, docstore.CollectionRewards, filters...)
}

func decode(doc docstore.Document) (*entity.Reward, error) {
	var rw entity.Reward
	if err := doc.Decode(&rw); err != nil {
		return nil, fmt.Errorf("reward: %w", err)
	}
	rw.ID = doc.ID
	return &rw, nil
}
