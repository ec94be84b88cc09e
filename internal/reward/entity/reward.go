package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format of the validity window.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of a reward.
type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusExpired   Status = "expired"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusExpired, StatusActive, StatusInactive:
		return true
	}
	return false
}

// Reward is one catalog row as stored in the rewards collection.
type Reward struct {
	ID               string   `json:"-"`
	Brand            string   `json:"brand"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	PointCost        int      `json:"pointCost"`
	ClaimCap         int      `json:"claimCap"`
	Status           Status   `json:"status"`
	ValidFrom        string   `json:"validFrom"`
	ValidTo          string   `json:"validTo"`
	Details          []string `json:"details"`
	ClaimSteps       []string `json:"claimSteps"`
	PreviewImage     string   `json:"previewImage"`
	FullImage        string   `json:"fullImage"`
	PreviewImageGrey string   `json:"previewImageGrey"`
	FullImageGrey    string   `json:"fullImageGrey"`
	Likes            int      `json:"likes"`
	Dislikes         int      `json:"dislikes"`
}

// Stats are the aggregate counters shown above the reward list.
type Stats struct {
	Total     int `json:"total"`
	Claimed   int `json:"claimed"`
	Unclaimed int `json:"unclaimed"`
	Expiring  int `json:"expiring"`
}

var ErrInvalidReward = errors.New("invalid reward")

// Validate checks the invariants of a reward before it is written.
func (r *Reward) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(r.Brand) == "" {
		problems = append(problems, "brand is required")
	}
	if r.PointCost < 0 {
		problems = append(problems, "pointCost must not be negative")
	}
	if r.ClaimCap < 1 {
		problems = append(problems, "claimCap must be at least 1")
	}
	if !r.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", r.Status))
	}
	if r.Likes < 0 || r.Dislikes < 0 {
		problems = append(problems, "likes and dislikes must not be negative")
	}
	from, errFrom := time.Parse(DateLayout, r.ValidFrom)
	to, errTo := time.Parse(DateLayout, r.ValidTo)
	switch {
	case errFrom != nil:
		problems = append(problems, "validFrom must be YYYY-MM-DD")
	case errTo != nil:
		problems = append(problems, "validTo must be YYYY-MM-DD")
	case to.Before(from):
		problems = append(problems, "validFrom must not be after validTo")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidReward, strings.Join(problems, "; "))
	}
	return nil
}
