package reward

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward/entity"
)

// DefaultPageSize is the page size of the reward list.
const DefaultPageSize = 10

var (
	ErrPageOutOfRange = errors.New("page out of range")
	ErrLoadFailed     = errors.New("failed to load")
)

// Page is one fetched page. NextCursor is only set when HasMore is true and
// is only valid for the page that immediately follows.
type Page struct {
	Records    []entity.Reward
	NextCursor docstore.Cursor
	HasMore    bool
}

// PageFetcher fetches one page after a cursor; the zero cursor is page 1.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageSize int, after docstore.Cursor) (Page, error)
}

// StatsSource computes the aggregate counters of the collection.
type StatsSource interface {
	Stats(ctx context.Context) (entity.Stats, error)
}

// State is the load state of a ListSession.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// TotalPages is ceil(total/pageSize), zero for an empty collection.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Filter returns the records whose title, brand or status contains term,
// ignoring case. It only looks at the records given, never the store.
func Filter(records []entity.Reward, term string) []entity.Reward {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]entity.Reward, 0, len(records))
	for _, r := range records {
		if term == "" ||
			strings.Contains(strings.ToLower(r.Title), term) ||
			strings.Contains(strings.ToLower(r.Brand), term) ||
			strings.Contains(strings.ToLower(string(r.Status)), term) {
			out = append(out, r)
		}
	}
	return out
}

// ListOption configures a ListSession.
type ListOption func(*ListSession)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) ListOption {
	return func(s *ListSession) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithCursorMemo remembers the cursor that starts each visited page so later
// jumps resume from the nearest known page. Refresh clears it.
func WithCursorMemo() ListOption {
	return func(s *ListSession) { s.memo = map[int]docstore.Cursor{} }
}

// WithLogger sets the logger used for load failures.
func WithLogger(l *zap.SugaredLogger) ListOption {
	return func(s *ListSession) {
		if l != nil {
			s.logger = l
		}
	}
}

// ListSession is the state of one reward list view: the currently loaded
// page, its position and the aggregate counters. A session is owned by one
// caller and is not safe for concurrent use.
type ListSession struct {
	fetcher  PageFetcher
	stats    StatsSource
	pageSize int
	logger   *zap.SugaredLogger
	memo     map[int]docstore.Cursor

	state   State
	page    int
	records []entity.Reward
	hasMore bool
	next    docstore.Cursor
	summary entity.Stats
	lastErr error

	// retry target after a failed load; zero page means refresh, pendingNext
	// re-issues the fetch after the current page with the carried cursor
	pendingPage  int
	pendingTotal int
	pendingNext  bool
}

func NewListSession(f PageFetcher, st StatsSource, opts ...ListOption) *ListSession {
	s := &ListSession{
		fetcher:  f,
		stats:    st,
		pageSize: DefaultPageSize,
		logger:   zap.NewNop().Sugar(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPage fetches a single page without touching the session state.
func (s *ListSession) FetchPage(ctx context.Context, after docstore.Cursor) (Page, error) {
	return s.fetcher.FetchPage(ctx, s.pageSize, after)
}

// GotoPage loads the 1-indexed page n of a collection of totalCount records.
// Cursors are only valid for the next page, so pages 1..n are fetched in
// sequence and all but the last discarded. If the store runs out of pages
// first, the session stays on the last page reached.
func (s *ListSession) GotoPage(ctx context.Context, n, totalCount int) error {
	if n < 1 || n > TotalPages(totalCount, s.pageSize) {
		return fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, n, TotalPages(totalCount, s.pageSize))
	}
	s.state = StateLoading
	s.pendingPage, s.pendingTotal, s.pendingNext = n, totalCount, false

	start, cursor := 1, docstore.Cursor("")
	if s.memo != nil {
		for p := n; p > 1; p-- {
			if c, ok := s.memo[p]; ok {
				start, cursor = p, c
				break
			}
		}
	}

	var last Page
	reached := 0
	for p := start; p <= n; p++ {
		pg, err := s.fetcher.FetchPage(ctx, s.pageSize, cursor)
		if err != nil {
			return s.fail(err)
		}
		if s.memo != nil {
			s.memo[p] = cursor
		}
		last, reached = pg, p
		if !pg.HasMore {
			break
		}
		cursor = pg.NextCursor
	}
	s.apply(reached, last)
	return nil
}

// NextPage loads the page after the current one using the carried cursor.
func (s *ListSession) NextPage(ctx context.Context) error {
	if s.state != StateLoaded || !s.hasMore {
		return fmt.Errorf("%w: no page after %d", ErrPageOutOfRange, s.page)
	}
	return s.loadNext(ctx)
}

func (s *ListSession) loadNext(ctx context.Context) error {
	s.state = StateLoading
	s.pendingPage, s.pendingTotal, s.pendingNext = s.page+1, 0, true
	pg, err := s.fetcher.FetchPage(ctx, s.pageSize, s.next)
	if err != nil {
		return s.fail(err)
	}
	if s.memo != nil {
		s.memo[s.page+1] = s.next
	}
	s.apply(s.page+1, pg)
	return nil
}

// Refresh goes back to page 1 and reloads the aggregate counters. Both
// requests are independent and issued concurrently.
func (s *ListSession) Refresh(ctx context.Context) error {
	s.state = StateLoading
	s.pendingPage, s.pendingTotal, s.pendingNext = 0, 0, false
	if s.memo != nil {
		s.memo = map[int]docstore.Cursor{}
	}

	var first Page
	var summary entity.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pg, err := s.fetcher.FetchPage(gctx, s.pageSize, "")
		first = pg
		return err
	})
	g.Go(func() error {
		st, err := s.stats.Stats(gctx)
		summary = st
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail(err)
	}
	s.summary = summary
	if s.memo != nil {
		s.memo[1] = ""
	}
	s.apply(1, first)
	return nil
}

// LoadStats reloads only the aggregate counters.
func (s *ListSession) LoadStats(ctx context.Context) (entity.Stats, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		s.logger.Warnw("load reward stats failed", "err", err)
		return s.summary, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	s.summary = st
	return st, nil
}

// Retry repeats the load that failed last.
func (s *ListSession) Retry(ctx context.Context) error {
	if s.state != StateError {
		return nil
	}
	if s.pendingPage == 0 {
		return s.Refresh(ctx)
	}
	if s.pendingNext {
		return s.loadNext(ctx)
	}
	return s.GotoPage(ctx, s.pendingPage, s.pendingTotal)
}

// Visible applies Filter to the loaded page.
func (s *ListSession) Visible(term string) []entity.Reward {
	return Filter(s.records, term)
}

func (s *ListSession) State() State { return s.state }
func (s *ListSession) Page() int { return s.page }
func (s *ListSession) HasMore() bool { return s.hasMore }
func (s *ListSession) Stats() entity.Stats { return s.summary }
func (s *ListSession) Err() error { return s.lastErr }
func (s *ListSession) PageSize() int { return s.pageSize }
func (s *ListSession) Records() []entity.Reward {
	out := make([]entity.Reward, len(s.records))
	copy(out, s.records)
	return out
}

// apply replaces the loaded page wholesale.
func (s *ListSession) apply(page int, pg Page) {
	s.page = page
	s.records = pg.Records
	s.hasMore = pg.HasMore
	s.next = pg.NextCursor
	s.lastErr = nil
	s.state = StateLoaded
}

// fail keeps the last good page on screen and records the error.
func (s *ListSession) fail(err error) error {
	s.logger.Warnw("load rewards failed", "page", s.pendingPage, "err", err)
	s.lastErr = fmt.Errorf("%w: %v", ErrLoadFailed, err)
	s.state = StateError
	return s.lastErr
}
