package reward

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward/entity"
)

// sliceFetcher pages over an in-memory slice; the cursor is the index of
// the next record. It counts calls and can be told to fail.
type sliceFetcher struct {
	records []entity.Reward
	calls   int
	failAt  int
	afters  []docstore.Cursor
}

func (f *sliceFetcher) FetchPage(_ context.Context, size int, after docstore.Cursor) (Page, error) {
	f.calls++
	f.afters = append(f.afters, after)
	if f.failAt > 0 && f.calls == f.failAt {
		return Page{}, errors.New("store unreachable")
	}
	start := 0
	if after != "" {
		start, _ = strconv.Atoi(string(after))
	}
	end := start + size
	if end > len(f.records) {
		end = len(f.records)
	}
	pg := Page{Records: append([]entity.Reward(nil), f.records[start:end]...)}
	if end < len(f.records) {
		pg.HasMore = true
		pg.NextCursor = docstore.Cursor(strconv.Itoa(end))
	}
	return pg, nil
}

type fixedStats struct {
	stats entity.Stats
	err   error
}

func (s fixedStats) Stats(context.Context) (entity.Stats, error) { return s.stats, s.err }

func makeRewards(n int) []entity.Reward {
	out := make([]entity.Reward, n)
	for i := range out {
		out[i] = entity.Reward{
			ID:     fmt.Sprintf("r%02d", i),
			Brand:  "Brand",
			Title:  fmt.Sprintf("Reward %02d", i),
			Status: entity.StatusAvailable,
		}
	}
	return out
}

func TestTotalPagesReachable(t *testing.T) {
	for p := 1; p <= 12; p++ {
		for n := 0; n <= 40; n++ {
			f := &sliceFetcher{records: makeRewards(n)}
			pages := 0
			var cursor docstore.Cursor
			var last Page
			for {
				pg, err := f.FetchPage(context.Background(), p, cursor)
				require.NoError(t, err)
				if len(pg.Records) == 0 {
					break
				}
				pages++
				last = pg
				if !pg.HasMore {
					break
				}
				cursor = pg.NextCursor
			}
			require.Equal(t, TotalPages(n, p), pages, "n=%d p=%d", n, p)
			if n > 0 {
				assert.GreaterOrEqual(t, len(last.Records), 1)
				assert.LessOrEqual(t, len(last.Records), p)
			}
		}
	}
}

func TestGotoPageReplaysSequentially(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(25)}
	s := NewListSession(f, fixedStats{})

	require.NoError(t, s.GotoPage(context.Background(), 3, 25))

	assert.Equal(t, 3, f.calls, "one fetch per page up to the target")
	assert.Equal(t, []docstore.Cursor{"", "10", "20"}, f.afters)
	assert.Equal(t, 3, s.Page())
	assert.Len(t, s.Records(), 5)
	assert.False(t, s.HasMore())
	assert.Equal(t, StateLoaded, s.State())
}

func TestGotoPageIsIdempotent(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(25)}
	s := NewListSession(f, fixedStats{})

	require.NoError(t, s.GotoPage(context.Background(), 2, 25))
	first := s.Records()
	require.NoError(t, s.GotoPage(context.Background(), 2, 25))

	assert.Equal(t, first, s.Records())
	assert.Equal(t, 2, s.Page())
}

func TestGotoPageRejectsOutOfRange(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(25)}
	s := NewListSession(f, fixedStats{})

	for _, n := range []int{0, -1, 4} {
		err := s.GotoPage(context.Background(), n, 25)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", n)
	}
	assert.ErrorIs(t, s.GotoPage(context.Background(), 1, 0), ErrPageOutOfRange)
	assert.Zero(t, f.calls)
	assert.Equal(t, StateIdle, s.State())
}

func TestGotoPageStopsAtLastReachablePage(t *testing.T) {
	// the caller's total is stale: the store holds fewer records
	f := &sliceFetcher{records: makeRewards(15)}
	s := NewListSession(f, fixedStats{})

	require.NoError(t, s.GotoPage(context.Background(), 3, 30))

	assert.Equal(t, 2, f.calls)
	assert.Equal(t, 2, s.Page())
	assert.Len(t, s.Records(), 5)
}

func TestGotoPageWithCursorMemo(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(45)}
	s := NewListSession(f, fixedStats{}, WithCursorMemo())

	require.NoError(t, s.GotoPage(context.Background(), 4, 45))
	require.Equal(t, 4, f.calls)
	require.NoError(t, s.GotoPage(context.Background(), 5, 45))
	assert.Equal(t, 6, f.calls, "resumes from the memoized page 4 cursor")
	assert.Len(t, s.Records(), 5)

	require.NoError(t, s.Refresh(context.Background()))
	calls := f.calls
	require.NoError(t, s.GotoPage(context.Background(), 3, 45))
	assert.Equal(t, calls+3, f.calls, "refresh invalidates the memo")
}

func TestNextPageCarriesCursor(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(12)}
	s := NewListSession(f, fixedStats{stats: entity.Stats{Total: 12}})

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.NextPage(context.Background()))
	assert.Equal(t, 2, s.Page())
	assert.Len(t, s.Records(), 2)
	assert.ErrorIs(t, s.NextPage(context.Background()), ErrPageOutOfRange)
}

func TestFailedLoadKeepsLastPage(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(25)}
	s := NewListSession(f, fixedStats{})
	require.NoError(t, s.GotoPage(context.Background(), 1, 25))
	shown := s.Records()

	f.failAt = f.calls + 2
	err := s.GotoPage(context.Background(), 3, 25)
	require.ErrorIs(t, err, ErrLoadFailed)

	assert.Equal(t, StateError, s.State())
	assert.Equal(t, shown, s.Records())
	assert.Equal(t, 1, s.Page())
	assert.Equal(t, 3, f.calls, "no automatic retry")

	require.NoError(t, s.Retry(context.Background()))
	assert.Equal(t, StateLoaded, s.State())
	assert.Equal(t, 3, s.Page())
}

func TestRetryAfterFailedNextPage(t *testing.T) {
	f := &sliceFetcher{records: makeRewards(25)}
	s := NewListSession(f, fixedStats{})
	ctx := context.Background()
	// loaded by GotoPage, so the session never saw a stats total
	require.NoError(t, s.GotoPage(ctx, 1, 25))
	require.NoError(t, s.NextPage(ctx))
	require.Equal(t, 2, s.Page())

	f.failAt = f.calls + 1
	require.ErrorIs(t, s.NextPage(ctx), ErrLoadFailed)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, 2, s.Page())

	require.NoError(t, s.Retry(ctx))
	assert.Equal(t, StateLoaded, s.State())
	assert.Equal(t, 3, s.Page())
	assert.Len(t, s.Records(), 5)
	assert.Equal(t, docstore.Cursor("20"), f.afters[len(f.afters)-1], "retry reuses the carried cursor")
}

func TestRefreshJoinsPageAndStats(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &sliceFetcher{records: makeRewards(25)}
	want := entity.Stats{Total: 25, Claimed: 5, Unclaimed: 20, Expiring: 2}
	s := NewListSession(f, fixedStats{stats: want})

	require.NoError(t, s.GotoPage(context.Background(), 3, 25))
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, 1, s.Page())
	assert.Len(t, s.Records(), 10)
	assert.True(t, s.HasMore())
	assert.Equal(t, want, s.Stats())
}

func TestRefreshStatsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &sliceFetcher{records: makeRewards(5)}
	s := NewListSession(f, fixedStats{err: errors.New("count failed")})

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateError, s.State())
	assert.Empty(t, s.Records())
}

func TestFilterIsPageLocal(t *testing.T) {
	all := makeRewards(50)
	// 8 matches across the collection, 3 of them on the first page
	for _, i := range []int{1, 4, 7, 15, 22, 30, 41, 49} {
		all[i].Title = fmt.Sprintf("Coffee voucher %d", i)
	}
	f := &sliceFetcher{records: all}
	s := NewListSession(f, fixedStats{})
	require.NoError(t, s.GotoPage(context.Background(), 1, 50))

	assert.Len(t, Filter(all, "coffee"), 8)
	got := s.Visible("COFFEE")
	assert.Len(t, got, 3)
	for _, r := range got {
		assert.Contains(t, []string{"r01", "r04", "r07"}, r.ID)
	}
}

func TestFilterMatchesBrandAndStatus(t *testing.T) {
	records := []entity.Reward{
		{ID: "a", Title: "Free latte", Brand: "Bean Co", Status: entity.StatusAvailable},
		{ID: "b", Title: "Gift card", Brand: "ShopMart", Status: entity.StatusClaimed},
		{ID: "c", Title: "Tote bag", Brand: "beanery", Status: entity.StatusExpired},
	}
	ids := func(rs []entity.Reward) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "c"}, ids(Filter(records, "bean")))
	assert.Equal(t, []string{"b"}, ids(Filter(records, "claim")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Filter(records, "  ")))
}
