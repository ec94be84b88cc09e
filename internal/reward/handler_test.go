package reward

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T, n int) *http.ServeMux {
	t.Helper()
	h := NewHandler(newTestService(t, n), nil, WithPageSize(10))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rewards", h.List)
	mux.HandleFunc("GET /rewards/stats", h.Stats)
	mux.HandleFunc("POST /rewards", h.Create)
	mux.HandleFunc("GET /rewards/{id}", h.Get)
	mux.HandleFunc("PUT /rewards/{id}", h.Replace)
	return mux
}

func getList(t *testing.T, mux http.Handler, target string) (int, ListResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var out ListResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestListPages(t *testing.T) {
	mux := newTestMux(t, 25)

	code, p1 := getList(t, mux, "/rewards")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, p1.Page)
	assert.Equal(t, 3, p1.TotalPages)
	assert.True(t, p1.HasMore)
	assert.Len(t, p1.Records, 10)
	assert.Equal(t, 25, p1.Stats.Total)
	assert.NotEmpty(t, p1.Records[0].ID)

	code, p3 := getList(t, mux, "/rewards?page=3")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, p3.Page)
	assert.False(t, p3.HasMore)
	assert.Len(t, p3.Records, 5)

	code, _ = getList(t, mux, "/rewards?page=4")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = getList(t, mux, "/rewards?page=x")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListSearchIsPageLocal(t *testing.T) {
	mux := newTestMux(t, 25)
	// titles are "Reward 00".."Reward 24"; a collection-wide search would match 12
	code, out := getList(t, mux, "/rewards?q=1")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Reward 01", out.Records[0].Title)
}

func TestListEmptyCollection(t *testing.T) {
	mux := newTestMux(t, 0)
	code, out := getList(t, mux, "/rewards")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out.Records)
	assert.False(t, out.HasMore)
	assert.Zero(t, out.TotalPages)
}

func TestCreateGetReplace(t *testing.T) {
	mux := newTestMux(t, 0)
	body := `{"brand":"Bean Co","title":"Free latte","subtitle":"any size","pointCost":250,"claimCap":1,
		"status":"available","validFrom":"2026-01-01","validTo":"2026-12-31","details":["one per visit"],"claimSteps":["show code"]}`

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rewards", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Reward rewardView `json:"reward"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Reward.ID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rewards/"+created.Reward.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Free latte")

	edited := strings.Replace(body, "Free latte", "Free mocha", 1)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/rewards/"+created.Reward.ID, strings.NewReader(edited)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Free mocha")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rewards/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	invalid := strings.Replace(body, `"claimCap":1`, `"claimCap":0`, 1)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rewards", strings.NewReader(invalid)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	mux := newTestMux(t, 3)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rewards/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":3`)
}
