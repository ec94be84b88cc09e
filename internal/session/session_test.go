package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("secret", "rewards", time.Hour)
	token, exp, err := iss.Issue(Identity{AccountID: "doc1", UID: "uid1", Email: "a@b.com", EmailVerified: true})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := iss.Parse(token)
	require.NoError(t, err)
	assert.True(t, c.LoggedIn)
	assert.Equal(t, "uid1", c.UID)
	assert.Equal(t, "a@b.com", c.Email)
	assert.True(t, c.EmailVerified)
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer("secret", "rewards", time.Hour)
	token, _, err := iss.Issue(Identity{UID: "u"})
	require.NoError(t, err)

	_, err = NewIssuer("other", "rewards", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("secret", "rewards", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue(Identity{UID: "u"})
	require.NoError(t, err)
	_, err = iss.Parse(old)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestGuard(t *testing.T) {
	iss := NewIssuer("secret", "rewards", time.Hour)
	protected := Guard(iss, "/signin", zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(c.Email))
	}))

	t.Run("redirects without flag", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?tab=1", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/signin?next=%2Fdashboard%3Ftab%3D1", rec.Header().Get("Location"))
	})

	token, _, err := iss.Issue(Identity{UID: "u", Email: "a@b.com"})
	require.NoError(t, err)

	t.Run("accepts cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "a@b.com", rec.Body.String())
	})

	t.Run("accepts bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
