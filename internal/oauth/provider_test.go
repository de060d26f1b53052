package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore struct {
	token *domain.Token
	saved *domain.Token
	err   error
}

func (s *testStore) SaveToken(ctx context.Context, token *domain.Token) error {
	s.saved = token
	s.token = token
	return nil
}

func (s *testStore) GetToken(ctx context.Context) (*domain.Token, error) {
	return s.token, s.err
}

type testRefresher struct {
	resp  *api.TokenResponse
	err   error
	calls int
}

func (r *testRefresher) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	r.calls++
	return r.resp, r.err
}

func newTestProvider(t *testing.T, store *testStore, refresher *testRefresher) *Provider {
	t.Helper()
	p, err := NewProvider(store, refresher)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(1000, 0) }
	return p
}

func TestProvider_ValidToken(t *testing.T) {
	store := &testStore{token: &domain.Token{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: 1000 + 3600,
		CloudID: "cid", CloudURL: "https://x.atlassian.net",
	}}
	refresher := &testRefresher{}
	p := newTestProvider(t, store, refresher)

	auth, err := p.Auth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at", auth.AccessToken)
	assert.Equal(t, "cid", auth.CloudID)
	assert.Equal(t, 0, refresher.calls)
}

func TestProvider_RefreshesNearExpiry(t *testing.T) {
	store := &testStore{token: &domain.Token{
		AccessToken: "old", RefreshToken: "rt", ExpiresAt: 1030, CloudID: "cid",
	}}
	refresher := &testRefresher{resp: &api.TokenResponse{AccessToken: "new", ExpiresIn: 7200}}
	p := newTestProvider(t, store, refresher)

	auth, err := p.Auth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", auth.AccessToken)
	assert.Equal(t, 1, refresher.calls)
	require.NotNil(t, store.saved)
	assert.Equal(t, "new", store.saved.AccessToken)
	assert.Equal(t, "rt", store.saved.RefreshToken, "old refresh token kept when none returned")
	assert.Equal(t, int64(1000+7200), store.saved.ExpiresAt)
	assert.Equal(t, "cid", store.saved.CloudID)
}

func TestProvider_NotConnected(t *testing.T) {
	tests := []struct {
		name  string
		token *domain.Token
	}{
		{"no record", nil},
		{"no cloud id", &domain.Token{AccessToken: "at", ExpiresAt: 9999}},
		{"expired no refresh", &domain.Token{AccessToken: "at", ExpiresAt: 100, CloudID: "cid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, &testStore{token: tt.token}, &testRefresher{})
			_, err := p.Auth(context.Background())
			assert.ErrorIs(t, err, ErrNotConnected)
		})
	}
}

func TestProvider_RefreshFails(t *testing.T) {
	store := &testStore{token: &domain.Token{RefreshToken: "rt", CloudID: "cid"}}
	refresher := &testRefresher{err: errors.New("upstream down")}
	p := newTestProvider(t, store, refresher)

	_, err := p.Auth(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConnected)
}
