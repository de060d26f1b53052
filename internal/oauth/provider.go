package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
)

// ErrNotConnected tells the operator must (re)run the OAuth flow
var ErrNotConnected = errors.New("not connected to Jira")

// TokenManager persists the single OAuth token record
type TokenManager interface {
	SaveToken(ctx context.Context, token *domain.Token) error
	GetToken(ctx context.Context) (*domain.Token, error)
}

// Refresher trades a refresh token for a fresh access token
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
}

// expiryMargin keeps a token from being handed out right before it dies
const expiryMargin = time.Second * 60

// Provider hands out valid credentials for Jira calls, refreshing and
// persisting the stored token when needed. It replaces any process
// global token state - everything goes through the injected store
type Provider struct {
	store     TokenManager
	refresher Refresher
	now       func() time.Time
}

// NewProvider creates a credential provider
func NewProvider(store TokenManager, refresher Refresher) (*Provider, error) {
	if store == nil {
		return nil, fmt.Errorf("no token store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("no refresher")
	}
	return &Provider{store: store, refresher: refresher, now: time.Now}, nil
}

// Auth returns a usable credential or ErrNotConnected
func (p *Provider) Auth(ctx context.Context) (*domain.Auth, error) {
	token, err := p.store.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no stored token", ErrNotConnected)
	}
	if token.CloudID == "" {
		return nil, fmt.Errorf("%w: stored state has no cloud id, reconnect", ErrNotConnected)
	}

	now := p.now().Unix()
	if token.AccessToken != "" && token.ExpiresAt > now+int64(expiryMargin.Seconds()) {
		return &domain.Auth{AccessToken: token.AccessToken, CloudID: token.CloudID, CloudURL: token.CloudURL}, nil
	}

	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token expired and no refresh token stored, reconnect", ErrNotConnected)
	}

	goapp.Log.Info().Msg("refreshing access token")
	fresh, err := p.refresher.Refresh(ctx, token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = token.RefreshToken
	}
	expiresIn := fresh.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	newToken := &domain.Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now + expiresIn,
		CloudID:      token.CloudID,
		CloudURL:     token.CloudURL,
	}
	if err := p.store.SaveToken(ctx, newToken); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return &domain.Auth{AccessToken: newToken.AccessToken, CloudID: newToken.CloudID, CloudURL: newToken.CloudURL}, nil
}
