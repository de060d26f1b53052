package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/cenkalti/backoff/v4"
)

// Config holds the Atlassian OAuth application settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       string
	AuthURL      string
	ResourceURL  string
}

// Client talks to auth.atlassian.com
type Client struct {
	httpclient *http.Client
	cfg        Config
	timeout    time.Duration
}

// NewClient creates an Atlassian OAuth client
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("no clientID/clientSecret")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = "https://auth.atlassian.com"
	}
	if cfg.ResourceURL == "" {
		cfg.ResourceURL = "https://api.atlassian.com/oauth/token/accessible-resources"
	}
	res := &Client{cfg: cfg}
	res.timeout = time.Second * 30
	res.httpclient = &http.Client{Transport: newTransport()}
	goapp.Log.Info().Str("url", cfg.AuthURL).Str("redirect", cfg.RedirectURL).Msg("OAuth client")
	return res, nil
}

// AuthorizeURL builds the user consent redirect target
func (c *Client) AuthorizeURL(state string) string {
	params := url.Values{
		"audience":      {"api.atlassian.com"},
		"client_id":     {c.cfg.ClientID},
		"scope":         {c.cfg.Scopes},
		"redirect_uri":  {c.cfg.RedirectURL},
		"state":         {state},
		"response_type": {"code"},
		"prompt":        {"consent"},
	}
	return c.cfg.AuthURL + "/authorize?" + params.Encode()
}

// ExchangeCode trades an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code string) (*api.TokenResponse, error) {
	return c.tokenCall(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"code":          code,
		"redirect_uri":  c.cfg.RedirectURL,
	})
}

// Refresh trades a refresh token for a fresh access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	return c.tokenCall(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"refresh_token": refreshToken,
	})
}

func (c *Client) tokenCall(ctx context.Context, body map[string]string) (*api.TokenResponse, error) {
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()

	res := &api.TokenResponse{}
	op := func() error {
		b := new(bytes.Buffer)
		if err := json.NewEncoder(b).Encode(body); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL+"/oauth/token", b)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpclient.Do(req)
		if err != nil {
			return fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
		}
		defer drainClose(resp)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		}
		if err := goapp.ValidateHTTPResp(resp, 500); err != nil {
			return backoff.Permanent(fmt.Errorf("token call failed: %w", err))
		}
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return backoff.Permanent(fmt.Errorf("decode token response: %w", err))
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("no access_token in response")
	}
	return res, nil
}

// AccessibleResources lists the Jira sites the token can reach
func (c *Client) AccessibleResources(ctx context.Context, accessToken string) ([]api.Resource, error) {
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ResourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	defer drainClose(resp)
	if err := goapp.ValidateHTTPResp(resp, 500); err != nil {
		return nil, fmt.Errorf("accessible resources: %w", err)
	}
	var res []api.Resource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}
	return res, nil
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
	_ = resp.Body.Close()
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 5
	res.MaxIdleConns = 2
	res.MaxIdleConnsPerHost = 2
	res.IdleConnTimeout = 90 * time.Second
	return res
}
