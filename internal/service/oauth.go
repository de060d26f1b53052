package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/oauth"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

func oauthStart(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		state := ulid.Make().String()

		token, err := data.Tokens.GetToken(ctx)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't load token")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't start OAuth flow")
		}
		if token == nil {
			token = &domain.Token{}
		}
		token.OAuthState = state
		if err := data.Tokens.SaveToken(ctx, token); err != nil {
			goapp.Log.Error().Err(err).Msg("can't save state")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't start OAuth flow")
		}
		return c.Redirect(http.StatusFound, data.OAuth.AuthorizeURL(state))
	}
}

func oauthCallback(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		code, state := c.QueryParam("code"), c.QueryParam("state")
		frontendErr := func(reason string) error {
			return c.Redirect(http.StatusFound, fmt.Sprintf("%s/login.html?error=%s", data.Cfg.FrontendURL, reason))
		}
		if code == "" || state == "" {
			return frontendErr("missing_code_or_state")
		}

		token, err := data.Tokens.GetToken(ctx)
		if err != nil || token == nil || token.OAuthState != state {
			if err != nil {
				goapp.Log.Error().Err(err).Msg("can't load token")
			}
			return frontendErr("invalid_state")
		}

		tokens, err := data.OAuth.ExchangeCode(ctx, code)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't exchange code")
			return frontendErr("exchange_failed")
		}

		resources, err := data.OAuth.AccessibleResources(ctx, tokens.AccessToken)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't list resources")
			return frontendErr("no_resources")
		}
		match := matchResource(resources, data.Cfg.SiteURL)
		if match == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "No accessible Jira resources found for this user.")
		}

		expiresIn := tokens.ExpiresIn
		if expiresIn == 0 {
			expiresIn = 3600
		}
		newToken := &domain.Token{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresAt:    time.Now().Unix() + expiresIn,
			CloudID:      match.ID,
			CloudURL:     match.URL,
		}
		if err := data.Tokens.SaveToken(ctx, newToken); err != nil {
			goapp.Log.Error().Err(err).Msg("can't save token")
			return frontendErr("store_failed")
		}
		goapp.Log.Info().Str("cloud", match.URL).Msg("connected to Jira")
		return c.Redirect(http.StatusFound, data.Cfg.FrontendURL+"/index.html?jira=connected")
	}
}

// matchResource picks the configured site, falling back to the first one
func matchResource(resources []api.Resource, siteURL string) *api.Resource {
	for i, r := range resources {
		if r.URL == siteURL {
			return &resources[i]
		}
	}
	if len(resources) > 0 {
		return &resources[0]
	}
	return nil
}

func oauthStatus(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		token, err := data.Tokens.GetToken(c.Request().Context())
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't load token")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't read state")
		}
		res := api.OAuthStatus{}
		if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
			return c.JSON(http.StatusOK, res)
		}
		expiresIn := token.ExpiresAt - time.Now().Unix()
		hasRefresh := token.RefreshToken != ""
		if expiresIn <= 0 && !hasRefresh {
			return c.JSON(http.StatusOK, res)
		}
		res.Connected = true
		res.CloudURL = token.CloudURL
		res.HasRefreshToken = hasRefresh
		res.ExpiresInSeconds = max(0, expiresIn)
		return c.JSON(http.StatusOK, res)
	}
}

func userSearch(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		query := c.QueryParam("q")
		if query == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no query")
		}
		ctx := c.Request().Context()
		auth, err := data.Auth.Auth(ctx)
		if err != nil {
			return authError(err)
		}
		users, err := data.Jira.SearchUsers(ctx, auth, query)
		if err != nil {
			return jiraError(err)
		}
		return c.JSON(http.StatusOK, users)
	}
}

func authError(err error) error {
	if errors.Is(err, oauth.ErrNotConnected) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not connected. Please connect to Jira first.")
	}
	goapp.Log.Error().Err(err).Msg("can't get credentials")
	return echo.NewHTTPError(http.StatusInternalServerError, "can't get Jira credentials")
}
