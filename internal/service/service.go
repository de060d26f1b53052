package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/jira"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CaseManager persists staged case rows per issue type
type CaseManager interface {
	SaveCases(ctx context.Context, issueType string, rows []domain.CaseRow) error
	GetCases(ctx context.Context, issueType string) ([]domain.CaseRow, error)
	DeleteCases(ctx context.Context, issueType string) (int, error)
}

// TokenManager persists the OAuth token record
type TokenManager interface {
	SaveToken(ctx context.Context, token *domain.Token) error
	GetToken(ctx context.Context) (*domain.Token, error)
}

// OAuthFlow drives the Atlassian authorization code flow
type OAuthFlow interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*api.TokenResponse, error)
	AccessibleResources(ctx context.Context, accessToken string) ([]api.Resource, error)
}

// AuthProvider hands out valid Jira credentials
type AuthProvider interface {
	Auth(ctx context.Context) (*domain.Auth, error)
}

// Tracker is the outbound Jira API surface the service needs
type Tracker interface {
	BulkCreate(ctx context.Context, auth *domain.Auth, updates []jira.IssueUpdate) (*api.BulkCreateResponse, error)
	CreateLink(ctx context.Context, auth *domain.Auth, linkType, fromKey, toKey string) api.LinkResult
	SearchUsers(ctx context.Context, auth *domain.Auth, query string) ([]api.UserInfo, error)
}

// FileSaver exports staged rows to downloadable CSV files
type FileSaver interface {
	Save(issueType string, rows []domain.CaseRow) (string, error)
	FilePath(name string) (string, error)
}

// Config keeps the Jira project settings of the service
type Config struct {
	FrontendURL  string
	SiteURL      string
	Fields       jira.FieldConfig
	LinkTypeTest string
	LinkTypeBug  string
}

// Data keeps data required for service work
type Data struct {
	Port   int
	Cases  CaseManager
	Tokens TokenManager
	OAuth  OAuthFlow
	Auth   AuthProvider
	Jira   Tracker
	CSV    FileSaver
	Cfg    Config
	Ctx    context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting case importer service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 90 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("importer", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	promMdlw.Use(e)

	e.GET("/live", live(data))
	e.GET("/oauth/atlassian/start", oauthStart(data))
	e.GET("/oauth/atlassian/callback", oauthCallback(data))
	e.GET("/oauth/atlassian/status", oauthStatus(data))
	e.GET("/jira/user-search", userSearch(data))
	e.POST("/jira/bulk-create", bulkCreate(data))
	e.POST("/save-db", saveCases(data))
	e.GET("/cases", listCases(data))
	e.DELETE("/cases", clearCases(data))
	e.POST("/save-csv", saveCSV(data))
	e.GET("/download/:filename", downloadCSV(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func validate(data *Data) error {
	if data.Cases == nil {
		return fmt.Errorf("no Cases")
	}
	if data.Tokens == nil {
		return fmt.Errorf("no Tokens")
	}
	if data.OAuth == nil {
		return fmt.Errorf("no OAuth")
	}
	if data.Auth == nil {
		return fmt.Errorf("no Auth")
	}
	if data.Jira == nil {
		return fmt.Errorf("no Jira")
	}
	if data.CSV == nil {
		return fmt.Errorf("no CSV")
	}
	return nil
}

func issueTypeParam(c echo.Context) (string, error) {
	res := c.QueryParam("issue_type")
	if !domain.ValidIssueType(res) {
		return "", echo.NewHTTPError(http.StatusBadRequest, `issue_type must be "Test" or "Bug"`)
	}
	return res, nil
}
