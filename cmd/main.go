package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/db"
	"github.com/airenas/jira-case-importer/internal/export"
	"github.com/airenas/jira-case-importer/internal/jira"
	"github.com/airenas/jira-case-importer/internal/oauth"
	"github.com/airenas/jira-case-importer/internal/service"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	store, err := db.NewRedisStore(cfg.GetString("redis.url"), cfg.GetString("encryption.key"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init redis store")
	}
	defer store.Close()

	oauthClient, err := oauth.NewClient(oauth.Config{
		ClientID:     cfg.GetString("atlassian.clientID"),
		ClientSecret: cfg.GetString("atlassian.clientSecret"),
		RedirectURL:  cfg.GetString("atlassian.redirectURL"),
		Scopes:       cfg.GetString("atlassian.scopes"),
	})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init OAuth client")
	}
	authProvider, err := oauth.NewProvider(store, oauthClient)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init auth provider")
	}
	csvWriter, err := export.NewWriter(cfg.GetString("export.dir"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init CSV export")
	}

	data := &service.Data{}
	data.Ctx = ctx
	data.Port = cfg.GetInt("port")
	data.Cases = store
	data.Tokens = store
	data.OAuth = oauthClient
	data.Auth = authProvider
	data.Jira = jira.NewClient(cfg.GetString("jira.gatewayURL"))
	data.CSV = csvWriter
	data.Cfg = service.Config{
		FrontendURL:  cfg.GetString("frontend.url"),
		SiteURL:      cfg.GetString("jira.siteURL"),
		LinkTypeTest: cfg.GetString("jira.linkTypeTest"),
		LinkTypeBug:  cfg.GetString("jira.linkTypeBug"),
		Fields: jira.FieldConfig{
			ProjectKey: cfg.GetString("jira.projectKey"),
			CFTeam:     cfg.GetString("jira.cfTeam"),
			CFSeverity: cfg.GetString("jira.cfSeverity"),
		},
	}

	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    JIRA CASE IMPORTER v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/jira-case-importer"))
}
