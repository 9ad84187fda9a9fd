package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/consul"
	"github.com/airenas/tolka/internal/pkg/dispatch"
	"github.com/airenas/tolka/internal/pkg/eligibility"
	"github.com/airenas/tolka/internal/pkg/notification"
	"github.com/airenas/tolka/internal/pkg/postgres"
	"github.com/airenas/tolka/internal/pkg/push"
	"github.com/airenas/tolka/internal/pkg/sms"
	capi "github.com/hashicorp/consul/api"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config

	data := &dispatch.ServiceData{}
	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}
	data.WorkerCount = cfg.GetInt("worker.count")

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	data.DB = db
	data.Languages = db

	data.Filter, err = eligibility.NewFilter(db, db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init eligibility filter")
	}
	data.Policy = notification.NewPolicy(nil)

	sender, err := postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init msg sender")
	}
	data.Router, err = notification.NewRouter(sender, nil)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init intent router")
	}

	data.SMS, err = sms.NewClient(cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init sms client")
	}

	printBanner()

	ctx, cancelFunc := context.WithCancel(context.Background())
	var consulDoneCh <-chan struct{}
	if cfg.GetString("consul.url") != "" {
		goapp.Log.Info().Str("sender", "consul").Msg("push")
		provider, err := consul.NewProvider(&capi.Config{Address: cfg.GetString("consul.url")},
			cfg.GetString("consul.service"))
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init consul provider")
		}
		consulDoneCh, err = provider.StartRegistryLoop(ctx, time.Second*10)
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't start consul registry loop")
		}
		data.Push = provider
	} else {
		goapp.Log.Info().Str("sender", "direct").Msg("push")
		data.Push, err = push.NewClient(cfg.GetString("push.url"))
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init push client")
		}
	}

	doneCh, err := dispatch.StartWorkerService(ctx, data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start dispatch service")
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
		if consulDoneCh != nil {
			<-consulDoneCh
		}
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
  __________  __    __ __ ___
 /_  __/ __ \/ /   / //_//   |
  / / / / / / /   / ,<  / /| |
 / / / /_/ / /___/ /| |/ ___ |
/_/  \____/_____/_/ |_/_/  |_|

       ___                  __       __
  ____/ (_)________  ____ _/ /______/ /_
 / __  / / ___/ __ \/ __ ` + "`" + `/ __/ ___/ __ \
/ /_/ / (__  ) /_/ / /_/ / /_/ /__/ / / /
\__,_/_/____/ .___/\__,_/\__/\___/_/ /_/   v: %s
           /_/
%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/tolka"))
}
