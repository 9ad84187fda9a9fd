package main

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/booking"
	"github.com/airenas/tolka/internal/pkg/bookingservice"
	"github.com/airenas/tolka/internal/pkg/eligibility"
	"github.com/airenas/tolka/internal/pkg/lifecycle"
	"github.com/airenas/tolka/internal/pkg/notification"
	"github.com/airenas/tolka/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &bookingservice.Data{}
	data.Port = cfg.GetInt("port")

	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	goapp.Log.Info().Int32("max_conn", dbConfig.MaxConns).Int32("min_conn", dbConfig.MinConns).Msg("db info")

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	sender, err := postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init msg sender")
	}

	policy := notification.NewPolicy(nil)
	machine, err := lifecycle.NewMachine(policy)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init lifecycle machine")
	}
	router, err := notification.NewRouter(sender, nil)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init intent router")
	}
	filter, err := eligibility.NewFilter(db, db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init eligibility filter")
	}
	ledger, err := booking.NewLedger(db, nil)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init ledger")
	}

	data.Booking, err = booking.NewOrchestrator(&booking.Orchestrator{DB: db, Ledger: ledger,
		Machine: machine, Policy: policy, Matcher: filter, Languages: db,
		Router: router, MsgSender: sender})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init booking engine")
	}

	goapp.Log.Info().Msg("starting web service")
	if err := bookingservice.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	goapp.Log.Info().Msg("exit web service. Bye")
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

    __                __    _
   / /_  ____  ____  / /__ (_)___  ____ _
  / __ \/ __ \/ __ \/ //_// / __ \/ __ ` + "`" + `/
 / /_/ / /_/ / /_/ / ,<  / / / / / /_/ /
/_.___/\____/\____/_/|_|/_/_/ /_/\__, /   v: %s
                                /____/
%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/tolka"))
}
