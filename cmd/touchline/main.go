// Package main is the entry point of the Touchline service.
// It wires the fixtures usecase behind a Kratos HTTP server and runs the
// retention job.
package main

import (
	"flag"
	"os"

	"Touchline/internal/conf"
	zapLogger "Touchline/pkg/log"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "touchline"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server, job *retentionJob) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			job,
		),
	)
}

func main() {
	flag.Parse()

	// Missing API key or DSN aborts here.
	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	logger := zapLogger.NewKratosAdapter(zapLog)
	logger = log.With(logger,
		"service.id", id,
		"service.version", Version,
	)

	zapLogger.NewLogHelper(logger).Startup("Touchline service starting",
		"http.addr", bc.Server.HTTP.Addr,
		"database.driver", bc.Data.Database.Driver,
		"database.source", bc.Data.Database.Source,
		"redis.addr", bc.Data.Redis.Addr,
		"upstream.url", bc.Upstream.BaseURL,
		"upstream.tier", bc.Upstream.Tier,
		"upstream.proxy_url", bc.Upstream.ProxyURL,
		"quota.daily_safety_cap", bc.Quota.DailySafetyCap,
		"fixtures.league", bc.Fixtures.League,
		"fixtures.season", bc.Fixtures.Season,
		"log.level", bc.Log.Level,
		"log.format", bc.Log.Format,
	)

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Upstream, bc.Quota, bc.Fixtures, bc.Retention, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
