package main

import (
	"context"
	"fmt"
	"os"

	"movieflix/internal/conf"
	"movieflix/internal/observability"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/spf13/cobra"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "movieflix"
	// Version is the version of the compiled software.
	Version string

	flagconf string
	flaglog  string

	id, _ = os.Hostname()
)

func newApp(logger log.Logger, hs *http.Server, gs *grpc.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs, gs),
	)
}

func newLogger() log.Logger {
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)
	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(flaglog)))
}

// loadConfig reads the YAML under path with environment placeholders resolved.
func loadConfig(path string) (*conf.Bootstrap, func(), error) {
	c := config.New(
		config.WithSource(
			env.NewSource(),
			file.NewSource(path),
		),
	)
	if err := c.Load(); err != nil {
		c.Close()
		return nil, nil, err
	}
	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		c.Close()
		return nil, nil, err
	}
	if bc.Data == nil || bc.Data.Database == nil {
		c.Close()
		return nil, nil, fmt.Errorf("config %s: data.database is required", path)
	}
	if bc.Lake == nil {
		bc.Lake = &conf.Lake{}
	}
	return &bc, func() { c.Close() }, nil
}

// bootstrap loads config and installs tracing; the returned cleanup undoes both.
func bootstrap(ctx context.Context) (*conf.Bootstrap, log.Logger, func(), error) {
	logger := newLogger()
	bc, closeConf, err := loadConfig(flagconf)
	if err != nil {
		return nil, nil, nil, err
	}
	shutdown, err := observability.InitTracer(bc.Trace, Version, os.Stderr, logger)
	if err != nil {
		closeConf()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.NewHelper(logger).Warnf("tracer shutdown: %v", err)
		}
		closeConf()
	}
	return bc, logger, cleanup, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	bc, logger, cleanup, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	app, appCleanup, err := wireApp(bc.Server, bc.Data, bc.Lake, logger)
	if err != nil {
		return err
	}
	defer appCleanup()

	return app.Run()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           Name,
		Short:         "MovieFlix data lake to warehouse ETL",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&flagconf, "conf", defaultConf(), "config path, eg: --conf configs/config.yaml")
	root.PersistentFlags().StringVar(&flaglog, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(), newRunETLCmd(), newExportCmd(), newReloadCmd())
	return root
}

func defaultConf() string {
	if v := os.Getenv("MOVIEFLIX_CONF"); v != "" {
		return v
	}
	return "configs"
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
