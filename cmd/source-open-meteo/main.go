package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/source-open-meteo/internal/api/http"
	"github.com/i474232898/source-open-meteo/internal/config"
	"github.com/i474232898/source-open-meteo/internal/connector"
	"github.com/i474232898/source-open-meteo/internal/logger"
	"github.com/i474232898/source-open-meteo/internal/metrics"
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
	"github.com/i474232898/source-open-meteo/internal/protocol"
	"github.com/i474232898/source-open-meteo/internal/scheduler"
	"github.com/i474232898/source-open-meteo/internal/store"
	"github.com/i474232898/source-open-meteo/internal/transport"
)

const usage = `usage: source-open-meteo <command> [flags]

commands:
  spec                      print the connection specification
  check    --config <file>  validate a configuration
  discover --config <file>  print the stream catalog
  read     --config <file>  emit records for every stream
  serve                     run the HTTP API and periodic sync
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	defer func() { _ = logger.Close() }()

	if err := run(os.Args[1], os.Args[2:], os.Stdout, os.Stderr); err != nil {
		logger.GetLogger().Errorw("command failed", "command", os.Args[1], "error", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func run(command string, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := protocol.NewWriter(stdout)

	switch command {
	case "spec":
		return out.WriteSpec(protocol.ConnectorSpec())
	case "check":
		source, _, err := parseSourceFlags(command, args)
		if err != nil {
			return err
		}
		return out.WriteStatus(newService(cfg, nil, nil).Check(source))
	case "discover":
		source, _, err := parseSourceFlags(command, args)
		if err != nil {
			return err
		}
		streams, err := openmeteo.Streams(source)
		if err != nil {
			return err
		}
		return out.WriteCatalog(protocol.BuildCatalog(streams))
	case "read":
		source, only, err := parseSourceFlags(command, args)
		if err != nil {
			return err
		}
		return read(cfg, source, only, out)
	case "serve":
		return serve(cfg)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// parseSourceFlags reads --config and the optional --stream selection.
func parseSourceFlags(command string, args []string) (openmeteo.SourceConfig, []openmeteo.Variant, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	path := fs.String("config", "", "path to the connector JSON configuration")
	stream := fs.String("stream", "", "only emit this stream (read only)")
	if err := fs.Parse(args); err != nil {
		return openmeteo.SourceConfig{}, nil, err
	}

	var only []openmeteo.Variant
	if *stream != "" {
		v, ok := openmeteo.LookupVariant(*stream)
		if !ok {
			return openmeteo.SourceConfig{}, nil, fmt.Errorf("unknown stream %q", *stream)
		}
		only = append(only, v)
	}

	source, err := config.LoadSourceConfig(*path)
	if err != nil {
		return openmeteo.SourceConfig{}, nil, err
	}
	return source, only, nil
}

func newService(cfg *config.AppConfig, st connector.Store, m *metrics.Metrics) *connector.Service {
	client := transport.New("openmeteo", transport.Config{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: transport.BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: transport.DefaultBackoff.InitialInterval,
			MaxInterval:     transport.DefaultBackoff.MaxInterval,
		},
		RateLimit: cfg.RateLimitRPS,
		Burst:     cfg.RateLimitBurst,
	})
	return connector.NewService(client, cfg.BaseURL, st, m)
}

// read emits RECORD messages for the selected streams. A failed read is
// reported to the consumer as an ERROR log message before returning.
func read(cfg *config.AppConfig, source openmeteo.SourceConfig, only []openmeteo.Variant, out *protocol.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := newService(cfg, nil, nil)
	err := service.Read(ctx, source, only, out.WriteRecord)
	if err != nil {
		if logErr := out.WriteLog(protocol.LevelError, err.Error()); logErr != nil {
			return errors.Join(err, logErr)
		}
		return err
	}
	return nil
}

func serve(cfg *config.AppConfig) error {
	log := logger.GetLogger()

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	service := newService(cfg, memStore, metrics.New(prometheus.DefaultRegisterer))

	// Periodic sync only runs when a source configuration is provided.
	if cfg.SourceConfigPath != "" {
		source, err := config.LoadSourceConfig(cfg.SourceConfigPath)
		if err != nil {
			return err
		}
		if res := service.Check(source); !res.Succeeded {
			return fmt.Errorf("invalid source config: %s", res.Message)
		}

		sched := scheduler.New(source, cfg.SyncInterval, service)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		log.Infow("SOURCE_CONFIG_PATH not set; periodic sync disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:               "source-open-meteo",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          45 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "source-open-meteo",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorw("fiber server stopped", "error", err)
		}
	}()
	log.Infow("listening", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}
