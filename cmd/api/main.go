package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/receiving"
	"github.com/jhoicas/stock-ledger/internal/application/settlement"
	"github.com/jhoicas/stock-ledger/internal/application/transfer"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/rabbitmq"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
	"github.com/jhoicas/stock-ledger/pkg/metrics"
	"github.com/jhoicas/stock-ledger/pkg/migrate"
	pkgredis "github.com/jhoicas/stock-ledger/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()

	var store ledger.Store
	switch cfg.App.Storage {
	case "memory":
		mem := memory.New(cfg.Ledger.LockTimeout)
		if cfg.App.SeedFile != "" {
			f, err := os.Open(cfg.App.SeedFile)
			if err != nil {
				log.Fatal().Err(err).Str("file", cfg.App.SeedFile).Msg("abrir catálogo inicial")
			}
			if err := mem.LoadSeed(f); err != nil {
				log.Fatal().Err(err).Msg("cargar catálogo inicial")
			}
			_ = f.Close()
		}
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		store = mem
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()

		if cfg.App.AutoMigrate {
			sqlDB := stdlib.OpenDBFromPool(pool)
			if err := migrate.Up(ctx, sqlDB); err != nil {
				log.Fatal().Err(err).Msg("aplicar migraciones")
			}
			_ = sqlDB.Close()
			log.Info().Msg("migraciones aplicadas")
		}
		store = postgres.NewTxRunner(pool, cfg.Ledger.LockTimeout)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engineOpts := []ledger.Option{
		ledger.WithMetrics(metrics.NewLedgerMetrics(reg)),
		ledger.WithLogger(log),
	}

	// RabbitMQ: publicación de eventos confirmados, opcional.
	if cfg.Rabbit.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a RabbitMQ")
		}
		defer publisher.Close()
		engineOpts = append(engineOpts, ledger.WithPublisher(publisher))
		log.Info().Str("exchange", cfg.Rabbit.Exchange).Msg("publicación de eventos activa")
	}

	// Redis: idempotencia de comandos, opcional.
	var idempotency pkgredis.IdempotencyStore
	if cfg.Redis.URL != "" {
		redisClient, err := pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer redisClient.Close()
		idempotency = redisClient
	}

	engine := ledger.NewEngine(store, engineOpts...)
	transferSvc := transfer.NewService(engine)
	settlementSvc := settlement.NewService(engine, settlement.WithAmountEpsilon(cfg.Ledger.AmountEpsilon))
	receivingSvc := receiving.NewService(engine)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.HTTP.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + httpRouter.HeaderIdempotencyKey,
	}))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Stock Ledger API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:         engine,
		Transfers:      transferSvc,
		Settlement:     settlementSvc,
		Receiving:      receivingSvc,
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		Gatherer:       reg,
		Logger:         log,
		ServiceName:    cfg.App.Name,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
