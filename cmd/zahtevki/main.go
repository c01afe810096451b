package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/api"
	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/config"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/logger"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/sequence"
	"github.com/erazemk/zahtevki/internal/store"
	"github.com/erazemk/zahtevki/internal/warehouse"
)

func main() {
	cfg := config.Load()

	fs := flag.NewFlagSet("zahtevki", flag.ContinueOnError)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")

	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: zahtevki [flags]

Flags:
  -d, -db <path>          SQLite database path (default: zahtevki.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Environment (also read from .env):
  ZAHTEVKI_DB, ZAHTEVKI_ADDR, ZAHTEVKI_ADMIN, ZAHTEVKI_LOG,
  ZAHTEVKI_LOG_LEVEL, ZAHTEVKI_TOKEN_TTL,
  REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	log, closeLog, err := logger.New(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	version, err := db.Version(database)
	if err != nil {
		return err
	}
	log.Info("database ready", zap.String("path", cfg.DBPath), zap.Int64("version", version))

	ctx := context.Background()
	if err := bootstrapAdmin(ctx, database, cfg.AdminUser, log); err != nil {
		return err
	}

	seq, closeSeq, err := sequencer(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeSeq()

	wh := warehouse.New(seq, log)
	if _, err := wh.EnsureDefaultWarehouse(ctx, database, model.DefaultCompanyID); err != nil {
		return fmt.Errorf("setting up warehouse: %w", err)
	}

	svc := issuing.New(database, wh, seq, log)
	linked, err := svc.LinkExistingLocations(ctx)
	if err != nil {
		return fmt.Errorf("linking department locations: %w", err)
	}
	if linked > 0 {
		log.Info("linked department locations", zap.Int("count", linked))
	}

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}

	e := api.NewRouter(api.Options{
		DB:        database,
		Issuing:   svc,
		JWTSecret: jwtSecret,
		TokenTTL:  cfg.TokenTTL,
		Log:       log,
	})
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 60 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", cfg.Addr))
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
	case <-sigCtx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}

	log.Info("server stopped, closing database")
	return nil
}

// bootstrapAdmin creates the first admin account when no admin exists and
// prints its generated password once.
func bootstrapAdmin(ctx context.Context, database *sql.DB, username string, log *zap.Logger) error {
	admins, err := store.CountAdmins(ctx, database)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}

	password, err := auth.RandomPassword()
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.CreateUser(ctx, database, username, hash, model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	log.Info("admin account created", zap.String("user", username))
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
	return nil
}

// sequencer returns the Redis-backed sequencer when REDIS_ADDRESS is set
// and the table-backed one otherwise.
func sequencer(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (sequence.Sequencer, func(), error) {
	if cfg.Address == "" {
		return sequence.NewStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	seq := sequence.NewRedis(client)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := seq.Ping(pingCtx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Address, err)
	}

	log.Info("using redis sequences", zap.String("addr", cfg.Address))
	return seq, func() { client.Close() }, nil
}
