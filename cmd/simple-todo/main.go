package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-todo/internal/config"
	"github.com/tendant/simple-todo/internal/notification"
	"github.com/tendant/simple-todo/pkg/auth"
	"github.com/tendant/simple-todo/pkg/repository"
	"github.com/tendant/simple-todo/pkg/repository/mongostore"
	"github.com/tendant/simple-todo/todo"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	users, tasks, closer, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	var mailer auth.Mailer
	if cfg.HasSMTP() {
		mailer = notification.NewEmailService(notification.EmailConfig{
			Host:            cfg.SMTPHost,
			Port:            cfg.SMTPPort,
			User:            cfg.SMTPUser,
			Password:        cfg.SMTPPassword,
			From:            cfg.SMTPFrom,
			FromName:        cfg.SMTPFromName,
			BaseURL:         cfg.AppBaseURL,
			VerificationTTL: cfg.EmailVerificationTTL,
			ResetTTL:        cfg.PasswordResetTTL,
		})
		logger.Info("email service enabled", "host", cfg.SMTPHost)
	} else {
		mailer = notification.NewLogMailer(logger)
		logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
	}

	hasher, err := auth.NewPasswords(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		logger.Error("failed to configure password hashing", "error", err)
		os.Exit(1)
	}

	app, err := todo.New(todo.Config{
		Users:                users,
		Tasks:                tasks,
		JWTSecret:            cfg.JWTSecret,
		JWTIssuer:            cfg.JWTIssuer,
		AccessTokenTTL:       cfg.AccessTokenTTL,
		RefreshTokenTTL:      cfg.RefreshTokenTTL,
		EmailVerificationTTL: cfg.EmailVerificationTTL,
		PasswordResetTTL:     cfg.PasswordResetTTL,
		MaxFailedAttempts:    cfg.LockoutMaxAttempts,
		LockoutDuration:      cfg.LockoutDuration,
		Hasher:               hasher,
		PasswordPolicy:       auth.NewPasswordPolicy(cfg.PasswordPolicy),
		Mailer:               mailer,
		RateLimit:            cfg.RateLimit,
		SecurityHeaders:      cfg.SecurityHeaders,
		Validation:           cfg.Validation,
		CORSOrigins:          cfg.CORSAllowedOrigins,
		TrustProxyHeaders:    cfg.TrustProxyHeaders,
		Logger:               logger,
	})
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	addr := cfg.ListenAddr()
	server := &http.Server{
		Addr:         addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStores returns the user and task stores for the configured driver and
// a closer releasing the underlying connection.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.UserStore, repository.TaskStore, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store := repository.NewMemoryStore()
		return store.Users(), store.Tasks(), closerFunc(func() error { return nil }), nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, nil, err
		}
		logger.Info("connected to mongodb", "database", cfg.MongoDB)
		closer := closerFunc(func() error { return client.Disconnect(context.Background()) })
		return mongostore.NewUsers(db.Collection(mongostore.UsersCollection)),
			mongostore.NewTasks(db.Collection(mongostore.TasksCollection)),
			closer, nil

	default:
		db, err := repository.NewDB(repository.Config{
			Host:            cfg.DBHost,
			Port:            cfg.DBPort,
			User:            cfg.DBUser,
			Password:        cfg.DBPassword,
			DBName:          cfg.DBName,
			SSLMode:         cfg.DBSSLMode,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.DBAutoMigrate {
			if err := repository.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, nil, err
			}
			logger.Info("database migrations applied")
		}
		logger.Info("connected to database", "host", cfg.DBHost, "database", cfg.DBName)
		return repository.NewUsersRepository(db), repository.NewTasksRepository(db), db, nil
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
