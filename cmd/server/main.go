package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"

	"github.com/tudoramariei/votemonitor/internal/api"
	"github.com/tudoramariei/votemonitor/internal/config"
	dbstore "github.com/tudoramariei/votemonitor/internal/db"
	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/middleware"
	"github.com/tudoramariei/votemonitor/internal/services"
	"github.com/tudoramariei/votemonitor/internal/utils"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", os.Getenv("VOTEMONITOR_CONFIG"), "`path` to the TOML config file")
}

// openStore returns the configured store and a function that flushes and closes it.
func openStore(ctx context.Context, cfg config.Config) (api.Store, func(), error) {
	switch cfg.DB.Driver {
	case config.DbDriverMemory:
		mem, err := api.NewMemoryStoreFromPath(ctx, cfg.DB.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() {
			if cfg.DB.Snapshot == "" {
				return
			}
			if err := mem.SaveSnapshot(cfg.DB.Snapshot); err != nil {
				log.WithError(err).Error("save snapshot")
				return
			}
			log.WithField("path", cfg.DB.Snapshot).Info("snapshot saved")
		}, nil
	default:
		if cfg.DB.Driver == config.DbDriverSqlite3 && cfg.DB.ImportSnapshot != "" {
			if err := MigrateIfNeeded(ctx, cfg.DB.ImportSnapshot, cfg.DB.File, cfg.DB.Migrations); err != nil {
				return nil, nil, err
			}
		}
		db, err := dbstore.Open(cfg.DB.Driver, cfg.DB.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		applied, err := dbstore.Migrate(db, cfg.DB.Driver, cfg.DB.Migrations)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if len(applied) > 0 {
			log.WithField("migrations", applied).Info("database migrated")
		}
		store, err := dbstore.NewStore(db, cfg.DB.Driver)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("close database")
			}
		}, nil
	}
}

// buildHandler wires the API router behind the server-wide middleware chain.
func buildHandler(cfg config.Config, store api.Store, accessLog io.Writer) http.Handler {
	policy, _ := forms.ParseSeedPolicy(cfg.Forms.SeedPolicy)
	rt := api.NewRouter(store, api.Options{
		Translations: forms.NewTranslationManager(policy),
		Suggestions: services.SuggestionConfig{
			BaseURL: cfg.Suggestions.BaseURL,
			APIKey:  cfg.Suggestions.APIKey,
			Model:   cfg.Suggestions.Model,
			Timeout: cfg.Suggestions.Timeout.Duration,
		},
		Auth:      middleware.NewAuth(cfg.Auth.JWTSecret),
		Commit:    cfg.Server.Commit,
		BuildTime: cfg.Server.BuildTime,
	})

	var h http.Handler = rt.Handler()
	h = middleware.LocaleMiddleware(utils.MessageLocales(), "EN")(h)
	h = middleware.SecureHeaders(h)
	if len(cfg.Server.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.Server.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Accept-Language", "X-Request-ID"}),
			handlers.ExposedHeaders([]string{"Content-Disposition", "Content-Language", "X-Request-ID"}),
		)(h)
	}
	h = middleware.RequestID(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(log.StandardLogger()), handlers.PrintRecoveryStack(true))(h)
	return handlers.LoggingHandler(accessLog, h)
}

func main() {
	flag.Parse()
	if err := config.LoadDotEnv(); err != nil {
		log.WithError(err).Fatal("load .env")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	cfg.Log.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.DB.Driver).Fatal("open store")
	}
	defer closeStore()

	accessLog := log.StandardLogger().WriterLevel(log.InfoLevel)
	defer accessLog.Close()
	h := buildHandler(cfg, store, accessLog)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(log.Fields{"addr": cfg.Server.Addr, "driver": cfg.DB.Driver, "commit": cfg.Server.Commit}).Info("vote monitor forms server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown")
	}
	log.Info("server stopped")
}
