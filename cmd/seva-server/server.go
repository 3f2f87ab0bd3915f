package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/config"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/catalog"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/delivery"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/triage"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/blobstore"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/db"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/middleware"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/notification"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/session"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/store"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/telemetry"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/pkg/calendar"
)

const (
	tokenIssuer     = "seva-sahyog-bandhu"
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
	jsonBodyLimit   = 1 << 20
)

// repositories is one storage backend's implementation of every domain
// repository.
type repositories struct {
	users    identity.UserRepository
	requests triage.RequestRepository
	orders   delivery.OrderRepository
	symptoms catalog.SymptomRepository
	history  lifecycle.HistoryRepository

	// mem is set for the memory and sqlite backends.
	mem    *store.Store
	checks []db.Check
}

type server struct {
	echo    *echo.Echo
	repos   *repositories
	closers []func() error
}

func (s *server) onClose(fn func() error) { s.closers = append(s.closers, fn) }

// Close releases backends in reverse order of acquisition.
func (s *server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func openRepositories(ctx context.Context, cfg *config.Config, srv *server, telem *telemetry.Provider) (*repositories, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		st, persister, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		srv.onClose(persister.Close)
		r := memoryRepositories(st)
		r.checks = append(r.checks, db.Check{Name: "sqlite", Ping: persister.DB().PingContext})
		return r, nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
			Schema:   cfg.Schema,
			AppName:  "seva-server",
		})
		if err != nil {
			return nil, err
		}
		srv.onClose(func() error { pool.Close(); return nil })
		telem.RegisterPool(pool)
		return &repositories{
			users:    identity.NewUserRepoPG(pool),
			requests: triage.NewRequestRepoPG(pool),
			orders:   delivery.NewOrderRepoPG(pool),
			symptoms: catalog.NewSymptomRepoPG(pool),
			history:  lifecycle.NewHistoryRepoPG(pool),
			checks:   []db.Check{db.PoolCheck(pool)},
		}, nil
	default:
		return memoryRepositories(store.New()), nil
	}
}

func memoryRepositories(st *store.Store) *repositories {
	return &repositories{
		users:    st.Users(),
		requests: st.Requests(),
		orders:   st.Orders(),
		symptoms: st.Symptoms(),
		history:  st.History(),
		mem:      st,
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend == "s3" {
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	}
	return blobstore.NewMemoryStore(), nil
}

func openEvents(ctx context.Context, cfg *config.Config, srv *server, logger zerolog.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "kafka":
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		srv.onClose(p.Close)
		return p, nil
	case "sqs":
		return events.NewSQSPublisher(ctx, cfg.SQSQueueURL, cfg.SQSRegion)
	case "none":
		return events.Nop{}, nil
	default:
		return events.NewLogPublisher(logger), nil
	}
}

// buildServer wires every backend, service and route. The caller owns the
// returned server and must Close it.
func buildServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *server, err error) {
	srv := &server{}
	defer func() {
		if err != nil {
			_ = srv.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cal := calendar.New(loc)

	telem := telemetry.NewProvider(telemetry.Config{
		ServiceVersion:    version,
		Environment:       cfg.Env,
		RuntimeCollectors: true,
	})

	repos, err := openRepositories(ctx, cfg, srv, telem)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	srv.repos = repos

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", cfg.BlobBackend, err)
	}

	backend, err := openEvents(ctx, cfg, srv, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s events: %w", cfg.EventsBackend, err)
	}

	// Services
	identitySvc := identity.NewService(repos.users, cfg.DefaultPostalCode)
	catalogSvc := catalog.NewService(repos.symptoms)
	triageSvc := triage.NewService(repos.requests, repos.history, identitySvc, catalogSvc, cal)
	deliverySvc := delivery.NewService(repos.orders, repos.history, identitySvc, blobs, cal)

	dispatcher := notification.NewDispatcher(
		notification.NewLogSender(logger.With().Str("component", "sms").Logger()),
		identitySvc,
		notification.NewTemplateEngine(),
	)
	fanout := events.Multi{events.Logged(backend, logger)}
	if cfg.SMSEnabled {
		fanout = append(fanout, events.Logged(dispatcher, logger))
	}
	publisher := telem.Publisher(fanout)

	codec := auth.NewTokenCodec([]byte(cfg.SessionSigningKey), tokenIssuer, cfg.SessionTTL)
	revoked := auth.NewTokenRevocationStore(10*time.Minute, cfg.SessionTTL)
	srv.onClose(func() error { revoked.Close(); return nil })
	sessions := session.NewManager(identitySvc, codec, revoked, logger)

	for _, s := range []interface{ SetPublisher(events.Publisher) }{identitySvc, triageSvc, deliverySvc, sessions} {
		s.SetPublisher(publisher)
	}

	cookieOpts := session.CookieOptions{
		Secure: cfg.SessionCookieSecure,
		MaxAge: cfg.SessionTTL,
		Path:   "/",
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telem.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader, locale.LanguageHeader},
		ExposeHeaders:    []string{session.TokenHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(jsonBodyLimit, blobstore.MaxFileSize+jsonBodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(locale.Middleware())
	e.Use(session.Middleware(sessions, cookieOpts))
	e.Use(middleware.Audit(logger))

	e.GET("/health", db.HealthHandler(repos.checks...))
	e.GET("/metrics", telem.Handler())

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	api := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))

	api.GET("/locale", locale.Handler)
	session.NewHandler(sessions, cookieOpts).RegisterRoutes(api)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)
	identity.NewHandler(identitySvc).RegisterRoutes(api)
	triage.NewHandler(triageSvc).RegisterRoutes(api)
	delivery.NewHandler(deliverySvc).RegisterRoutes(api)
	notification.NewHandler(dispatcher).RegisterRoutes(api)

	if repos.mem != nil && cfg.IsDev() {
		api.POST("/dev/reset", resetHandler(repos.mem), auth.RequireRole(identity.RoleAdmin))
	}

	srv.echo = e
	return srv, nil
}

// resetHandler reseeds the in-memory store from the fixtures.
func resetHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := st.Reset(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("close backends")
		}
	}()

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("store", cfg.StoreBackend).
			Str("blobs", cfg.BlobBackend).
			Str("events", cfg.EventsBackend).
			Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
