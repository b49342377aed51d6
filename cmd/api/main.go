package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/opulence/opulence-api/internal/config"
	"github.com/opulence/opulence-api/internal/domain/coupon"
	"github.com/opulence/opulence-api/internal/domain/ledger"
	"github.com/opulence/opulence-api/internal/domain/product"
	"github.com/opulence/opulence-api/internal/domain/user"
	"github.com/opulence/opulence-api/internal/middleware"
	"github.com/opulence/opulence-api/internal/pkg/database"
	"github.com/opulence/opulence-api/internal/pkg/email"
	"github.com/opulence/opulence-api/internal/pkg/jwt"
	"github.com/opulence/opulence-api/internal/pkg/logger"
	pkgresponse "github.com/opulence/opulence-api/internal/pkg/response"
	"github.com/opulence/opulence-api/internal/pkg/storage"
)

const accessTokenTTL = 15 * time.Minute

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	// money is rendered as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Opulence API")

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, accessTokenTTL)

	// ---------- Infrastructure ----------
	var transport email.Transport = email.LogTransport{}
	if cfg.SendGridAPIKey != "" {
		transport = email.NewSendGridClient(email.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		})
	} else {
		log.Warn().Msg("SENDGRID_API_KEY not set, promotional emails are logged only")
	}
	emailService := email.NewService(transport)

	archive := newArchiveStorage(ctx, cfg)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	productRepo := product.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	couponRepo := coupon.NewRepository(db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo, &productLookupAdapter{repo: productRepo}, archive)

	promoSender := coupon.NewPromoSender(couponRepo, &audienceAdapter{repo: userRepo}, emailService, coupon.PromoConfig{
		Delay:         cfg.PromoSendDelay,
		MaxRecipients: cfg.PromoMaxRecipients,
		StorefrontURL: cfg.StorefrontURL,
	})
	couponService := coupon.NewService(
		couponRepo,
		coupon.NewCache(redis, cfg.CouponCacheTTL),
		coupon.Engine{ClampFixedDiscount: cfg.ClampFixedDiscount},
		promoSender,
		coupon.NewTracker(redis, promoSender.LockTTL()),
	)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	couponHandler := coupon.NewHandler(couponService)

	r := newRouter(cfg, jwtService, ledgerHandler, couponHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // CSV exports stream for a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// let running promotional broadcasts finish before the pools close
	couponService.Wait()

	log.Info().Msg("Server exited properly")
}

// newRouter mounts the public coupon routes and the admin back office
func newRouter(cfg *config.Config, jwtService *jwt.Service, ledgerHandler *ledger.Handler, couponHandler *coupon.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	authMiddleware := middleware.Auth(jwtService)
	adminOnly := middleware.RequireAdmin()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/coupons", couponHandler.Routes(authMiddleware))

		r.Route("/admin", func(r chi.Router) {
			r.Mount("/coupons", couponHandler.AdminRoutes(authMiddleware, adminOnly))
			r.Mount("/ledger", ledgerHandler.Routes(authMiddleware, adminOnly))
		})
	})

	return r
}

// newArchiveStorage picks S3 when credentials are configured, local disk in development, nothing otherwise
func newArchiveStorage(ctx context.Context, cfg *config.Config) storage.Storage {
	if cfg.StorageEnabled() {
		s3Storage, err := storage.NewS3Storage(ctx, storage.Config{
			S3Endpoint:  cfg.S3Endpoint,
			S3Region:    cfg.S3Region,
			S3Bucket:    cfg.S3Bucket,
			S3AccessKey: cfg.S3AccessKey,
			S3SecretKey: cfg.S3SecretKey,
			PublicURL:   cfg.S3PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 storage")
		}
		return s3Storage
	}

	if cfg.IsDevelopment() {
		local, err := storage.NewLocalStorage("./exports", "/exports")
		if err != nil {
			log.Warn().Err(err).Msg("Local export storage unavailable, archiving disabled")
			return nil
		}
		return local
	}

	log.Warn().Msg("Object storage not configured, ledger export archiving disabled")
	return nil
}

// ---------- Adapters ----------

// productLookupAdapter serves ledger.ProductLookup from the catalog table
type productLookupAdapter struct {
	repo product.Repository
}

func (a *productLookupAdapter) Snapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.ProductSnapshot, error) {
	products, err := a.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	snapshots := make(map[uuid.UUID]ledger.ProductSnapshot, len(products))
	for _, p := range products {
		snapshots[p.ID] = ledger.ProductSnapshot{
			ID:        p.ID,
			Name:      p.Name,
			Price:     p.Price,
			CostPrice: p.CostPrice,
		}
	}
	return snapshots, nil
}

// audienceAdapter serves coupon.Audience from verified customer accounts
type audienceAdapter struct {
	repo user.Repository
}

func (a *audienceAdapter) RandomVerifiedCustomers(ctx context.Context, exclude []uuid.UUID, limit int) ([]coupon.Recipient, error) {
	users, err := a.repo.RandomVerifiedCustomers(ctx, exclude, limit)
	if err != nil {
		return nil, err
	}

	recipients := make([]coupon.Recipient, 0, len(users))
	for i := range users {
		recipients = append(recipients, coupon.Recipient{
			UserID: users[i].ID,
			Email:  users[i].Email,
			Name:   users[i].DisplayName(),
		})
	}
	return recipients, nil
}
