package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account"
	accountentity "github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
	accountrepo "github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/miniapp"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/setting"
	settingrepo "github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/setting/repo"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/stats"
	statsrepo "github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/stats/repo"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/cache"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it;
	// best-effort: without one, defaults or the real env apply
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-blog-identity-go")

	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	redisClient, err := cache.New(cache.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("redis connect: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accountRepo := accountrepo.NewAccountRepo(sqlxDB, nil)
	settingRepo := settingrepo.NewRepo(sqlxDB)
	statsRepo := statsrepo.NewStatsRepo(sqlxDB)
	for _, ensure := range []func(context.Context) error{
		accountRepo.EnsureTable, settingRepo.EnsureTable, statsRepo.EnsureTable,
	} {
		if err := ensure(ctx); err != nil {
			sugar.Fatalf("ensure tables: %v", err)
		}
	}

	m := metrics.New()
	settingSvc := setting.NewService(settingRepo, redisClient, sugar)
	exchanger := miniapp.NewClient(5 * time.Second)
	accountSvc := account.NewService(accountRepo, settingSvc, exchanger, m, sugar)

	if err := bootstrapOperator(ctx, accountRepo, sugar); err != nil {
		sugar.Fatalf("bootstrap operator account: %v", err)
	}

	issuer := os.Getenv("TOKEN_ISSUER")
	if issuer == "" {
		issuer = "blog-identity"
	}
	tokenSvc, err := token.NewService(issuer)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}

	accountHandler := account.NewHandler(accountSvc, tokenSvc, m, sugar, account.HandlerConfigFromEnv())
	settingHandler := setting.NewHandler(settingSvc, sugar)
	statsHandler := stats.NewHandler(stats.NewService(statsRepo), sugar)

	handler := router.RegisterRoutes(sugar, accountHandler, settingHandler, statsHandler, tokenSvc)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8432"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// bootstrapOperator seeds the single admin account from the environment when
// the store has none yet. Out-of-band setup stays possible; this is a
// convenience for fresh deployments.
func bootstrapOperator(ctx context.Context, repo *accountrepo.AccountRepo, sugar *zap.SugaredLogger) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}
	_, err := repo.FindPrimary(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	a := &accountentity.Account{
		Username:     username,
		Password:     password,
		Email:        os.Getenv("ADMIN_EMAIL"),
		Role:         accountentity.RoleAdmin,
		LoginEnabled: true,
	}
	if _, err := repo.Create(ctx, a); err != nil {
		return err
	}
	sugar.Infow("seeded operator account", "account_id", a.ID, "username", username)
	return nil
}
