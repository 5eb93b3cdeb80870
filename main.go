package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yeremiapane/rto-lookup/config"
	"github.com/yeremiapane/rto-lookup/hub"
	"github.com/yeremiapane/rto-lookup/router"
	"github.com/yeremiapane/rto-lookup/services"
	"github.com/yeremiapane/rto-lookup/utils"
)

func main() {
	utils.InitLogger()

	if err := config.LoadDotEnv(); err != nil {
		utils.ErrorLogger.Warnf("Warning: could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	gateway, err := services.NewGatewayServiceFromConfig(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Payment gateway: %v", err)
	}

	ledger := services.NewOrderLedger(cfg.LedgerTTL)
	ledger.Start()
	defer ledger.Stop()

	monitor := services.NewPaymentMonitorFromConfig(gateway, cfg, ledger)
	vehicles := services.NewVehicleServiceFromConfig(cfg)

	tokens, err := utils.NewUnlockTokens(cfg.UnlockTokenSecret, cfg.UnlockTokenTTL)
	if err != nil {
		utils.ErrorLogger.Fatalf("Unlock tokens: %v", err)
	}

	lookups := services.NewLookupService(gateway, monitor, vehicles, tokens, cfg.LedgerTTL)
	wsHub := hub.NewHub()

	r := router.SetupRouter(router.Dependencies{
		Config:  cfg,
		Lookups: lookups,
		Metrics: monitor,
		Tokens:  tokens,
		Hub:     wsHub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "rto-lookup"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	utils.InfoLogger.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	wsHub.CloseAll()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Server shutdown failed: %v", err)
		return
	}

	utils.InfoLogger.Println("Server stopped.")
}
