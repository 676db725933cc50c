package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/controllers"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/helpers/utils"
	"github.com/address-resolver/routes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}

	logger, err := utils.NewLogger(appCfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting address resolver API", zap.String("env", appCfg.Env))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := services.Bootstrap(ctx, appCfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Bootstrap failed", zap.Error(err))
	}

	addressController := controllers.NewAddressController(rt.Addresses, rt.Probes, logger.Named("http"))
	adminController := controllers.NewAdminController(rt.Admin, logger.Named("http"))

	if appCfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, addressController, adminController, routes.Options{
		RateLimit: appCfg.HTTP.RateLimit,
		RateBurst: appCfg.HTTP.RateBurst,
		Gzip:      appCfg.HTTP.Gzip,
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:              ":" + appCfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("port", appCfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	rt.Close(shutdownCtx)

	logger.Info("Server exited")
}
