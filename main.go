package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cppla/aishort/config"
	"github.com/cppla/aishort/oracle"
	"github.com/cppla/aishort/routes"
	"github.com/cppla/aishort/services"
	"github.com/cppla/aishort/storage"
	"github.com/cppla/aishort/utils"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/config.json", "path to the JSON configuration file")
	pflag.Parse()
	config.SetPath(*configPath)
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		utils.Sugar.Fatalf("open database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	namer, err := oracle.New(ctx, oracle.Options{
		Provider:    cfg.OracleProvider,
		Endpoint:    cfg.OracleEndpoint,
		Model:       cfg.OracleModel,
		APIKey:      cfg.OracleAPIKey,
		BearerToken: cfg.OracleBearerToken,
		StaticWord:  cfg.OracleStaticWord,
		Timeout:     cfg.OracleTimeout(),
	})
	if err != nil {
		// aliases still get the fallback label without an oracle
		utils.Logger.Warn("naming oracle disabled", zap.String("provider", cfg.OracleProvider), zap.Error(err))
		namer = oracle.Disabled{}
	}

	store := storage.NewGormStore(db)
	rdb := utils.NewRedis(cfg)
	synth := services.NewSynthesizer(namer, services.SynthesizerOptions{
		OracleTimeout:  cfg.OracleTimeout(),
		FallbackLabel:  cfg.AliasFallbackLabel,
		MaxLabelLength: cfg.AliasMaxLabelLength,
	}, utils.Named("synthesizer"))
	allocator := services.NewAllocator(store, synth, services.AllocatorOptions{
		MaxAttempts: cfg.AliasMaxAttempts,
		Budget:      cfg.AllocationBudget(),
		TTL:         cfg.RecordTTL(),
	}, utils.Named("allocator"))
	resolver := services.NewResolver(store, services.ResolverOptions{
		Cache:    storage.NewRedisCache(rdb, utils.Named("cache")),
		CacheTTL: cfg.CacheTTL(),
	}, utils.Named("resolver"))
	shortener := services.NewShortener(store, allocator, resolver, services.ShortenerOptions{
		Retention: cfg.Retention(),
	}, utils.Named("shortener"))

	sweeperDone := utils.StartRecordSweeper(ctx, cfg.SweepInterval(), shortener.Sweep)

	r := routes.SetupRouter(cfg, shortener)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err = utils.GraceServer(":"+cfg.AppPort, r, func() {
		cancel()
		<-sweeperDone
		// let in-flight click increments land before the pool closes
		shortener.Wait()
		if rdb != nil {
			_ = rdb.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
	utils.Sugar.Info("server exited")
}
