package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"relaygate/internal/chathandler"
	"relaygate/internal/config"
	"relaygate/internal/credentials"
	"relaygate/internal/httpapi"
	"relaygate/internal/providers"
	"relaygate/internal/queue"
	"relaygate/internal/requestlog"
	"relaygate/internal/storage"
	"relaygate/internal/usage"
	"relaygate/internal/utils"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "relaygate",
		Short: "relaygate is a self-hosted multi-provider LLM chat-completions gateway",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "relaygate.toml", "path to the TOML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as TOML, with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(configPath)
		},
	})

	root.AddCommand(serveCmd, configCmd)
	// With no subcommand given, default to serving — keeps `relaygate
	// --config ...` working the same way it did before serve/config
	// existed.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return serve(configPath)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// showConfig prints the resolved configuration back out as TOML. The
// secret values (database.dsn, admin.jwt_secret, redis.password,
// logging.s3_secret_access_key) are redacted, since this command's
// purpose is letting an operator sanity-check what got loaded, not leak
// secrets into a terminal scrollback or a bug report.
func showConfig(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.DSN != "" {
		cfg.Database.DSN = "[redacted]"
	}
	if cfg.Admin.JWTSecret != "" {
		cfg.Admin.JWTSecret = "[redacted]"
	}
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = "[redacted]"
	}
	if cfg.Logging.S3SecretAccessKey != "" {
		cfg.Logging.S3SecretAccessKey = "[redacted]"
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func serve(configPath string) error {
	log := utils.NewLogger("relaygate", utils.Info)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:                 cfg.Database.DSN,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:     cfg.Database.ConnMaxIdleTime,
		ConnectionCacheSize: cfg.Database.ConnectionCacheSize,
		ConnectionCacheTTL:  cfg.Database.ConnectionCacheTTL,
		AliasCacheSize:      cfg.Database.AliasCacheSize,
		AliasCacheTTL:       cfg.Database.AliasCacheTTL,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	connections := db.NewConnectionRepository()
	providersRepo := db.NewProviderRepository()
	aliases := db.NewAliasRepository()
	combos := db.NewComboRepository()
	pricing := db.NewPricingRepository()
	settings := db.NewSettingsRepository()
	usageRepo := storage.NewUsageRepository(db)

	httpClient := &http.Client{Timeout: cfg.Provider.RequestTimeout}
	registry := providers.NewRegistry(httpClient, cfg.Provider.KiroTokenURL)
	selector := credentials.NewSelector(connections, providersRepo, registry, log)

	usageQueueCfg := queue.DefaultConfig("usage")
	usageQueueCfg.UseRedis = true
	usageQueueCfg.RedisAddr = cfg.Redis.Address
	usageQueueCfg.RedisPassword = cfg.Redis.Password
	usageQueueCfg.RedisDB = cfg.Redis.DB
	usageQueue, err := queue.NewRedisQueue(usageQueueCfg)
	if err != nil {
		return fmt.Errorf("connect usage queue to redis: %w", err)
	}
	usageDLQ, err := queue.NewRedisDeadLetterQueue(usageQueueCfg)
	if err != nil {
		return fmt.Errorf("connect usage dead-letter queue to redis: %w", err)
	}
	usageWorker := usage.NewWorker(usageQueue, usageDLQ, usage.NewPostgresSink(usageRepo), usageQueueCfg, log)

	textLog, err := requestlog.NewTextLog(filepath.Join(filepath.Dir(cfg.Logging.FilePathTemplate), "log.txt"))
	if err != nil {
		return fmt.Errorf("open request text log: %w", err)
	}
	var snapshots *requestlog.SnapshotWriter
	var archive *requestlog.ArchiveWorker
	if cfg.Logging.SnapshotsEnabled {
		snapshots, err = requestlog.NewSnapshotWriter(cfg.Logging.FilePathTemplate, cfg.Logging.MaxSize, cfg.Logging.MaxFiles, cfg.Logging.BufferSize, cfg.Logging.FlushInterval)
		if err != nil {
			return fmt.Errorf("open snapshot writer: %w", err)
		}
		if cfg.Logging.S3ArchiveEnabled {
			hostname, _ := os.Hostname()
			s3Writer, err := requestlog.NewS3Writer(context.Background(), cfg.Logging.S3Bucket, cfg.Logging.S3Region, cfg.Logging.S3Prefix, hostname, cfg.Logging.S3AccessKeyID, cfg.Logging.S3SecretAccessKey)
			if err != nil {
				return fmt.Errorf("connect request-log s3 archive: %w", err)
			}
			archiveQueueCfg := queue.DefaultConfig("requestlog-archive")
			archiveQueueCfg.UseRedis = true
			archiveQueueCfg.RedisAddr = cfg.Redis.Address
			archiveQueueCfg.RedisPassword = cfg.Redis.Password
			archiveQueueCfg.RedisDB = cfg.Redis.DB
			archiveQueue, err := queue.NewRedisQueue(archiveQueueCfg)
			if err != nil {
				return fmt.Errorf("connect request-log archive queue to redis: %w", err)
			}
			archive = requestlog.NewArchiveWorker(archiveQueue, s3Writer, archiveQueueCfg, log)
		}
	}
	recorder := requestlog.NewRecorder(textLog, snapshots, archive)

	core := chathandler.NewCore(connections, providersRepo, pricing, selector, registry, usage.NewInFlight(), usageWorker, recorder, log)
	chatHandler := chathandler.NewHandler(core, aliases, combos, log)

	router := httpapi.NewRouter(&httpapi.Dependencies{
		Chat:        chatHandler,
		Connections: connections,
		Providers:   providersRepo,
		Aliases:     aliases,
		Combos:      combos,
		Pricing:     pricing,
		Settings:    settings,
		Log:         log,
		JWTSecret:   []byte(cfg.Admin.JWTSecret),
		SessionTTL:  cfg.Admin.SessionTTL,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go usageWorker.Start(ctx)
	if archive != nil {
		go archive.Start(ctx)
	}

	go func() {
		log.Info("relaygate listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	cancel()
	_ = usageWorker.Stop(shutdownCtx)
	if archive != nil {
		_ = archive.Stop(shutdownCtx)
	}
	recorder.Close()

	log.Info("server exited")
	return nil
}
