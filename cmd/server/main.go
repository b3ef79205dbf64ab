package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"minired/internal/config"
	"minired/internal/server"
)

var version = "1.0.0" // Set during build with -ldflags

var rootCmd = &cobra.Command{
	Use:   "minired",
	Short: "minired - in-memory key-value server",
	Long: `minired is an in-memory key-value server speaking a line-oriented
subset of the RESP protocol, with string, list, hash, set and pub/sub
support, per-key expiration and AOF/RDB persistence.`,
	Version: version,
	RunE:    runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLogging(cfg)

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	return srv.Start(ctx)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	} else if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Host: %s\n", cfg.Host)
		fmt.Printf("Port: %d\n", cfg.Port)
		fmt.Printf("Log Level: %s\n", cfg.LogLevel)
		fmt.Printf("Data Directory: %s\n", cfg.DataDir)
		fmt.Printf("Persistence Enabled: %t\n", cfg.PersistenceEnabled)
		fmt.Printf("AOF Enabled: %t (sync: %s)\n", cfg.AOFEnabled, cfg.AOFSyncPolicy)
		fmt.Printf("RDB Enabled: %t (compression: %t, checksum: %t)\n",
			cfg.RDBEnabled, cfg.RDBCompression, cfg.RDBChecksum)
		fmt.Printf("RDB Save Conditions: %s\n", cfg.RDBSaveConditionsRaw)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("minired v%s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("host", "H", "localhost", "Host to bind to")
	rootCmd.PersistentFlags().IntP("port", "p", 6379, "Port to listen on")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Data directory for persistence")
	rootCmd.PersistentFlags().Bool("aof-enabled", true, "Enable the append-only log")
	rootCmd.PersistentFlags().String("aof-sync-policy", "everysec", "AOF fsync policy (always, everysec, no)")
	rootCmd.PersistentFlags().Bool("rdb-enabled", true, "Enable snapshots")
	rootCmd.PersistentFlags().Bool("persistence-enabled", true, "Master persistence switch")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Prometheus listen address (empty disables)")

	bind := func(key, flag string) {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
	bind("host", "host")
	bind("port", "port")
	bind("log_level", "log-level")
	bind("log_format", "log-format")
	bind("data_dir", "data-dir")
	bind("aof_enabled", "aof-enabled")
	bind("aof_sync_policy", "aof-sync-policy")
	bind("rdb_enabled", "rdb-enabled")
	bind("persistence_enabled", "persistence-enabled")
	bind("metrics_addr", "metrics-addr")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
