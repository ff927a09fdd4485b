package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	common "github.com/davvoz/Ggameplatform-sub002/internal/cli/common"
	"github.com/davvoz/Ggameplatform-sub002/internal/db"
	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
	lbgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/leaderboard"
	questsgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/quests"
	usersgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/users"
	httpserver "github.com/davvoz/Ggameplatform-sub002/internal/server/http"
	"github.com/davvoz/Ggameplatform-sub002/internal/telemetry"
)

func main() {
	var cfgFile, profile string
	root := &cobra.Command{
		Use:   "gameplatformd",
		Short: "Casual gaming platform backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadConfig(cfgFile, profile)
			if err != nil {
				return err
			}
			common.MergeLogSection(v)
			common.SetupLoggerWithFile(
				v.GetString("log.level"),
				v.GetString("log.format"),
				v.GetString("log.file"),
				v.GetInt("log.max_size"),
				v.GetInt("log.max_backups"),
				v.GetInt("log.max_age"),
				v.GetBool("log.compress"),
			)

			gdb, err := db.Open(v.GetString("db.dsn"))
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := migrateAll(gdb); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			ctx := context.Background()
			var tp *telemetry.Provider
			if v.GetBool("telemetry.enabled") {
				tp, err = telemetry.NewProvider(ctx, telemetry.Config{
					ServiceName:    v.GetString("telemetry.service_name"),
					ServiceVersion: version,
					Environment:    v.GetString("telemetry.environment"),
					Endpoint:       v.GetString("telemetry.endpoint"),
					EnableTracing:  true,
					EnableMetrics:  true,
					SamplingRatio:  v.GetFloat64("telemetry.sampling_ratio"),
				})
				if err != nil {
					slog.Warn("telemetry init failed", "error", err)
				}
			}

			srv := httpserver.NewServer(gdb, httpserver.Config{
				ChatHistory: v.GetInt("chat.history"),
				RoomSize:    v.GetInt("briscola.room_size"),
				RedisURL:    v.GetString("redis.url"),
				Trace:       tp != nil,
			})

			addr := v.GetString("http.addr")
			if addr == "" {
				addr = ":8080"
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(addr) }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				slog.Info("shutdown signal", "signal", sig.String())
			case err := <-errCh:
				return err
			}
			shCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shCtx); err != nil {
				slog.Error("http shutdown", "error", err)
			}
			if tp != nil {
				if err := tp.Shutdown(shCtx); err != nil {
					slog.Error("telemetry shutdown", "error", err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml), e.g. configs/server.yaml")
	root.PersistentFlags().StringVar(&profile, "profile", "", "config profile overlay (profiles.<name>)")
	root.Flags().String("http.addr", ":8080", "http api listen address")
	root.Flags().String("db.dsn", "", "database DSN/URL; for sqlite can be file:path.db or :memory:")
	root.Flags().String("redis.url", "", "optional redis URL for the leaderboard cache")
	_ = viper.BindPFlags(root.Flags())

	root.AddCommand(migrateCmd(&cfgFile, &profile))
	root.AddCommand(seedCmd(&cfgFile, &profile))
	root.AddCommand(inspectCmd(&cfgFile, &profile))

	if err := root.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

var version = "dev"

// loadConfig reads the optional YAML file, extracts the `server` section
// and overlays the requested profile; env vars win with the
// GAMEPLATFORM_ prefix.
func loadConfig(cfgFile, profile string) (*viper.Viper, error) {
	common.SetupLoggerWithFile("info", "console", "", 0, 0, 0, false)
	viper.SetEnvPrefix("GAMEPLATFORM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	v := viper.GetViper()
	if cfgFile != "" {
		fv, err := common.LoadWithIncludes(cfgFile, nil)
		if err != nil {
			slog.Warn("read config", "error", err)
			return v, nil
		}
		slog.Info("config loaded", "file", cfgFile)
		if fv.Sub("server") != nil || profile != "" {
			sec := ""
			if fv.Sub("server") != nil {
				sec = "server"
			}
			pv, err := common.ApplySectionAndProfile(fv, sec, profile)
			if err != nil {
				return nil, err
			}
			fv = pv
		}
		if err := v.MergeConfigMap(fv.AllSettings()); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func openDB(cfgFile, profile string) (*gorm.DB, *viper.Viper, error) {
	v, err := loadConfig(cfgFile, profile)
	if err != nil {
		return nil, nil, err
	}
	gdb, err := db.Open(v.GetString("db.dsn"))
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return gdb, v, nil
}

func migrateAll(gdb *gorm.DB) error {
	for _, fn := range []func(*gorm.DB) error{
		usersgorm.AutoMigrate,
		gamesgorm.AutoMigrate,
		lbgorm.AutoMigrate,
		questsgorm.AutoMigrate,
	} {
		if err := fn(gdb); err != nil {
			return err
		}
	}
	return nil
}

func migrateCmd(cfgFile, profile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := openDB(*cfgFile, *profile)
			if err != nil {
				return err
			}
			if err := migrateAll(gdb); err != nil {
				return err
			}
			slog.Info("migrations complete")
			return nil
		},
	}
}
