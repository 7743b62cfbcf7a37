package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/les2feup/citylink/internal/bootstrap"
	"github.com/les2feup/citylink/internal/config"
	"github.com/les2feup/citylink/internal/connector"
	"github.com/les2feup/citylink/internal/coreactions"
	"github.com/les2feup/citylink/internal/debug"
	"github.com/les2feup/citylink/internal/domain"
	"github.com/les2feup/citylink/internal/metrics"
	"github.com/les2feup/citylink/internal/platform"
	"github.com/les2feup/citylink/internal/scheduler"
	"github.com/les2feup/citylink/internal/serializer"
	"github.com/les2feup/citylink/internal/store"
	"github.com/les2feup/citylink/internal/transport"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the runtime: attach to the broker and start serving",
	RunE:  runRuntime,
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(config.CitylinkHome(), "config.toml")
}

func runRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.Default()

	var codec serializer.Codec
	switch cfg.Serializer.Codec {
	case "msgpack":
		codec = serializer.NewMsgPack()
	default:
		codec = serializer.NewJSON()
	}

	identity := domain.Identity{
		Model:    cfg.Identity.Model,
		UUID:     cfg.Identity.UUID,
		ClientID: cfg.Identity.UUID,
		Version:  domain.Version{Model: cfg.Identity.InstanceVersion, Instance: cfg.Identity.UUID},
	}

	trans := transport.NewMQTT(transport.MQTTConfig{
		BrokerURL: cfg.Broker.URL,
		ClientID:  identity.ClientID,
		Username:  cfg.Broker.Username,
		Password:  cfg.Broker.Password,
	})

	reg := prometheus.NewRegistry()
	var metricsReg *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsReg = metrics.New(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer db.Close()

	sched := scheduler.New(scheduler.DefaultConfig(), log)

	retry := connector.DefaultRetryConfig()
	retry.MaxTries = cfg.Broker.RetryMax
	if d, err := time.ParseDuration(cfg.Broker.RetryBaseWait); err == nil && d > 0 {
		retry.BaseWait = d
	}

	rt := connector.New(connector.Config{
		Identity:  identity,
		Transport: trans,
		Codec:     codec,
		Scheduler: sched,
		Resetter:  platform.NewProcessResetter(),
		Retry:     retry,
		Log:       log,
		Metrics:   metricsReg,
		Mirror:    db,
	})

	coreReg := coreactions.New(cfg.VFS.Root, nil)
	if err := rt.RegisterCoreActions(coreReg); err != nil {
		return fmt.Errorf("register core actions: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rt.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if _, err := bootstrap.Load(cfg.VFS.Root, rt); err != nil {
		log.Error("bootstrap: user plugin failed", "err", err)
	}

	if cfg.Debug.Enabled {
		go func() {
			if err := http.ListenAndServe(cfg.Debug.Addr, debug.Router(rt)); err != nil {
				log.Error("debug server stopped", "err", err)
			}
		}()
	}

	log.Info("citylink runtime running", "model", identity.Model, "uuid", identity.UUID)
	return rt.Run(ctx)
}
