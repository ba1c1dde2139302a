package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daemonp/ajax2mqtt/internal/account"
	"github.com/daemonp/ajax2mqtt/internal/ajax"
	"github.com/daemonp/ajax2mqtt/internal/cache"
	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/homeassistant"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/mqtt"
)

const snapshotTimeout = 60 * time.Second

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	// Log in to the Ajax cloud
	client := ajax.NewClient(&cfg.Ajax, logger)
	if err := client.Login(context.Background()); err != nil {
		logger.Error("Failed to log in to Ajax cloud: %v", err)
		os.Exit(1)
	}

	acc := account.New(cfg, logger)

	// Load cache if enabled
	if cfg.Cache {
		cacheData, err := cache.LoadCache()
		if err != nil {
			logger.Warning("Failed to load cache: %v", err)
			if err := cache.DeleteCache(); err != nil {
				logger.Warning("Failed to delete corrupt cache: %v", err)
			}
		} else if cacheData != nil {
			acc.Restore(cacheData)
			logger.Info("Loaded model from cache")
		}
	}

	// Fetch the initial snapshot
	snapCtx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	snapshot, err := client.FetchSnapshot(snapCtx)
	cancel()
	if err != nil {
		logger.Error("Failed to fetch initial snapshot: %v", err)
		os.Exit(1)
	}
	acc.ApplySnapshot(snapshot)

	// Connect to MQTT broker
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, acc, client, logger)
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		os.Exit(1)
	}

	// Initialize Home Assistant integration if enabled
	if cfg.HomeAssistant.Discovery {
		ha := homeassistant.New(&cfg.HomeAssistant, cfg.Devices, mqttClient, acc, logger)
		ha.Start()
	}

	// Start the push event stream
	sse := ajax.NewSSEClient(&cfg.Ajax, logger)
	sse.SetHandler(acc.HandleMessage)
	if !sse.Start() {
		logger.Error("Failed to start event stream")
		acc.Close()
		mqttClient.Close()
		os.Exit(1)
	}

	// Start the snapshot reconciler
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	reconcilerDone := make(chan struct{})
	go runReconciler(reconcilerCtx, reconcilerDone, cfg, client, acc, logger)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown: stop both producers first, then save the model,
	// then close the account so the MQTT pump drains and exits.
	logger.Info("Shutting down...")
	stopReconciler()
	<-reconcilerDone
	sse.Stop()

	if cfg.Cache {
		if err := cache.SaveCache(acc.SnapshotData()); err != nil {
			logger.Warning("Failed to save cache: %v", err)
		} else {
			logger.Info("Saved model to cache")
		}
	}

	acc.Close()
	mqttClient.Close()
}

// runReconciler polls the authoritative snapshot on a fixed period and on
// demand when the account asks for an early refresh.
func runReconciler(ctx context.Context, done chan struct{}, cfg *config.Config, client *ajax.Client, acc *account.Account, logger *log.Logger) {
	defer close(done)

	ticker := time.NewTicker(time.Duration(cfg.Ajax.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcile(ctx, client, acc, logger)
		case hubID := <-acc.RefreshRequests():
			logger.Debug("Early refresh requested for hub %s", hubID)
			reconcile(ctx, client, acc, logger)
		}
	}
}

func reconcile(ctx context.Context, client *ajax.Client, acc *account.Account, logger *log.Logger) {
	snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	snapshot, err := client.FetchSnapshot(snapCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("Snapshot poll failed: %v", err)
		return
	}
	acc.ApplySnapshot(snapshot)
}
