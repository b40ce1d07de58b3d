// Package app wires the sensing pipeline to its front-end device, the
// optional HTTP API, the optional capture store and the telemetry stream,
// and runs the whole assembly until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airsense-io/csi-sense/internal/device"
	"github.com/airsense-io/csi-sense/internal/pipeline"
	"github.com/airsense-io/csi-sense/internal/server"
	"github.com/airsense-io/csi-sense/internal/storage"
	"github.com/airsense-io/csi-sense/internal/telemetry"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	options := []func(*pipeline.Pipeline){pipeline.WithLogger(logger)}
	if config.Telemetry.Stdout {
		options = append(options, pipeline.WithSink(telemetry.NewStream(os.Stdout)))
	}

	pipe, err := pipeline.New(pipeline.Config{
		WindowSamples:           config.Sensing.WindowSamples(),
		Subcarriers:             config.Sensing.Subcarriers,
		QueueSize:               config.Sensing.QueueSize,
		EnablePresenceDetection: config.Sensing.EnablePresenceDetection,
		Features:                config.Sensing.features(),
		Thresholds:              config.thresholds(),
	}, options...)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	if config.Sensing.EnablePoseClassification {
		// Recorded in the session metadata, but no pose model is wired in:
		// the rule-based procedure keeps running unchanged.
		logger.Warn("pose classification enabled without a model, using rule-based detection only")
	}

	src, deviceID, err := createSource(&config.Device, logger)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	var recorder *storage.Recorder
	if config.Storage.Enabled {
		store, sErr := createStorage(&config.Storage)
		if sErr != nil {
			return fmt.Errorf("creating storage: %w", sErr)
		}
		defer store.Close()

		sessionID, sErr := store.CreateSession(ctx, config.Storage.Label, config.Device.Type, deviceID, config.Sensing)
		if sErr != nil {
			return fmt.Errorf("creating session: %w", sErr)
		}
		logger.Info("recording capture session",
			slog.Int64("session", sessionID),
			slog.String("label", config.Storage.Label))

		recorder = storage.NewRecorder(store, sessionID,
			storage.WithRecorderLogger(logger),
			storage.WithBatchSize(config.Storage.BatchSize))
		pipe.RegisterSampleCallback(recorder.RecordSample)
		pipe.RegisterResultCallback(recorder.RecordResult)
	}

	var srv *server.Server
	serverErr := make(chan error, 1)
	if config.Server.Enabled {
		srv = server.New(pipe, server.WithLogger(logger))
		pipe.RegisterSampleCallback(srv.BroadcastSample)
		pipe.RegisterResultCallback(srv.BroadcastResult)

		go func() {
			if lErr := srv.Listen(config.Server.ListenAddr); lErr != nil {
				serverErr <- fmt.Errorf("http server: %w", lErr)
			}
		}()
	}

	if recorder != nil {
		recorder.Start()
	}
	pipe.Start()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErr := make(chan error, 1)
	go func() {
		runErr <- src.Run(runCtx, pipe.Ingest)
	}()

	select {
	case err = <-runErr:
	case err = <-serverErr:
		// Frame delivery must stop before pipe.Stop closes the queue.
		cancelRun()
		if rErr := <-runErr; rErr != nil && !errors.Is(rErr, context.Canceled) {
			logger.Warn(fmt.Sprintf("stopping device: %s", rErr.Error()))
		}
	case <-ctx.Done():
		err = <-runErr
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	pipe.Stop()
	if recorder != nil {
		recorder.Stop()
		if dropped := recorder.Dropped(); dropped > 0 {
			logger.Warn("recorder could not keep up", slog.Uint64("dropped", dropped))
		}
	}
	if srv != nil {
		if sErr := srv.Shutdown(); sErr != nil {
			logger.Warn(fmt.Sprintf("shutting down http server: %s", sErr.Error()))
		}
	}

	stats := pipe.Stats()
	logger.Info("pipeline stopped",
		slog.Uint64("received", stats.Received),
		slog.Uint64("dropped", stats.Dropped),
		slog.Uint64("inferences", stats.Inferences))

	return err
}

// createSource builds the configured frame source and returns it along with
// a device identifier for session records.
func createSource(config *DeviceConfig, logger *slog.Logger) (device.Source, string, error) {
	switch strings.ToLower(config.Type) {
	case DeviceSerial:
		src, err := device.OpenSerial(config.Port, config.BaudRate, device.WithSerialLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return src, config.Port, nil

	case DeviceReplay:
		f, err := os.Open(config.File)
		if err != nil {
			return nil, "", fmt.Errorf("opening replay file: %w", err)
		}
		return device.NewReaderSource(f, device.WithReaderLogger(logger)), filepath.Base(config.File), nil

	default:
		return nil, "", fmt.Errorf("unknown device type '%s'", config.Type)
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbDir := config.DataDirectory
	if !filepath.IsAbs(dbDir) {
		dbDir = filepath.Join(wd, dbDir)
	}

	stat, err := os.Stat(dbDir)
	if err != nil {
		return nil, fmt.Errorf("storage directory '%s': %w", dbDir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbDir)
	}

	dbPath := filepath.Join(dbDir, fmt.Sprintf("csi_capture_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
