package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/airsense-io/csi-sense/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.List {
		return listSessions(ctx, store)
	}
	return renderSession(ctx, store, config, logger)
}

func listSessions(ctx context.Context, store *storage.SqliteStore) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no capture sessions found")
		return nil
	}

	for _, sess := range sessions {
		label := sess.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("%4d  %s  %-16s %s (%s)\n",
			sess.ID,
			humanize.Time(sess.StartTime),
			label,
			sess.DeviceID,
			sess.DeviceType)
	}
	return nil
}

func renderSession(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	iter, err := store.ReadSamples(ctx, config.SessionID)
	if err != nil {
		return err
	}
	defer iter.Close()

	logger.Info("reading capture session",
		slog.Int64("session", config.SessionID),
		slog.String("label", iter.Session().Label))

	data := NewHeatmapData(config.MinAmplitude, config.MaxAmplitude)
	for iter.Next(ctx) {
		data.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return err
	}
	if data.Height == 0 {
		return fmt.Errorf("session %d has no samples", config.SessionID)
	}

	bounds := data.Bounds()
	logger.Info("finished reading samples",
		slog.Group("stats",
			slog.Int("samples", data.Height),
			slog.Int("subcarriers", data.Width),
			slog.String("duration", (time.Duration(data.DurationMS())*time.Millisecond).String()),
			slog.String("minAmplitude", fmt.Sprintf("%0.2f", bounds.Min)),
			slog.String("maxAmplitude", fmt.Sprintf("%0.2f", bounds.Max)),
		))

	renderer := NewHeatmapRenderer(RenderConfig{
		ColorTheme: config.Theme,
		CellWidth:  config.CellWidth,
	})

	logger.Info("rendering heatmap",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
		))

	img, err := renderer.Render(data, iter.Session())
	if err != nil {
		return fmt.Errorf("rendering heatmap: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
