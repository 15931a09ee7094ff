package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolLedger/internal/config"
	"poolLedger/internal/dex"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := dex.NewEventDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	out, err := storage.CreateJSONL(cfg.Out)
	if err != nil {
		return err
	}
	rejects, err := storage.CreateJSONL(cfg.Errors)
	if err != nil {
		out.Close()
		return err
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Strings("topics", decoder.Topics()),
	)

	stats, err := decodeFile(ctx, decoder, cfg.In, out, rejects)
	if closeErr := errors.Join(out.Close(), rejects.Close()); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("removed", stats.Removed),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

type decodeStats struct {
	Total   int
	Decoded int
	Skipped int
	Removed int
	Failed  int
}

// decodeFile turns every decodable raw log in path into a typed event on
// out. Rejected lines go to rejects; foreign topics and removed logs are
// only counted.
func decodeFile(ctx context.Context, decoder dex.Decoder, path string, out, rejects *storage.JSONLWriter) (decodeStats, error) {
	var stats decodeStats
	err := storage.ReadJSONLNumbered(path, func(n int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			rejected := model.NewDecodeError(n, model.LogRecord{}, model.ReasonMalformedLine, err)
			rejected.Raw = string(line)
			return rejects.Write(rejected)
		}

		switch topic0 := record.Topic0(); {
		case topic0 == "":
			stats.Failed++
			return rejects.Write(model.NewDecodeError(n, record, model.ReasonMissingTopic0, errors.New("missing topic0")))
		case !decoder.CanDecode(topic0):
			stats.Skipped++
			return nil
		case record.Removed:
			stats.Removed++
			return nil
		}

		event, err := decoder.Decode(record)
		if err != nil {
			stats.Failed++
			return rejects.Write(model.NewDecodeError(n, record, model.ReasonDecodeFailed, err))
		}
		stats.Decoded++
		return out.Write(event)
	})
	if err != nil {
		return stats, fmt.Errorf("decode %s: %w", path, err)
	}
	return stats, nil
}
