package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// DefaultCursorID names the cursor entity when none is configured.
const DefaultCursorID = "ledger"

// FlushingStore is the write-back store the runner commits through.
type FlushingStore interface {
	storage.Store
	Flush(ctx context.Context) (int, error)
}

// RunnerConfig controls a ledger run.
type RunnerConfig struct {
	InputPath  string
	FlushEvery int
	CursorID   string
	// OnFlush is called with the number of entities written by each flush.
	OnFlush func(records int)
}

// Summary counts the events seen by one run.
type Summary struct {
	Total   int
	Applied int
	Skipped int
	Resumed int
	Failed  int
	Flushed int
}

// Runner feeds a typed-events file through the engine in file order and
// commits the store periodically together with the cursor.
type Runner struct {
	cfg    RunnerConfig
	engine *Engine
	store  FlushingStore
	logger *zap.Logger
}

func NewRunner(cfg RunnerConfig, engine *Engine, store FlushingStore, logger *zap.Logger) *Runner {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 1000
	}
	if cfg.CursorID == "" {
		cfg.CursorID = DefaultCursorID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, engine: engine, store: store, logger: logger}
}

// chainCursor is the run's view of one chain's cursor. resume is the
// position stored before the run started and is never moved by the run.
type chainCursor struct {
	cursor     *model.Cursor
	resume     *model.Cursor
	positioned bool
	dirty      bool
}

// advance moves the cursor forward to (block, logIndex).
func (c *chainCursor) advance(block, logIndex uint64) {
	if c.positioned && !c.cursor.After(block, logIndex) {
		return
	}
	c.cursor.BlockNumber = block
	c.cursor.LogIndex = logIndex
	c.positioned = true
	c.dirty = true
}

// Run applies every event after its chain's stored cursor.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	if r.engine == nil || r.store == nil {
		return summary, fmt.Errorf("runner is not configured")
	}
	if r.cfg.InputPath == "" {
		return summary, fmt.Errorf("input path is required")
	}

	cursors := make(map[uint64]*chainCursor)
	pending := 0
	err := storage.ReadJSONL(r.cfg.InputPath, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			r.logger.Warn("decode typed event", zap.Error(err))
			return nil
		}

		cc, ok := cursors[record.ChainID]
		if !ok {
			loaded, err := r.loadCursor(ctx, record.ChainID)
			if err != nil {
				return err
			}
			cursors[record.ChainID] = loaded
			cc = loaded
		}
		if cc.resume != nil && !cc.resume.After(record.BlockNumber, record.LogIndex) {
			summary.Resumed++
			return nil
		}

		applied, err := r.engine.Apply(ctx, record)
		if err != nil {
			if !IsEventError(err) {
				return err
			}
			summary.Failed++
			r.logger.Warn("apply event", zap.Error(err))
		} else if applied {
			summary.Applied++
		} else {
			summary.Skipped++
		}

		cc.advance(record.BlockNumber, record.LogIndex)
		pending++
		if pending >= r.cfg.FlushEvery {
			if err := r.commit(ctx, cursors, &summary); err != nil {
				return err
			}
			pending = 0
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	if pending > 0 {
		if err := r.commit(ctx, cursors, &summary); err != nil {
			return summary, err
		}
	}

	r.logger.Info("ledger complete",
		zap.Int("chains", len(cursors)),
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("resumed", summary.Resumed),
		zap.Int("failed", summary.Failed),
		zap.Int("flushed", summary.Flushed),
	)
	return summary, nil
}

// loadCursor reads the stored cursor of chainID, if any.
func (r *Runner) loadCursor(ctx context.Context, chainID uint64) (*chainCursor, error) {
	id := model.CursorID(r.cfg.CursorID, chainID)
	stored, ok, err := storage.Load[model.Cursor](ctx, r.store, model.KindCursor, id)
	if err != nil {
		return nil, fmt.Errorf("load cursor %s: %w", id, err)
	}
	if !ok {
		return &chainCursor{cursor: &model.Cursor{ID: id, ChainID: chainID}}, nil
	}

	r.logger.Info("resuming from cursor",
		zap.Uint64("chain_id", chainID),
		zap.Uint64("block", stored.BlockNumber),
		zap.Uint64("log_index", stored.LogIndex),
	)
	resume := *stored
	return &chainCursor{cursor: stored, resume: &resume, positioned: true}, nil
}

// commit stores the moved cursors alongside the pending entities so a
// restart resumes exactly after the last committed event of each chain.
func (r *Runner) commit(ctx context.Context, cursors map[uint64]*chainCursor, summary *Summary) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, cc := range cursors {
		if !cc.dirty {
			continue
		}
		cc.cursor.UpdatedAt = now
		if err := storage.Save(ctx, r.store, cc.cursor); err != nil {
			return err
		}
		cc.dirty = false
	}
	n, err := r.store.Flush(ctx)
	if err != nil {
		return err
	}
	summary.Flushed += n
	if r.cfg.OnFlush != nil {
		r.cfg.OnFlush(n)
	}
	r.logger.Debug("ledger flush", zap.Int("entities", n), zap.Int("chains", len(cursors)))
	return nil
}
