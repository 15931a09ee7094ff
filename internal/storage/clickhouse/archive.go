package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
	"poolLedger/internal/retry"
	"poolLedger/internal/storage"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS ledger_events (
	event_time DateTime,
	kind LowCardinality(String),
	id String,
	pool String,
	tx_hash String,
	log_index UInt64,
	amount0 String,
	amount1 String,
	amount_usd String,
	data String
) ENGINE = ReplacingMergeTree
ORDER BY (kind, pool, event_time, id)`

// EventRow is one archived Mint, Burn, Swap or Collect record.
type EventRow struct {
	EventTime time.Time
	Kind      string
	ID        string
	Pool      string
	TxHash    string
	LogIndex  uint64
	Amount0   string
	Amount1   string
	AmountUSD string
	Data      string
}

// Archive copies flushed event records into ClickHouse.
type Archive struct {
	conn  ch.Conn
	retry retry.Policy
}

func NewArchive(conn ch.Conn) *Archive {
	return &Archive{conn: conn, retry: retry.Policy{MaxRetries: 2, BaseDelay: 200 * time.Millisecond}}
}

// EnsureSchema creates the events table if it does not exist.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if err := a.conn.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create ledger_events: %w", err)
	}
	return nil
}

// Archive implements storage.Archiver.
func (a *Archive) Archive(ctx context.Context, records []storage.Record) error {
	rows, err := EventRows(records)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	return retry.Do(ctx, a.retry, func(ctx context.Context) error {
		return a.insert(ctx, rows)
	})
}

func (a *Archive) insert(ctx context.Context, rows []EventRow) error {
	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_events (
			event_time, kind, id, pool, tx_hash, log_index, amount0, amount1, amount_usd, data
		)
	`)
	if err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		if err := batch.Append(
			r.EventTime, r.Kind, r.ID, r.Pool, r.TxHash, r.LogIndex,
			r.Amount0, r.Amount1, r.AmountUSD, r.Data,
		); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

type eventFields struct {
	Transaction string          `json:"transaction"`
	Timestamp   int64           `json:"timestamp"`
	Pool        string          `json:"pool"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	LogIndex    uint64          `json:"log_index"`
}

// EventRows selects the event records of a flushed batch and converts them to rows.
func EventRows(records []storage.Record) ([]EventRow, error) {
	var rows []EventRow
	for _, r := range records {
		switch r.Kind {
		case model.KindMint, model.KindBurn, model.KindSwap, model.KindCollect:
		default:
			continue
		}
		var f eventFields
		if err := json.Unmarshal(r.Data, &f); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.Kind, r.ID, err)
		}
		rows = append(rows, EventRow{
			EventTime: time.Unix(f.Timestamp, 0).UTC(),
			Kind:      r.Kind,
			ID:        r.ID,
			Pool:      f.Pool,
			TxHash:    f.Transaction,
			LogIndex:  f.LogIndex,
			Amount0:   f.Amount0.String(),
			Amount1:   f.Amount1.String(),
			AmountUSD: f.AmountUSD.String(),
			Data:      string(r.Data),
		})
	}
	return rows, nil
}
