// Package publish upserts approved events into PostgreSQL so downstream
// consumers read the agenda from a table instead of run files.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/logger"
)

const (
	DefaultTable     = "approved_events"
	DefaultBatchSize = 200
)

// Publisher writes approved events to a table keyed by dedup key.
type Publisher struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
	log       *logger.Logger
}

// Open connects to dsn and makes sure the target table exists.
func Open(ctx context.Context, dsn, table string, log *logger.Logger) (*Publisher, error) {
	if dsn == "" {
		return nil, errors.New("publish: empty DSN")
	}
	if table == "" {
		table = DefaultTable
	}
	if log == nil {
		log = logger.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}

	p := &Publisher{pool: pool, table: table, batchSize: DefaultBatchSize, log: log}
	if err := p.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the pool
func (p *Publisher) Close() {
	p.pool.Close()
}

func (p *Publisher) tableName() string {
	return pgx.Identifier{p.table}.Sanitize()
}

func (p *Publisher) ensureTable(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+p.tableName()+` (
		dedup_key   TEXT PRIMARY KEY,
		event_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		event_date  DATE NOT NULL,
		event_time  TEXT,
		venue       TEXT,
		category    TEXT,
		price       TEXT,
		link        TEXT,
		description TEXT,
		end_date    DATE,
		occurrences JSONB,
		confidence  INTEGER,
		run_id      TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", p.table, err)
	}
	return nil
}

const upsertColumns = `(dedup_key, event_id, title, event_date, event_time, venue, category,
	 price, link, description, end_date, occurrences, confidence, run_id, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (dedup_key) DO UPDATE SET
	 event_time = EXCLUDED.event_time, venue = EXCLUDED.venue, category = EXCLUDED.category,
	 price = EXCLUDED.price, link = EXCLUDED.link, description = EXCLUDED.description,
	 end_date = EXCLUDED.end_date, occurrences = EXCLUDED.occurrences,
	 confidence = EXCLUDED.confidence, run_id = EXCLUDED.run_id, updated_at = EXCLUDED.updated_at`

// Publish upserts events in batches and returns the number of rows written.
// Events without a parseable date are skipped.
func (p *Publisher) Publish(ctx context.Context, runID string, events []*event.Candidate) (int, error) {
	rows := make([][]any, 0, len(events))
	for _, c := range events {
		args, err := rowArgs(runID, c, time.Now().UTC())
		if err != nil {
			p.log.Warn("Skipping event", logger.Fields{"title": c.Title, "error": err.Error()})
			continue
		}
		rows = append(rows, args)
	}

	query := `INSERT INTO ` + p.tableName() + ` ` + upsertColumns
	total := 0
	for i := 0; i < len(rows); i += p.batchSize {
		j := min(i+p.batchSize, len(rows))
		b := &pgx.Batch{}
		for _, args := range rows[i:j] {
			b.Queue(query, args...)
		}

		br := p.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, fmt.Errorf("upserting events: %w", err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, fmt.Errorf("upserting events: %w", err)
		}
	}

	p.log.Info("Published events", logger.Fields{"table": p.table, "rows": total, "run_id": runID})
	return total, nil
}

// rowArgs maps a candidate to upsert arguments in column order
func rowArgs(runID string, c *event.Candidate, now time.Time) ([]any, error) {
	day := event.ParseDate(c.Date)
	if day.IsZero() {
		return nil, fmt.Errorf("unparseable date %q", c.Date)
	}

	var endDate *time.Time
	if end := event.ParseDate(c.EndDate); !end.IsZero() {
		endDate = &end
	}
	var occurrences []event.Occurrence
	if len(c.Occurrences) > 0 {
		occurrences = c.Occurrences
	}

	return []any{
		c.Key(), c.ID, c.Title, day, nullable(c.Time), nullable(c.Venue), nullable(c.Category),
		nullable(c.Price), nullable(c.Link), nullable(c.Description), endDate, occurrences,
		c.Confidence, runID, now,
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
