// Package archive keeps closed innings in Postgres once they leave the live
// Redis store.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/store"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// ErrUnavailable wraps connection-class failures from the database
var ErrUnavailable = errors.New("archive unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS archived_innings (
	match_id     TEXT        NOT NULL,
	inning       INTEGER     NOT NULL,
	version      BIGINT      NOT NULL,
	total_runs   INTEGER     NOT NULL,
	wickets      INTEGER     NOT NULL,
	legal_balls  INTEGER     NOT NULL,
	batsmen      TEXT[]      NOT NULL,
	deliveries   JSONB       NOT NULL,
	state        JSONB       NOT NULL,
	archived_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (match_id, inning)
)`

// A replayed archive of an older version never overwrites a newer one
const upsert = `
INSERT INTO archived_innings
	(match_id, inning, version, total_runs, wickets, legal_balls, batsmen, deliveries, state, archived_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (match_id, inning) DO UPDATE SET
	version     = EXCLUDED.version,
	total_runs  = EXCLUDED.total_runs,
	wickets     = EXCLUDED.wickets,
	legal_balls = EXCLUDED.legal_balls,
	batsmen     = EXCLUDED.batsmen,
	deliveries  = EXCLUDED.deliveries,
	state       = EXCLUDED.state,
	archived_at = NOW()
WHERE archived_innings.version < EXCLUDED.version`

// Postgres stores archived innings in one row per innings
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a pooled connection to dsn and checks it
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive database: %w", classify(err))
	}

	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an already configured handle
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the archive table if it is missing
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating archive schema: %w", classify(err))
	}
	return nil
}

// ArchiveInnings upserts the document. Documents without a derived state are
// rejected since there is nothing to serve back.
func (p *Postgres) ArchiveInnings(ctx context.Context, doc store.Document) error {
	if doc.State == nil {
		return fmt.Errorf("archiving %s: document has no derived state", doc.Key)
	}

	deliveries, err := json.Marshal(doc.Deliveries)
	if err != nil {
		return fmt.Errorf("encoding deliveries: %w", err)
	}
	state, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	_, err = p.db.ExecContext(ctx, upsert,
		doc.Key.MatchID,
		doc.Key.Inning,
		doc.Version,
		doc.State.TotalRuns,
		doc.State.TotalWickets,
		doc.State.LegalBallCount,
		pq.Array(batsmen(doc.State)),
		deliveries,
		state,
	)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", doc.Key, classify(err))
	}
	return nil
}

// LoadInnings returns the archived state, or store.ErrNotFound
func (p *Postgres) LoadInnings(ctx context.Context, key models.InningsKey) (models.DerivedInningsState, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM archived_innings WHERE match_id = $1 AND inning = $2`,
		key.MatchID, key.Inning,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DerivedInningsState{}, store.ErrNotFound
	}
	if err != nil {
		return models.DerivedInningsState{}, fmt.Errorf("loading %s: %w", key, classify(err))
	}

	var state models.DerivedInningsState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.DerivedInningsState{}, fmt.Errorf("decoding archived state %s: %w", key, err)
	}
	return state, nil
}

// Batsmen returns the ids of everyone who batted in the archived innings
func (p *Postgres) Batsmen(ctx context.Context, key models.InningsKey) ([]string, error) {
	var ids []string
	err := p.db.QueryRowContext(ctx,
		`SELECT batsmen FROM archived_innings WHERE match_id = $1 AND inning = $2`,
		key.MatchID, key.Inning,
	).Scan(pq.Array(&ids))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading batsmen %s: %w", key, classify(err))
	}
	return ids, nil
}

// Ping checks the connection
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Close releases the pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

func batsmen(state *models.DerivedInningsState) []string {
	ids := make([]string, 0, len(state.BattingStats))
	for id := range state.BattingStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// classify marks connection exceptions (SQLSTATE class 08) as ErrUnavailable
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: %s", ErrUnavailable, pqErr.Message)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
