package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vikabot-systems/leadscout/internal/db"
	"github.com/vikabot-systems/leadscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of the collection loop.
var preparedStatements = map[string]string{
	"get_lead":    `SELECT doc FROM leads WHERE identity_key = $1`,
	"lead_exists": `SELECT 1 FROM leads WHERE identity_key = $1`,
	"get_run":     `SELECT doc FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock and
// by the importer, which shares the store's pool for bulk loads.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access, like bulk lead imports.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	identity_key TEXT PRIMARY KEY,
	doc          JSONB NOT NULL,
	score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	tier         TEXT NOT NULL DEFAULT 'Low',
	status       TEXT NOT NULL DEFAULT 'new',
	source       TEXT NOT NULL DEFAULT '',
	synced       BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	doc         JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(tier);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);
CREATE INDEX IF NOT EXISTS idx_leads_synced ON leads(synced) WHERE NOT synced;
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// UpsertLead inserts the lead or merges it into the existing row. The insert
// goes first with ON CONFLICT DO NOTHING; losing the race to another writer
// downgrades to a locked read-merge-write, so at most one caller per key
// ever observes wasNew.
func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) (model.Lead, bool, error) {
	now := time.Now().UTC()
	lead.UpdatedAt = now
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	doc, err := json.Marshal(lead)
	if err != nil {
		return model.Lead{}, false, eris.Wrap(err, "postgres: marshal lead")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO leads (identity_key, doc, score, tier, status, source, synced, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (identity_key) DO NOTHING`,
		lead.IdentityKey, doc, lead.Score, string(lead.Tier), string(lead.Status),
		lead.Source, lead.Synced, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return model.Lead{}, false, eris.Wrapf(err, "postgres: insert lead %s", lead.IdentityKey)
	}
	if tag.RowsAffected() == 1 {
		return lead, true, nil
	}

	// Row exists: merge under a row lock.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Lead{}, false, eris.Wrap(err, "postgres: begin merge")
	}
	defer tx.Rollback(ctx)

	var existingDoc []byte
	err = tx.QueryRow(ctx,
		`SELECT doc FROM leads WHERE identity_key = $1 FOR UPDATE`,
		lead.IdentityKey,
	).Scan(&existingDoc)
	if err != nil {
		return model.Lead{}, false, eris.Wrapf(err, "postgres: lock lead %s", lead.IdentityKey)
	}

	var existing model.Lead
	if err := json.Unmarshal(existingDoc, &existing); err != nil {
		return model.Lead{}, false, eris.Wrapf(err, "postgres: unmarshal lead %s", lead.IdentityKey)
	}

	final := model.Merge(existing, lead)
	final.UpdatedAt = now
	finalDoc, err := json.Marshal(final)
	if err != nil {
		return model.Lead{}, false, eris.Wrap(err, "postgres: marshal merged lead")
	}

	_, err = tx.Exec(ctx,
		`UPDATE leads SET doc = $1, score = $2, tier = $3, status = $4, source = $5, synced = $6, updated_at = $7
		 WHERE identity_key = $8`,
		finalDoc, final.Score, string(final.Tier), string(final.Status),
		final.Source, final.Synced, final.UpdatedAt, final.IdentityKey,
	)
	if err != nil {
		return model.Lead{}, false, eris.Wrapf(err, "postgres: update lead %s", lead.IdentityKey)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Lead{}, false, eris.Wrap(err, "postgres: commit merge")
	}
	return final, false, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, identityKey string) (*model.Lead, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM leads WHERE identity_key = $1`, identityKey,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", identityKey)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", identityKey)
	}

	var lead model.Lead
	if err := json.Unmarshal(doc, &lead); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal lead %s", identityKey)
	}
	return &lead, nil
}

func (s *PostgresStore) LeadExists(ctx context.Context, identityKey string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM leads WHERE identity_key = $1`, identityKey,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: lead exists %s", identityKey)
	}
	return true, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	where, args, argIdx := pgLeadWhere(filter)
	query := `SELECT doc FROM leads` + where + ` ORDER BY score DESC, updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		var lead model.Lead
		if err := json.Unmarshal(doc, &lead); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	where, args, _ := pgLeadWhere(filter)
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&count)
	return count, eris.Wrap(err, "postgres: count leads")
}

func (s *PostgresStore) MarkSynced(ctx context.Context, identityKeys []string) error {
	if len(identityKeys) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE leads
		 SET synced = true,
		     doc = jsonb_set(doc, '{synced}', 'true'),
		     updated_at = now()
		 WHERE identity_key = ANY($1)`,
		identityKeys,
	)
	return eris.Wrap(err, "postgres: mark synced")
}

func (s *PostgresStore) SetScore(ctx context.Context, identityKey string, score float64, tier model.Tier) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads
		 SET score = $1,
		     tier = $2,
		     doc = jsonb_set(jsonb_set(doc, '{score}', to_jsonb($1::double precision)), '{tier}', to_jsonb($2::text)),
		     updated_at = $3
		 WHERE identity_key = $4`,
		score, string(tier), time.Now().UTC(), identityKey,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set score %s", identityKey)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, doc, status, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   doc = $2, status = $3, finished_at = $5`,
		run.ID, doc, string(run.Status), run.StartedAt, finished,
	)
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM runs WHERE id = $1`, runID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	var run model.Run
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal run %s", runID)
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT doc FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var run model.Run
		if err := json.Unmarshal(doc, &run); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func pgLeadWhere(filter LeadFilter) (string, []any, int) {
	query := ""
	args := []any{}
	argIdx := 1

	add := func(clause string, arg any) {
		query += fmt.Sprintf(" AND "+clause, argIdx)
		args = append(args, arg)
		argIdx++
	}

	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Tier != "" {
		add("tier = $%d", string(filter.Tier))
	}
	if filter.Source != "" {
		add("source = $%d", filter.Source)
	}
	if filter.MinScore > 0 {
		add("score >= $%d", filter.MinScore)
	}
	if filter.Unsynced {
		query += " AND NOT synced"
	}

	if query == "" {
		return "", args, argIdx
	}
	return " WHERE true" + query, args, argIdx
}
