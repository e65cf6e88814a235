package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Lead rows hold the
// full lead as a JSON document plus extracted columns for filtering.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Transactions begin in immediate mode so the read-merge-write in UpsertLead
// holds the write lock for its whole lifetime.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "_txlock") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_txlock=immediate"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	identity_key TEXT PRIMARY KEY,
	doc          TEXT NOT NULL,
	score        REAL NOT NULL DEFAULT 0,
	tier         TEXT NOT NULL DEFAULT 'Low',
	status       TEXT NOT NULL DEFAULT 'new',
	source       TEXT NOT NULL DEFAULT '',
	synced       INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	doc         TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(tier);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);
CREATE INDEX IF NOT EXISTS idx_leads_synced ON leads(synced);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertLead inserts the lead or merges it into the existing row with the
// same identity key. The read-merge-write runs in an immediate transaction,
// so concurrent upserts on one key serialize and at most one reports wasNew.
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (model.Lead, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Lead{}, false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	var existingDoc string
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM leads WHERE identity_key = ?`, lead.IdentityKey,
	).Scan(&existingDoc)

	wasNew := false
	final := lead
	switch {
	case err == sql.ErrNoRows:
		wasNew = true
	case err != nil:
		return model.Lead{}, false, eris.Wrapf(err, "sqlite: read lead %s", lead.IdentityKey)
	default:
		var existing model.Lead
		if err := json.Unmarshal([]byte(existingDoc), &existing); err != nil {
			return model.Lead{}, false, eris.Wrapf(err, "sqlite: unmarshal lead %s", lead.IdentityKey)
		}
		final = model.Merge(existing, lead)
	}
	final.UpdatedAt = time.Now().UTC()
	if wasNew && final.CreatedAt.IsZero() {
		final.CreatedAt = final.UpdatedAt
	}

	doc, err := json.Marshal(final)
	if err != nil {
		return model.Lead{}, false, eris.Wrap(err, "sqlite: marshal lead")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (identity_key, doc, score, tier, status, source, synced, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity_key) DO UPDATE SET
		   doc = excluded.doc, score = excluded.score, tier = excluded.tier,
		   status = excluded.status, source = excluded.source,
		   synced = excluded.synced, updated_at = excluded.updated_at`,
		final.IdentityKey, string(doc), final.Score, string(final.Tier),
		string(final.Status), final.Source, boolInt(final.Synced),
		final.CreatedAt, final.UpdatedAt,
	)
	if err != nil {
		return model.Lead{}, false, eris.Wrapf(err, "sqlite: upsert lead %s", lead.IdentityKey)
	}
	if err := tx.Commit(); err != nil {
		return model.Lead{}, false, eris.Wrap(err, "sqlite: commit upsert")
	}
	return final, wasNew, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, identityKey string) (*model.Lead, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM leads WHERE identity_key = ?`, identityKey,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", identityKey)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", identityKey)
	}

	var lead model.Lead
	if err := json.Unmarshal([]byte(doc), &lead); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal lead %s", identityKey)
	}
	return &lead, nil
}

func (s *SQLiteStore) LeadExists(ctx context.Context, identityKey string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM leads WHERE identity_key = ?`, identityKey,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: lead exists %s", identityKey)
	}
	return true, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	where, args := leadWhere(filter)
	query := `SELECT doc FROM leads` + where + ` ORDER BY score DESC, updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		var lead model.Lead
		if err := json.Unmarshal([]byte(doc), &lead); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	where, args := leadWhere(filter)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count leads")
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, identityKeys []string) error {
	if len(identityKeys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin mark synced")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, key := range identityKeys {
		_, err := tx.ExecContext(ctx,
			`UPDATE leads
			 SET synced = 1,
			     doc = json_set(doc, '$.synced', json('true')),
			     updated_at = ?
			 WHERE identity_key = ?`,
			now, key,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: mark synced %s", key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit mark synced")
}

func (s *SQLiteStore) SetScore(ctx context.Context, identityKey string, score float64, tier model.Tier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads
		 SET score = ?,
		     tier = ?,
		     doc = json_set(doc, '$.score', ?, '$.tier', ?),
		     updated_at = ?
		 WHERE identity_key = ?`,
		score, string(tier), score, string(tier), time.Now().UTC(), identityKey,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set score %s", identityKey)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: set score rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, doc, status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   doc = excluded.doc, status = excluded.status, finished_at = excluded.finished_at`,
		run.ID, string(doc), string(run.Status), run.StartedAt, finished,
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM runs WHERE id = ?`, runID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(doc), &run); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal run %s", runID)
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT doc FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var run model.Run
		if err := json.Unmarshal([]byte(doc), &run); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// leadWhere builds the WHERE clause shared by list and count.
func leadWhere(filter LeadFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Tier != "" {
		clauses = append(clauses, "tier = ?")
		args = append(args, string(filter.Tier))
	}
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.MinScore > 0 {
		clauses = append(clauses, "score >= ?")
		args = append(args, filter.MinScore)
	}
	if filter.Unsynced {
		clauses = append(clauses, "synced = 0")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
