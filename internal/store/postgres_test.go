package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikabot-systems/leadscout/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertLead_InsertPath(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, wasNew, err := s.UpsertLead(context.Background(), testLead("k1"))
	require.NoError(t, err)
	assert.True(t, wasNew)
	assert.Equal(t, "k1", got.IdentityKey)
	assert.False(t, got.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertLead_MergePath(t *testing.T) {
	s, mock := newMockStore(t)

	existing := testLead("k1")
	existing.Phone = "+971501234567"
	existingDoc, err := json.Marshal(existing)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT doc FROM leads WHERE identity_key = .+ FOR UPDATE`).
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(existingDoc))
	mock.ExpectExec(`UPDATE leads SET doc`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "k1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	incoming := testLead("k1")
	incoming.Title = "VP of Technology"

	merged, wasNew, err := s.UpsertLead(context.Background(), incoming)
	require.NoError(t, err)
	assert.False(t, wasNew)
	// Existing scalar wins, existing phone survives.
	assert.Equal(t, "IT Director", merged.Title)
	assert.Equal(t, "+971501234567", merged.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLead(t *testing.T) {
	s, mock := newMockStore(t)

	lead := testLead("k1")
	doc, err := json.Marshal(lead)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doc FROM leads WHERE identity_key`).
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := s.GetLead(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "Ahmed Hassan", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLead_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM leads WHERE identity_key`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLead(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPostgresLeadExists(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT 1 FROM leads WHERE identity_key`).
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := s.LeadExists(context.Background(), "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(`SELECT 1 FROM leads WHERE identity_key`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	ok, err = s.LeadExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresListLeads_FilterAndScan(t *testing.T) {
	s, mock := newMockStore(t)

	hot := testLead("hot")
	hot.Score = 92
	doc, err := json.Marshal(hot)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doc FROM leads WHERE true AND tier = .+ ORDER BY score DESC`).
		WithArgs("Hot", 100).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	leads, err := s.ListLeads(context.Background(), LeadFilter{Tier: model.TierHot})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "hot", leads[0].IdentityKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountLeads(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leads`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := s.CountLeads(context.Background(), LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestPostgresMarkSynced(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leads`).
		WithArgs([]string{"a", "b"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, s.MarkSynced(context.Background(), []string{"a", "b"}))
	assert.NoError(t, mock.ExpectationsWereMet())

	// No keys, no round trip.
	require.NoError(t, s.MarkSynced(context.Background(), nil))
}

func TestPostgresSetScore(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leads`).
		WithArgs(45.0, "Low", pgxmock.AnyArg(), "k1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetScore(context.Background(), "k1", 45, model.TierLow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetScoreNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leads`).
		WithArgs(45.0, "Low", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetScore(context.Background(), "missing", 45, model.TierLow)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPostgresSaveAndGetRun(t *testing.T) {
	s, mock := newMockStore(t)

	run := &model.Run{ID: "run-1", Target: 50, Status: model.RunStatusRunning}

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", pgxmock.AnyArg(), "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SaveRun(context.Background(), run))

	doc, err := json.Marshal(run)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT doc FROM runs WHERE id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Target)
	assert.NoError(t, mock.ExpectationsWereMet())
}
