package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikabot-systems/leadscout/internal/collector"
	"github.com/vikabot-systems/leadscout/internal/config"
	"github.com/vikabot-systems/leadscout/internal/enrich"
	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/normalize"
	"github.com/vikabot-systems/leadscout/internal/score"
	"github.com/vikabot-systems/leadscout/internal/store"
)

func newServeStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func newServeRouter(t *testing.T, st store.Store) http.Handler {
	t.Helper()
	col := collector.New(
		st, nil,
		normalize.New("ICT Solutions"),
		enrich.New(),
		score.NewEngine(score.DefaultPolicy()),
		collector.Options{Target: 1},
	)
	return newRouter(context.Background(), st, col)
}

func storedLead(key string) model.Lead {
	return model.Lead{
		IdentityKey: key,
		Name:        "Omar Hassan",
		Title:       "IT Director",
		Company:     "RAK Ceramics",
		Score:       88,
		Tier:        model.TierHigh,
		Status:      model.StatusEnriched,
		Source:      "profile_search",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestServeHealth(t *testing.T) {
	router := newServeRouter(t, newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeListLeads(t *testing.T) {
	st := newServeStore(t)
	_, _, err := st.UpsertLead(context.Background(), storedLead("omar-hassan|rak-ceramics"))
	require.NoError(t, err)
	_, _, err = st.UpsertLead(context.Background(), storedLead("ayesha-khan|gulf-cement"))
	require.NoError(t, err)

	router := newServeRouter(t, st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads?min_score=50", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var leads []model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	assert.Len(t, leads, 2)
}

func TestServeGetLead(t *testing.T) {
	st := newServeStore(t)
	_, _, err := st.UpsertLead(context.Background(), storedLead("omar-hassan|rak-ceramics"))
	require.NoError(t, err)

	router := newServeRouter(t, st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads/omar-hassan%7Crak-ceramics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var lead model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.Equal(t, "Omar Hassan", lead.Name)
}

func TestServeGetLeadNotFound(t *testing.T) {
	router := newServeRouter(t, newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads/nobody", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeGetRunNotFound(t *testing.T) {
	router := newServeRouter(t, newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeTriggerRun(t *testing.T) {
	router := newServeRouter(t, newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServeSyncEmptyStore(t *testing.T) {
	cfg = &config.Config{}
	cfg.Sink.Targets = []string{"csv"}
	cfg.Sink.CSVPath = filepath.Join(t.TempDir(), "leads.csv")

	router := newServeRouter(t, newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"synced":0}`, rec.Body.String())
}

func TestServeSyncMarksLeads(t *testing.T) {
	cfg = &config.Config{}
	cfg.Sink.Targets = []string{"csv"}
	cfg.Sink.CSVPath = filepath.Join(t.TempDir(), "leads.csv")

	st := newServeStore(t)
	_, _, err := st.UpsertLead(context.Background(), storedLead("omar-hassan|rak-ceramics"))
	require.NoError(t, err)

	router := newServeRouter(t, st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"synced":1}`, rec.Body.String())

	remaining, err := st.ListLeads(context.Background(), store.LeadFilter{Unsynced: true})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
