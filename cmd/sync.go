package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/store"
)

var syncRunID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push collected leads to the configured sinks",
	Long:  "Appends unsynced leads (or one run's delta with --run) to every enabled sink and marks them synced once all sinks accept them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := loadSyncBatch(ctx, st)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			zap.L().Info("nothing to sync")
			return nil
		}

		synced, err := syncLeads(ctx, st, leads)
		if err != nil {
			return err
		}

		zap.L().Info("sync complete", zap.Int("leads", synced))
		return nil
	},
}

// syncPageSize bounds one store read. The batch drains every page before
// touching the sinks, so a backlog larger than the store's default list
// limit still syncs in one pass.
const syncPageSize = 500

func loadSyncBatch(ctx context.Context, st store.Store) ([]model.Lead, error) {
	if syncRunID == "" {
		var all []model.Lead
		for offset := 0; ; offset += syncPageSize {
			page, err := st.ListLeads(ctx, store.LeadFilter{
				Unsynced: true,
				Limit:    syncPageSize,
				Offset:   offset,
			})
			if err != nil {
				return nil, eris.Wrap(err, "list unsynced leads")
			}
			all = append(all, page...)
			if len(page) < syncPageSize {
				return all, nil
			}
		}
	}

	run, err := st.GetRun(ctx, syncRunID)
	if err != nil {
		return nil, eris.Wrapf(err, "load run %s", syncRunID)
	}

	// Reload the delta by key so sinks see the stored state, not the
	// snapshot taken when the run finished.
	leads := make([]model.Lead, 0, len(run.Delta))
	for _, key := range run.DeltaKeys() {
		lead, err := st.GetLead(ctx, key)
		if err != nil {
			return nil, eris.Wrapf(err, "load lead %s", key)
		}
		leads = append(leads, *lead)
	}
	return leads, nil
}

// syncLeads appends the batch to every sink and marks the leads synced only
// after all sinks accept them. A failing sink leaves the batch unsynced so
// the next pass retries it; sinks dedupe on their side, so retried appends
// do not double-write.
func syncLeads(ctx context.Context, st store.Store, leads []model.Lead) (int, error) {
	sinks, err := buildSinks()
	if err != nil {
		return 0, err
	}
	if len(sinks) == 0 {
		return 0, eris.New("no sinks configured")
	}

	for _, s := range sinks {
		if err := s.Append(ctx, leads); err != nil {
			return 0, eris.Wrapf(err, "sink %s", s.Name())
		}
		zap.L().Info("sink updated", zap.String("sink", s.Name()), zap.Int("leads", len(leads)))
	}

	keys := make([]string, len(leads))
	for i, l := range leads {
		keys[i] = l.IdentityKey
	}
	if err := st.MarkSynced(ctx, keys); err != nil {
		return 0, eris.Wrap(err, "mark synced")
	}
	return len(leads), nil
}

func init() {
	syncCmd.Flags().StringVar(&syncRunID, "run", "", "sync one run's newly accepted leads instead of everything unsynced")
	rootCmd.AddCommand(syncCmd)
}
