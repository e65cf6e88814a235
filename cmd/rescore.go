package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/store"
)

const rescorePageSize = 500

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute scores and tiers for every stored lead",
	Long:  "Reapplies the current scoring policy to all stored leads. Run this after changing the policy file or thresholds; scores move in both directions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		engine, err := buildEngine()
		if err != nil {
			return err
		}

		// Pages are ordered by score, so collect everything before writing:
		// updating scores mid-pagination would shuffle rows across pages.
		var all []model.Lead
		for offset := 0; ; offset += rescorePageSize {
			leads, err := st.ListLeads(ctx, store.LeadFilter{Limit: rescorePageSize, Offset: offset})
			if err != nil {
				return eris.Wrap(err, "list leads")
			}
			all = append(all, leads...)
			if len(leads) < rescorePageSize {
				break
			}
		}

		var changed int
		for _, lead := range all {
			score, tier := engine.Score(lead)
			if score == lead.Score && tier == lead.Tier {
				continue
			}
			if err := st.SetScore(ctx, lead.IdentityKey, score, tier); err != nil {
				return eris.Wrapf(err, "set score %s", lead.IdentityKey)
			}
			changed++
		}

		zap.L().Info("rescore complete", zap.Int("scanned", len(all)), zap.Int("changed", changed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)
}
