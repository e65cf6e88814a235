package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/store"
)

var (
	leadsStatus   string
	leadsTier     string
	leadsSource   string
	leadsMinScore float64
	leadsUnsynced bool
	leadsLimit    int
	leadsOffset   int
	leadsCount    bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List stored leads",
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

		filter := store.LeadFilter{
			Status:   model.PipelineStatus(leadsStatus),
			Tier:     model.Tier(leadsTier),
			Source:   leadsSource,
			MinScore: leadsMinScore,
			Unsynced: leadsUnsynced,
			Limit:    leadsLimit,
			Offset:   leadsOffset,
		}

		if leadsCount {
			n, err := st.CountLeads(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "count leads")
			}
			fmt.Println(n)
			return nil
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(leads), "encode leads")
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by pipeline status")
	leadsCmd.Flags().StringVar(&leadsTier, "tier", "", "filter by priority tier (Hot, High, Medium, Low)")
	leadsCmd.Flags().StringVar(&leadsSource, "source", "", "filter by source tag")
	leadsCmd.Flags().Float64Var(&leadsMinScore, "min-score", 0, "minimum lead score")
	leadsCmd.Flags().BoolVar(&leadsUnsynced, "unsynced", false, "only leads not yet synced")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 0, "maximum number of leads to return")
	leadsCmd.Flags().IntVar(&leadsOffset, "offset", 0, "number of leads to skip")
	leadsCmd.Flags().BoolVar(&leadsCount, "count", false, "print the matching lead count instead of the leads")
	rootCmd.AddCommand(leadsCmd)
}
