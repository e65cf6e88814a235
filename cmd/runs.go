package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/store"
)

var (
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List collection runs, or show one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return eris.Wrapf(err, "load run %s", args[0])
			}
			return eris.Wrap(enc.Encode(run), "encode run")
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		return eris.Wrap(enc.Encode(runs), "encode runs")
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to return")
	rootCmd.AddCommand(runsCmd)
}
