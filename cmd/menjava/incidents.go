package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

func newIncidentsCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List exchanges that need manual reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			incidents, err := store.ListIncidents(cmd.Context(), database, !all)
			if err != nil {
				return err
			}
			if len(incidents) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No incidents.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROPOSAL\tKIND\tCREATED\tSTATE\tDETAIL")
			for _, inc := range incidents {
				state := "open"
				if inc.ResolvedAt != nil {
					state = inc.Resolution
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					inc.ProposalID, inc.Kind, inc.CreatedAt.Local().Format(time.DateTime), state, inc.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include resolved incidents")
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var status, note string
	cmd := &cobra.Command{
		Use:   "reconcile <proposal-id>",
		Short: "Close a flagged proposal after ownership was corrected by hand",
		Long: `reconcile sets the final status of a proposal frozen by a partial
transfer, clears its flag and closes its open incidents. Fix the object
owners first; this command does not move anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != model.ProposalAccepted && status != model.ProposalCancelled {
				return fmt.Errorf("--status must be %q or %q", model.ProposalAccepted, model.ProposalCancelled)
			}

			database, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := store.ResolveFlaggedProposal(cmd.Context(), database, args[0], status, note); err != nil {
				return err
			}
			slog.Info("proposal reconciled", "proposal", args[0], "status", status)
			fmt.Fprintf(cmd.OutOrStdout(), "Proposal %s marked %s.\n", args[0], status)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "final status: accepted or cancelled")
	cmd.Flags().StringVar(&note, "note", "", "what was done to fix ownership")
	cmd.MarkFlagRequired("status")
	return cmd
}
