package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/reviewloop/graph"
	"github.com/dshills/reviewloop/graph/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Print, list or delete persisted runs",
	Long: `Loads every step of a run from a durable store (sqlite, mysql or redis).
With --list it prints the stored runs instead, and with --delete it removes
the given run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Store.Driver == "memory" {
			return fmt.Errorf("history needs a durable store; pass --store sqlite, mysql or redis")
		}

		st, closer, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closer.Close()

		list, _ := cmd.Flags().GetBool("list")
		del, _ := cmd.Flags().GetBool("delete")
		switch {
		case list:
			return listRuns(cmd, st)
		case len(args) == 0:
			return fmt.Errorf("history needs a run ID unless --list is given")
		case del:
			return deleteRun(cmd, st, args[0])
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return printHistory(cmd, st, args[0], asJSON)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("json", false, "Print the records as JSON")
	historyCmd.Flags().Bool("list", false, "List stored runs, most recent first")
	historyCmd.Flags().Bool("delete", false, "Delete the given run")
	historyCmd.MarkFlagsMutuallyExclusive("list", "delete")
}

// listRuns prints one line per stored run with its latest step.
func listRuns(cmd *cobra.Command, st store.Store[graph.State]) error {
	ctx := cmd.Context()
	runs, err := st.Runs(ctx)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, id := range runs {
		state, step, err := st.LoadLatest(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("loading run %q: %w", id, err)
		}
		fmt.Fprintf(w, "%s  steps=%d turn=%d outcome=%s\n", id, step, state.TurnCount, graph.OutcomeOf(state))
	}
	return nil
}

func deleteRun(cmd *cobra.Command, st store.Store[graph.State], runID string) error {
	if _, _, err := st.LoadLatest(cmd.Context(), runID); err != nil {
		return fmt.Errorf("loading run %q: %w", runID, err)
	}
	if err := st.Delete(cmd.Context(), runID); err != nil {
		return fmt.Errorf("deleting run %q: %w", runID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", runID)
	return nil
}

func printHistory(cmd *cobra.Command, st store.Store[graph.State], runID string, asJSON bool) error {
	records, err := st.LoadSteps(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("loading run %q: %w", runID, err)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	writeHistory(w, records)
	return nil
}

func writeHistory(w io.Writer, records []store.StepRecord[graph.State]) {
	for _, r := range records {
		s := r.State
		line := fmt.Sprintf("%3d  %-10s turn=%d", r.Step, r.NodeID, s.TurnCount)
		switch r.NodeID {
		case graph.NodePlanner.String():
			line += fmt.Sprintf("  headline=%q sections=%d", s.Proposal.Headline, len(s.Proposal.Sections))
		case graph.NodeReviewer.String():
			line += fmt.Sprintf("  approved=%t issues=%d", s.Feedback.Approved, len(s.Feedback.Issues))
		}
		fmt.Fprintf(w, "%s  %s\n", r.CreatedAt.Format("15:04:05.000"), line)
	}
}
