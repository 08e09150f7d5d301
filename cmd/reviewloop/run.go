package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/reviewloop/graph"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the correction loop once and print every step",
	Long: `Runs the Planner/Reviewer loop for a single post and streams each executed
node to stdout, followed by a summary of the final state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("max-turns") {
			cfg.Engine.MaxTurns, _ = cmd.Flags().GetInt("max-turns")
		}
		if cmd.Flags().Changed("max-steps") {
			cfg.Engine.MaxSteps, _ = cmd.Flags().GetInt("max-steps")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var logOut io.Writer
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logOut = os.Stderr
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx, cfg, logOut)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		engine, err := a.engine(0, 0)
		if err != nil {
			return err
		}

		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		email, _ := cmd.Flags().GetString("email")
		task, _ := cmd.Flags().GetString("task")
		strict, _ := cmd.Flags().GetBool("strict")
		finalOnly, _ := cmd.Flags().GetBool("final-only")
		runID, _ := cmd.Flags().GetString("run-id")

		initial := graph.NewState(title, content, email, task, strict)
		final, err := runAndPrint(ctx, cmd.OutOrStdout(), engine, runID, initial, finalOnly)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), final)

		if cfg.Provider.Name != "reference" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n  Usage: %s\n", a.costs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("title", "The Future of AI in Education", "Post title")
	runCmd.Flags().String("content", "Explore how artificial intelligence is transforming classrooms, personalized learning, and student outcomes.", "Source content")
	runCmd.Flags().String("email", "author@example.com", "Author email")
	runCmd.Flags().String("task", "Write a well-structured blog post about AI in education.", "Task description")
	runCmd.Flags().Bool("strict", false, "Ask the Reviewer for a stricter review")
	runCmd.Flags().Int("max-turns", graph.DefaultMaxTurns, "Turn budget of the correction loop")
	runCmd.Flags().Int("max-steps", 0, "Hard step ceiling (0 derives it from --max-turns)")
	runCmd.Flags().Bool("final-only", false, "Print only the final summary")
	runCmd.Flags().String("run-id", "", "Run ID for persisted steps (generated when empty)")
}

const rule = "────────────────────────────────────────────────────"

// runAndPrint streams the run, printing each node's changes unless
// finalOnly is set, and returns the final state.
func runAndPrint(ctx context.Context, w io.Writer, engine *graph.Engine, runID string, initial graph.State, finalOnly bool) (graph.State, error) {
	if !finalOnly {
		fmt.Fprintln(w, strings.Repeat("=", 60))
		fmt.Fprintln(w, "  REVIEW LOOP: Streaming Execution")
		fmt.Fprintln(w, strings.Repeat("=", 60))
	}

	var final graph.State
	for step, err := range engine.Stream(ctx, runID, initial) {
		if err != nil {
			return graph.State{}, err
		}
		final = step.State
		if !finalOnly {
			printStep(w, step)
		}
	}
	return final, nil
}

func printStep(w io.Writer, step graph.Step) {
	fmt.Fprintf(w, "\n%s\n  Step %d: %s\n%s\n", rule, step.Index, step.Node, rule)
	if step.Update.Proposal != nil {
		fmt.Fprintln(w, "  Planner Proposal:")
		fmt.Fprintln(w, indentJSON(step.Update.Proposal))
	}
	if step.Update.Feedback != nil && !step.Update.Feedback.IsEmpty() {
		fmt.Fprintln(w, "  Reviewer Feedback:")
		fmt.Fprintln(w, indentJSON(step.Update.Feedback))
	}
	if step.Update.TurnCount != nil {
		fmt.Fprintf(w, "  Turn count: %d\n", *step.Update.TurnCount)
	}
}

func printSummary(w io.Writer, final graph.State) {
	fmt.Fprintf(w, "\n%s\n  FINAL STATE SUMMARY\n%s\n", strings.Repeat("=", 60), strings.Repeat("=", 60))
	fmt.Fprintf(w, "  Title   : %s\n", final.Title)
	fmt.Fprintf(w, "  Task    : %s\n", final.Task)
	fmt.Fprintf(w, "  Turns   : %d\n", final.TurnCount)
	fmt.Fprintf(w, "  Approved: %t\n", final.Feedback.Approved)
	fmt.Fprintf(w, "  Outcome : %s\n", graph.OutcomeOf(final))
	fmt.Fprintln(w, "\n  Final Proposal:")
	fmt.Fprintln(w, indentJSON(final.Proposal))
	fmt.Fprintln(w, "\n  Final Feedback:")
	fmt.Fprintln(w, indentJSON(final.Feedback))
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return fmt.Sprintf("  <unprintable: %v>", err)
	}
	return "  " + string(data)
}
