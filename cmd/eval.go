package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/kvctl/internal/evaluation"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/output"
)

var (
	evalRepetitions  string
	evalOutputFormat string
	evalOutputFile   string
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval <put|get>",
	Short: "Ask the server to run an evaluation",
	Long: `Trigger a server side evaluation run. The server repeats the
operation the given number of times and answers with its measurements.
No token is needed.

Examples:
  kvctl eval put -n 1000
  kvctl eval get -n 500 -o yaml`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{models.EvalPut.String(), models.EvalGet.String()},
	Run: func(cmd *cobra.Command, args []string) {
		op, err := models.ParseEvaluationOperation(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		reps, err := evaluation.ParseRepetitions(evalRepetitions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var format output.Format
		if evalOutputFormat != "" {
			if format, err = output.ParseFormat(evalOutputFormat); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newSession()

		var result models.OperationResult
		withSpinner(fmt.Sprintf("Evaluating %d x %s...", reps, op), func() {
			result, err = s.Evaluate(ctx, op, reps)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if format != "" {
			if err := output.ExportResult(result, format, evalOutputFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting result: %v\n", err)
				os.Exit(1)
			}
		} else {
			printResult(os.Stdout, result)
		}

		if !result.Succeeded {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalRepetitions, "repetitions", "n", "100", "Number of times the server repeats the operation")
	evalCmd.Flags().StringVarP(&evalOutputFormat, "output", "o", "", "Output format: json, yaml, csv")
	evalCmd.Flags().StringVar(&evalOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
