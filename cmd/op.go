package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/kvctl/internal/catalog"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/output"
	"github.com/moamenhredeen/kvctl/internal/session"
)

var (
	opKey          string
	opValue        string
	opDatabase     string
	opOutputFormat string
	opOutputFile   string
	opOpenAPI      string
)

// opCmd represents the op command
var opCmd = &cobra.Command{
	Use:   "op <operation>",
	Short: "Perform one key-value operation",
	Long: fmt.Sprintf(`Authenticate and perform one operation against the key-value store.

Operations: %s

Examples:
  # Store and read back a pair
  kvctl op put --db 1 --key greeting --value hello
  kvctl op get --db 1 --key greeting

  # Create a database and export the response
  kvctl op createDB --db users -o json

  # Check the response against the service's OpenAPI document
  kvctl op get --db 1 --key greeting --openapi kvstore-openapi.yaml`, operationNames()),
	Args:      cobra.ExactArgs(1),
	ValidArgs: operationNames(),
	Run: func(cmd *cobra.Command, args []string) {
		op, err := models.ParseOperation(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var format output.Format
		if opOutputFormat != "" {
			if format, err = output.ParseFormat(opOutputFormat); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		var c *catalog.Catalog
		if opOpenAPI != "" {
			if c, err = catalog.ParseFile(opOpenAPI); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing OpenAPI file: %v\n", err)
				os.Exit(1)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newSession()
		req := models.OperationRequest{Operation: op, Key: opKey, Value: opValue, Database: opDatabase}

		var result models.OperationResult
		withSpinner(fmt.Sprintf("%s...", op), func() {
			result, err = performAuthenticated(ctx, s, req)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if format != "" {
			if err := output.ExportResult(result, format, opOutputFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting result: %v\n", err)
				os.Exit(1)
			}
			if opOutputFile != "" {
				fmt.Printf("Result exported to: %s\n", opOutputFile)
			}
		} else {
			printResult(os.Stdout, result)
		}

		if c != nil {
			for _, finding := range c.ValidateResult(result) {
				fmt.Fprintf(os.Stderr, "%s %s\n", yellow("●"), finding.Error())
			}
		}

		if !result.Succeeded {
			os.Exit(1)
		}
	},
}

// performAuthenticated performs req, acquiring a token first when the
// session has none. Field validation still runs before any network call.
func performAuthenticated(ctx context.Context, s *session.ClientSession, req models.OperationRequest) (models.OperationResult, error) {
	result, err := s.Perform(ctx, req)
	if !errors.Is(err, models.ErrAuth) {
		return result, err
	}
	if _, err := s.Authenticate(ctx); err != nil {
		return models.OperationResult{}, err
	}
	return s.Perform(ctx, req)
}

func operationNames() []string {
	ops := models.Operations()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}

func init() {
	rootCmd.AddCommand(opCmd)

	opCmd.Flags().StringVarP(&opKey, "key", "k", "", "Key to operate on")
	opCmd.Flags().StringVar(&opValue, "value", "", "Value to store")
	opCmd.Flags().StringVarP(&opDatabase, "db", "d", "", "Database the key lives in, or the database to create or delete")

	opCmd.Flags().StringVar(&opOpenAPI, "openapi", "", "Check the response against this OpenAPI document")

	opCmd.Flags().StringVarP(&opOutputFormat, "output", "o", "", "Output format: json, yaml, csv")
	opCmd.Flags().StringVar(&opOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
