package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var authTokenOnly bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Acquire an auth token",
	Long: `Request a token from the auth service with the configured key and
secret and print the payload it returned.

Examples:
  # Print the whole token payload
  kvctl auth

  # Print only the token, e.g. for curl -H "X-Cassandra-Token: $(kvctl auth -q)"
  kvctl auth --token-only`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newSession()

		var display string
		var err error
		withSpinner("Authenticating...", func() {
			display, err = s.Authenticate(ctx)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error authenticating: %v\n", err)
			os.Exit(1)
		}

		token, _ := s.Token()
		if !token.Valid() {
			fmt.Fprintf(os.Stderr, "%s payload has no %q field, key-value requests will be rejected\n",
				yellow("●"), viper.GetString("token_field"))
		}

		if authTokenOnly {
			if !token.Valid() {
				os.Exit(1)
			}
			fmt.Println(token.Value)
			return
		}
		fmt.Println(display)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().BoolVarP(&authTokenOnly, "token-only", "q", false, "Print only the extracted token")
}
