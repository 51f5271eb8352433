package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moamenhredeen/kvctl/internal/catalog"
	"github.com/moamenhredeen/kvctl/internal/request"
)

var routesAll bool

// routesCmd represents the routes command
var routesCmd = &cobra.Command{
	Use:   "routes <openapi-file>",
	Short: "Check the client's routes against the service's OpenAPI document",
	Long: `Match every request kvctl can send against the routes documented in
the service's OpenAPI document and report the ones the service does not
document.

Examples:
  kvctl routes kvstore-openapi.yaml
  kvctl routes kvstore-openapi.yaml --all`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := catalog.ParseFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing OpenAPI file: %v\n", err)
			os.Exit(1)
		}

		serverURLs, err := c.ServerURLs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting server URLs: %v\n", err)
			os.Exit(1)
		}
		if kvURL := viper.GetString("kv_url"); len(serverURLs) > 0 && !containsURL(serverURLs, kvURL) {
			fmt.Printf("%s %s is not one of the documented servers: %s\n\n",
				yellow("●"), kvURL, strings.Join(serverURLs, ", "))
		}

		if routesAll {
			fmt.Printf("%s\n", white("=== Documented Routes ==="))
			for _, r := range c.Routes() {
				fmt.Printf("%-8s %-36s %s\n", r.Method, r.Path, r.OperationID)
			}
			fmt.Println()
		}

		fmt.Printf("%s\n", white("=== Client Routes ==="))
		missing := 0
		for _, cov := range c.Check(request.Routes()) {
			if cov.Documented {
				fmt.Printf("%s %-10s %-8s %-28s → %s\n", green("✓"),
					cov.Client.Operation, cov.Client.Method, cov.Client.Path, cov.Match.Path)
				continue
			}
			missing++
			fmt.Printf("%s %-10s %-8s %-28s\n", red("✗"),
				cov.Client.Operation, cov.Client.Method, cov.Client.Path)
		}

		fmt.Println()
		if missing > 0 {
			fmt.Printf("%s routes not documented by the service\n", red(missing))
			os.Exit(1)
		}
		fmt.Printf("All routes documented: %s\n", green(len(request.Routes())))
	},
}

func containsURL(urls []string, target string) bool {
	target = strings.TrimRight(target, "/")
	for _, u := range urls {
		if strings.TrimRight(u, "/") == target {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().BoolVar(&routesAll, "all", false, "Also list every documented route")
}
