package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moamenhredeen/kvctl/internal/logging"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/session"
)

var (
	cfgFile string

	isTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color helpers
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kvctl",
	Short: "Client for a token protected key-value store",
	Long: `kvctl talks to a key-value store sitting behind a Stargate style
token service.

It acquires an auth token, stores, reads, updates and deletes keys,
manages databases and the server side cache, triggers server side
evaluation runs and benchmarks the store from the client side.

Settings are read from kvctl.toml in the current directory or in
$HOME/.config/kvctl; flags override the file.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := session.DefaultConfig()
	viper.SetDefault("auth_url", defaults.AuthURL)
	viper.SetDefault("kv_url", defaults.KVURL)
	viper.SetDefault("eval_url", "")
	viper.SetDefault("key", defaults.Credentials.Key)
	viper.SetDefault("secret", defaults.Credentials.Secret)
	viper.SetDefault("token_field", defaults.TokenField)
	viper.SetDefault("timeout", defaults.Timeout)
	viper.SetDefault("verbose", false)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./kvctl.toml or $HOME/.config/kvctl/kvctl.toml)")
	flags.String("auth-url", defaults.AuthURL, "Base URL of the auth service")
	flags.String("kv-url", defaults.KVURL, "Base URL of the key-value service")
	flags.String("eval-url", "", "Base URL of the evaluation endpoint (default: kv-url)")
	flags.Duration("timeout", defaults.Timeout, "Request timeout")
	flags.BoolP("verbose", "v", false, "Log every request and response")

	viper.BindPFlag("auth_url", flags.Lookup("auth-url"))
	viper.BindPFlag("kv_url", flags.Lookup("kv-url"))
	viper.BindPFlag("eval_url", flags.Lookup("eval-url"))
	viper.BindPFlag("timeout", flags.Lookup("timeout"))
	viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

// initConfig reads the config file. Only a file named with --config is
// required to exist.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kvctl")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kvctl"))
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// sessionConfig assembles the session configuration from file and flags
func sessionConfig() session.Config {
	return session.Config{
		AuthURL: viper.GetString("auth_url"),
		KVURL:   viper.GetString("kv_url"),
		EvalURL: viper.GetString("eval_url"),
		Credentials: models.Credentials{
			Key:    viper.GetString("key"),
			Secret: viper.GetString("secret"),
		},
		TokenField: viper.GetString("token_field"),
		Timeout:    viper.GetDuration("timeout"),
	}
}

func newSession() *session.ClientSession {
	logger := logging.New(os.Stderr, viper.GetBool("verbose"))
	return session.New(sessionConfig(), session.WithLogger(logger))
}

// withSpinner runs fn while a spinner is shown on terminals
func withSpinner(msg string, fn func()) {
	if !isTTY {
		fn()
		return
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()
	fn()
}

// printResult shows the outcome of a request followed by the response text
func printResult(w io.Writer, r models.OperationResult) {
	status := green("✓")
	if !r.Succeeded {
		status = red("✗")
	}

	fmt.Fprintf(w, "%s %s %s", status, r.Method, r.Path)
	if r.Responded() {
		fmt.Fprintf(w, " %s", cyan(r.StatusCode))
	}
	fmt.Fprintf(w, " (%v)\n", r.Duration.Round(time.Millisecond))

	if !r.Responded() && r.Err != nil {
		fmt.Fprintf(w, "  %s\n", red(r.Err))
		return
	}
	if r.DisplayText != "" {
		fmt.Fprintln(w, r.DisplayText)
	}
}
