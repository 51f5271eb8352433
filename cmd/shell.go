package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/kvctl/internal/evaluation"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/session"
)

const shellHelp = `Commands:
  auth                          acquire a token
  reauth                        drop the token and acquire a new one
  logout                        drop the token
  token                         show the held token
  <operation> [key=K] [value=V] [db=D]
                                perform an operation, e.g. put key=a value=1 db=1
  eval <put|get> <repetitions>  run a server side evaluation
  show                          print the displayed result again
  help                          show this text
  exit                          leave the shell`

var errShellExit = errors.New("exit")

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session",
	Long: `Start an interactive session. The token acquired with 'auth' is held
until the shell exits and the last response stays displayed until a new
one arrives.

` + shellHelp,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()

		if err := runShell(ctx, newSession(), os.Stdin, os.Stdout, isTTY); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// shellCommand is one parsed input line: a command name, positional
// arguments and key=value fields
type shellCommand struct {
	name   string
	args   []string
	fields map[string]string
}

func parseShellLine(line string) shellCommand {
	cmd := shellCommand{fields: map[string]string{}}
	words := strings.Fields(line)
	if len(words) == 0 {
		return cmd
	}

	cmd.name = strings.ToLower(words[0])
	for _, w := range words[1:] {
		if k, v, ok := strings.Cut(w, "="); ok && k != "" {
			cmd.fields[strings.ToLower(k)] = v
			continue
		}
		cmd.args = append(cmd.args, w)
	}
	return cmd
}

// request maps fields, then positional arguments, onto an operation
// request: put k v reads as put key=k value=v
func (c shellCommand) request(op models.Operation) models.OperationRequest {
	req := models.OperationRequest{
		Operation: op,
		Key:       c.fields["key"],
		Value:     c.fields["value"],
		Database:  c.fields["db"],
	}

	args := c.args
	if op == models.OpDeleteDB || op == models.OpCreateDB {
		if req.Database == "" && len(args) > 0 {
			req.Database = args[0]
		}
		return req
	}
	if req.Key == "" && len(args) > 0 {
		req.Key, args = args[0], args[1:]
	}
	if req.Value == "" && len(args) > 0 {
		req.Value = args[0]
	}
	return req
}

func runShell(ctx context.Context, s *session.ClientSession, in io.Reader, out io.Writer, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, cyan("kvctl> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		err := execShell(ctx, s, parseShellLine(scanner.Text()), out)
		if errors.Is(err, errShellExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("error:"), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func execShell(ctx context.Context, s *session.ClientSession, cmd shellCommand, out io.Writer) error {
	switch cmd.name {
	case "":
		return nil
	case "exit", "quit":
		return errShellExit
	case "help", "?":
		fmt.Fprintln(out, shellHelp)
		return nil
	case "auth", "reauth":
		authenticate := s.Authenticate
		if cmd.name == "reauth" {
			authenticate = s.Reauthenticate
		}
		display, err := authenticate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, display)
		return nil
	case "logout":
		s.Logout()
		fmt.Fprintln(out, "token dropped")
		return nil
	case "token":
		token, ok := s.Token()
		switch {
		case !ok:
			fmt.Fprintln(out, "not authenticated")
		case !token.Valid():
			fmt.Fprintln(out, "authenticated, but the payload carried no token")
		default:
			fmt.Fprintln(out, token.Value)
		}
		return nil
	case "show":
		fmt.Fprintln(out, s.Display())
		return nil
	case "eval":
		if len(cmd.args) == 0 {
			return &models.ValidationError{Field: "operation", Message: "usage: eval <put|get> <repetitions>"}
		}
		op, err := models.ParseEvaluationOperation(cmd.args[0])
		if err != nil {
			return err
		}
		n := cmd.fields["n"]
		if len(cmd.args) > 1 {
			n = cmd.args[1]
		}
		reps, err := evaluation.ParseRepetitions(n)
		if err != nil {
			return err
		}
		result, err := s.Evaluate(ctx, op, reps)
		if err != nil {
			return err
		}
		printResult(out, result)
		return nil
	}

	op, err := models.ParseOperation(cmd.name)
	if err != nil {
		return fmt.Errorf("unknown command %q, try 'help'", cmd.name)
	}
	result, err := s.Perform(ctx, cmd.request(op))
	if err != nil {
		if errors.Is(err, models.ErrAuth) {
			return fmt.Errorf("%w (run 'auth' first)", err)
		}
		return err
	}
	printResult(out, result)
	return nil
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
