// Command accessctl logs in to the access-control API and manages the stored session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/access-control/pkg/client"
)

const usage = `usage: accessctl [flags] <command> [args]

commands:
  login <identifier>   log in; the password is read from ACCESSCTL_PASSWORD
  logout               end the session and forget stored tokens
  whoami               print the stored username and role
  ttl <userId>         show the remaining session time
  renew <userId>       reset the session countdown
  get <path>           perform an authenticated GET and print the body
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("accessctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage); fs.PrintDefaults() }

	server := fs.String("server", envOr("ACCESSCTL_SERVER", "http://127.0.0.1:8080"), "API base URL")
	sessionFile := fs.String("session", defaultSessionFile(), "session file")
	timeout := fs.Duration("timeout", 15*time.Second, "HTTP timeout")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := zap.NewNop()
	if *verbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}
	defer logger.Sync() //nolint:errcheck

	c, err := client.New(*server, client.Options{
		Store:   client.NewFileStore(*sessionFile),
		Logger:  logger,
		Timeout: *timeout,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx := context.Background()
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if err := dispatch(ctx, c, cmd, rest, stdout); err != nil {
		fmt.Fprintln(stderr, describe(err))
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid arguments")

func dispatch(ctx context.Context, c *client.Client, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "login":
		if len(args) != 1 {
			return errUsage
		}
		user, err := c.Login(ctx, args[0], os.Getenv("ACCESSCTL_PASSWORD"))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s (%s), id %s\n", user.Username, user.Role, user.ID)
	case "logout":
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "logged out")
	case "whoami":
		state, err := c.State()
		if err != nil {
			return err
		}
		if state.Empty() {
			return client.ErrNoSession
		}
		fmt.Fprintf(out, "%s (%s)\n", state.Username, state.UserRole)
	case "ttl", "renew":
		if len(args) != 1 {
			return errUsage
		}
		var (
			ttl client.SessionTTL
			err error
		)
		if cmd == "ttl" {
			ttl, err = c.RemainingTTL(ctx, args[0])
		} else {
			ttl, err = c.RenewTTL(ctx, args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s left, expires at %s\n", ttl.Remaining(), ttl.ExpTime)
	case "get":
		if len(args) != 1 {
			return errUsage
		}
		resp, err := c.FetchWithAuth(ctx, client.Request{Method: http.MethodGet, Path: args[0]})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		fmt.Fprintf(out, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		_, err = io.Copy(out, resp.Body)
		return err
	default:
		return errUsage
	}
	return nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrSessionEnded):
		return "session ended; log in again"
	case errors.Is(err, client.ErrNoSession):
		return "not logged in"
	case client.IsKind(err, client.KindConnection):
		return "cannot reach server: " + err.Error()
	case client.IsKind(err, client.KindCredentials):
		var clientErr *client.Error
		if errors.As(err, &clientErr) && clientErr.Message != "" {
			return clientErr.Message
		}
	}
	return err.Error()
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "accessctl", "session.yaml")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
