package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"

	"github.com/eqtlab/wallet/config"
	"github.com/eqtlab/wallet/pkg/logger"
	"github.com/eqtlab/wallet/wallet"
)

var errUsage = errors.New("usage")

type command func(ctx context.Context, a *app, args []string, stdin io.Reader) error

var commands = map[string]command{
	"login":    loginCmd,
	"register": registerCmd,
	"logout":   logoutCmd,
	"home":     homeCmd,
	"watch":    watchCmd,
	"topup":    topupCmd,
	"transfer": transferCmd,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], envconfig.OsLookuper(), os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// run executes one command. Anything worth telling the user is already written to stdout or stderr
// by the time it returns.
func run(ctx context.Context, args []string, env envconfig.Lookuper, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command %q.\n", args[0])
		usage(stderr)
		return errUsage
	}

	cfg, err := config.ParseEnvWith(ctx, env)
	if err != nil {
		fmt.Fprintf(stderr, "Error: can't parse configuration: %v\n", err)
		return err
	}

	log := logger.New(cfg.Debug, stderr)
	defer log.Sync() // nolint:errcheck

	a, err := newApp(ctx, cfg, log, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}
	defer a.close()

	err = cmd(ctx, a, args[1:], stdin)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}

	if !a.notes.failed {
		fmt.Fprintf(stderr, "Error: %s\n", wallet.UserMessage(err))
	}
	if wallet.NeedsLogin(err) && args[0] != "login" {
		fmt.Fprintln(stderr, "Run `wallet login` to sign in again.")
	}
	if !cfg.Debug {
		if recent := log.Recent(); len(recent) > 0 {
			fmt.Fprintln(stderr, "Recent log:")
			for _, line := range recent {
				fmt.Fprint(stderr, line)
			}
		}
	}

	return err
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: wallet <command> [flags]

Commands:
  register   create an account
  login      sign in and remember the session on this device
  logout     forget the session
  home       show balance and transaction history
  watch      keep the home screen refreshed
  topup      add money to the wallet
  transfer   send money to another account

Run "wallet <command> -h" for the flags of a command.
`)
}
