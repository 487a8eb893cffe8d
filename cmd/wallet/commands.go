package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/eqtlab/wallet/dashboard"
	"github.com/eqtlab/wallet/flow"
	ptime "github.com/eqtlab/wallet/pkg/time"
	"github.com/eqtlab/wallet/wallet"
)

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.notes.stderr)
	return fs
}

func loginCmd(ctx context.Context, a *app, args []string, stdin io.Reader) error {
	fs := newFlagSet(a, "login")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(a.stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		fmt.Fprintln(a.stdout)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
	}

	if _, err := a.session.Login(ctx, *email, password); err != nil {
		var authErr *wallet.AuthError
		if errors.As(err, &authErr) {
			msg := authErr.Reason
			if authErr.Err != nil {
				msg = wallet.UserMessage(authErr.Err)
			}
			a.notes.Notify(wallet.Notification{Level: wallet.LevelError, Title: "Login", Message: msg})
		}
		return err
	}

	fmt.Fprintf(a.stdout, "Logged in as %s.\n", *email)
	return nil
}

func registerCmd(ctx context.Context, a *app, args []string, stdin io.Reader) error {
	fs := newFlagSet(a, "register")
	name := fs.String("name", "", "Full name")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	avatar := fs.String("avatar", "", "Avatar URL")
	accept := fs.Bool("accept-terms", false, "Accept the terms and conditions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(a.stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		fmt.Fprintln(a.stdout)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
	}

	err := a.session.Register(ctx, wallet.Registration{
		FullName:      *name,
		Email:         *email,
		Password:      password,
		AvatarURL:     *avatar,
		AcceptedTerms: *accept,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "Account created. Run `wallet login` to sign in.")
	return nil
}

func logoutCmd(ctx context.Context, a *app, args []string, _ io.Reader) error {
	if err := newFlagSet(a, "logout").Parse(args); err != nil {
		return err
	}

	a.session.Logout(ctx)
	fmt.Fprintln(a.stdout, "Logged out.")
	return nil
}

func homeCmd(ctx context.Context, a *app, args []string, _ io.Reader) error {
	fs := newFlagSet(a, "home")
	hide := fs.Bool("hide-balance", false, "Mask the balance")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := a.home.Mount(ctx)
	if err := dashboard.Render(a.stdout, v, a.renderOptions(*hide)); err != nil {
		return err
	}
	if v.Status == dashboard.StatusFailed {
		a.notes.failed = true
		return v.Err
	}
	return nil
}

func watchCmd(ctx context.Context, a *app, args []string, _ io.Reader) error {
	fs := newFlagSet(a, "watch")
	hide := fs.Bool("hide-balance", false, "Mask the balance")
	interval := fs.Duration("interval", 30*time.Second, "Time between refreshes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *interval <= 0 {
		return &wallet.ValidationError{Field: "interval", Message: "interval must be positive"}
	}

	v := a.home.Mount(ctx)
	if err := dashboard.Render(a.stdout, v, a.renderOptions(*hide)); err != nil {
		return err
	}
	if wallet.NeedsLogin(v.Err) {
		a.notes.failed = true
		return v.Err
	}

	for range ptime.TickWithCtx(ctx, *interval) {
		err := refreshOnce(ctx, a)
		if wallet.NeedsLogin(err) {
			fmt.Fprintln(a.stdout, "Session ended.")
			a.notes.failed = true
			return err
		}
		if err := dashboard.Render(a.stdout, a.home.View(), a.renderOptions(*hide)); err != nil {
			return err
		}
	}

	a.log.Info("watch stopped")
	return nil
}

// refreshOnce keeps a panicking refresh from taking the watch loop down.
func refreshOnce(ctx context.Context, a *app) error {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = a.home.Refresh(ctx) })
	if rErr := pc.Recovered().AsError(); rErr != nil {
		a.log.Error("panic", zap.Error(rErr))
		return rErr
	}
	if err != nil && ctx.Err() == nil {
		a.log.Warn("refresh failed", zap.Error(err))
	}
	return err
}

func topupCmd(ctx context.Context, a *app, args []string, _ io.Reader) error {
	fs := newFlagSet(a, "topup")
	form := &flow.TopupForm{}
	fs.StringVar(&form.Amount, "amount", "", "Amount in minor units")
	fs.StringVar(&form.Method, "method", "", "Payment method")
	fs.StringVar(&form.Note, "note", "", "Note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := a.flow.SubmitTopup(ctx, form); err != nil {
		return err
	}

	a.printBalance()
	return nil
}

func transferCmd(ctx context.Context, a *app, args []string, _ io.Reader) error {
	fs := newFlagSet(a, "transfer")
	form := &flow.TransferForm{}
	fs.StringVar(&form.Amount, "amount", "", "Amount in minor units")
	fs.StringVar(&form.Recipient, "to", "", "Recipient account number")
	fs.StringVar(&form.Note, "note", "", "Note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.flow.CheckTransfer(*form); err != nil {
		a.notes.Notify(wallet.Notification{Level: wallet.LevelError, Title: "Transfer", Message: wallet.UserMessage(err)})
		return err
	}

	// the balance check needs the server balance in the ledger
	if a.flow.ChecksBalance() {
		if v := a.home.Mount(ctx); v.Status == dashboard.StatusFailed {
			return v.Err
		}
	}

	if _, err := a.flow.SubmitTransfer(ctx, form); err != nil {
		return err
	}

	a.printBalance()
	return nil
}

func (a *app) printBalance() {
	if v := a.home.View(); v.Status == dashboard.StatusReady {
		fmt.Fprintf(a.stdout, "Balance: %s\n", a.cfg.Currency.Format(a.ledger.CurrentBalance()))
	}
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
