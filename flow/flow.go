package flow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eqtlab/wallet/wallet"
)

// ErrSubmissionInFlight is returned when a submit arrives while the previous one is still outstanding.
var ErrSubmissionInFlight = errors.New("submission already in progress")

// nolint:lll
type Config struct {
	StrictBalanceCheck bool     `env:"STRICT_BALANCE_CHECK, default=true"`                                      // Reject transfers above the local balance before sending them
	TopupMethods       []string `env:"TOPUP_METHODS, default=BYOND Pay,Credit Card,Bank Transfer,E-Wallet"` // Accepted payment methods, the first one is the default
	TopupNote          string   `env:"TOPUP_NOTE, default=Top-up via app"`                                     // Description used when the top-up note is empty
}

type TransactionCreator interface {
	CreateTransaction(ctx context.Context, req wallet.TransactionRequest) (*wallet.Transaction, error)
}

type BalanceReader interface {
	CurrentBalance() int64
}

// Refresher re-fetches server state after a successful submission. Reload must not
// reuse a fetch that started before it was called.
type Refresher interface {
	Reload(ctx context.Context) error
}

// TopupForm is the pending top-up as typed by the user.
type TopupForm struct {
	Amount string
	Method string
	Note   string
}

// TransferForm is the pending transfer as typed by the user.
type TransferForm struct {
	Amount    string
	Recipient string
	Note      string
}

// Controller validates and submits top-ups and transfers. It never touches the ledger:
// the balance is re-derived from the server through the refresher.
type Controller struct {
	cfg       Config
	tx        TransactionCreator
	balance   BalanceReader
	refresher Refresher
	notifier  wallet.Notifier
	currency  wallet.Currency
	logger    *zap.Logger

	inFlight atomic.Bool
}

// New builds a controller, refresher may be nil.
func New(
	cfg Config,
	tx TransactionCreator,
	balance BalanceReader,
	refresher Refresher,
	notifier wallet.Notifier,
	currency wallet.Currency,
	l *zap.Logger,
) *Controller {
	return &Controller{
		cfg:       cfg,
		tx:        tx,
		balance:   balance,
		refresher: refresher,
		notifier:  notifier,
		currency:  currency,
		logger:    l,
	}
}

// Busy reports whether the submit control should be disabled.
func (c *Controller) Busy() bool {
	return c.inFlight.Load()
}

// BuildTopup validates the form and returns the credit request it stands for.
func (c *Controller) BuildTopup(form TopupForm) (wallet.TransactionRequest, error) {
	amount, err := wallet.ParseAmount(form.Amount)
	if err != nil {
		return wallet.TransactionRequest{}, err
	}

	method := strings.TrimSpace(form.Method)
	if method == "" && len(c.cfg.TopupMethods) > 0 {
		method = c.cfg.TopupMethods[0]
	}
	if !slices.Contains(c.cfg.TopupMethods, method) {
		return wallet.TransactionRequest{}, &wallet.ValidationError{Field: "method", Message: "invalid payment method"}
	}

	desc := strings.TrimSpace(form.Note)
	if desc == "" {
		desc = c.cfg.TopupNote
	}

	return wallet.TransactionRequest{
		Type:        wallet.Credit,
		FromTo:      method,
		Amount:      amount,
		Description: desc,
	}, nil
}

// CheckTransfer runs the checks that need no balance. A form that passes may still fail BuildTransfer.
func (c *Controller) CheckTransfer(form TransferForm) error {
	_, _, err := parseTransfer(form)
	return err
}

// ChecksBalance reports whether BuildTransfer compares the amount with the local balance.
func (c *Controller) ChecksBalance() bool {
	return c.cfg.StrictBalanceCheck
}

// BuildTransfer validates the form and returns the debit request it stands for.
// The balance check is advisory, the server may still reject the transfer.
func (c *Controller) BuildTransfer(form TransferForm) (wallet.TransactionRequest, error) {
	amount, recipient, err := parseTransfer(form)
	if err != nil {
		return wallet.TransactionRequest{}, err
	}
	if c.cfg.StrictBalanceCheck && amount > c.balance.CurrentBalance() {
		return wallet.TransactionRequest{}, wallet.ErrInsufficientBalance
	}

	return wallet.TransactionRequest{
		Type:        wallet.Debit,
		FromTo:      recipient,
		Amount:      amount,
		Description: strings.TrimSpace(form.Note),
	}, nil
}

func parseTransfer(form TransferForm) (int64, string, error) {
	amount, err := wallet.ParseAmount(form.Amount)
	if err != nil {
		return 0, "", err
	}

	recipient := strings.TrimSpace(form.Recipient)
	if recipient == "" {
		return 0, "", &wallet.ValidationError{Field: "recipient", Message: "recipient is required"}
	}

	return amount, recipient, nil
}

// SubmitTopup sends the top-up. On success the form is cleared, on failure it is left as typed.
func (c *Controller) SubmitTopup(ctx context.Context, form *TopupForm) (*wallet.Transaction, error) {
	req, err := c.BuildTopup(*form)
	if err != nil {
		c.fail("Top Up", err)
		return nil, err
	}

	tx, err := c.submit(ctx, req)
	if err != nil {
		c.fail("Top Up", err)
		return nil, fmt.Errorf("submit top-up: %w", err)
	}

	form.Amount = ""
	form.Note = ""
	c.notifier.Notify(wallet.Notification{
		Level:   wallet.LevelSuccess,
		Title:   "Success",
		Message: fmt.Sprintf("Top-up of %s was successful!", c.currency.Format(tx.Amount)),
	})
	c.refresh(ctx)

	return tx, nil
}

// SubmitTransfer sends the transfer. On success the form is cleared, on failure it is left as typed.
func (c *Controller) SubmitTransfer(ctx context.Context, form *TransferForm) (*wallet.Transaction, error) {
	req, err := c.BuildTransfer(*form)
	if err != nil {
		c.fail("Transfer", err)
		return nil, err
	}

	tx, err := c.submit(ctx, req)
	if err != nil {
		c.fail("Transfer", err)
		return nil, fmt.Errorf("submit transfer: %w", err)
	}

	form.Amount = ""
	form.Note = ""
	c.notifier.Notify(wallet.Notification{
		Level:   wallet.LevelSuccess,
		Title:   "Success",
		Message: fmt.Sprintf("Transfer of %s to %s was successful!", c.currency.Format(tx.Amount), tx.Counterparty),
	})
	c.refresh(ctx)

	return tx, nil
}

func (c *Controller) submit(ctx context.Context, req wallet.TransactionRequest) (*wallet.Transaction, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	tx, err := c.tx.CreateTransaction(ctx, req)
	if err != nil {
		c.logger.Warn(
			"flow: submission failed",
			zap.Stringer("type", req.Type),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info(
		"flow: submission accepted",
		zap.Int64("transaction_id", tx.ID),
		zap.Stringer("type", tx.Type),
		zap.Int64("amount", tx.Amount),
	)

	return tx, nil
}

func (c *Controller) fail(title string, err error) {
	msg := wallet.UserMessage(err)
	if errors.Is(err, ErrSubmissionInFlight) {
		msg = "Please wait for the previous request to finish."
	}
	c.notifier.Notify(wallet.Notification{Level: wallet.LevelError, Title: title, Message: msg})
}

func (c *Controller) refresh(ctx context.Context) {
	if c.refresher == nil {
		return
	}
	if err := c.refresher.Reload(ctx); err != nil {
		c.logger.Warn("flow: refresh after submission failed, keeping previous data", zap.Error(err))
	}
}
