package flow

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eqtlab/wallet/client"
	"github.com/eqtlab/wallet/dashboard"
	"github.com/eqtlab/wallet/pkg/apitest"
	"github.com/eqtlab/wallet/wallet"
)

var testConfig = Config{
	StrictBalanceCheck: true,
	TopupMethods:       []string{"BYOND Pay", "Credit Card", "Bank Transfer", "E-Wallet"},
	TopupNote:          "Top-up via app",
}

type fakeCreator struct {
	reqs  []wallet.TransactionRequest
	err   error
	block chan struct{}
}

func (f *fakeCreator) CreateTransaction(_ context.Context, req wallet.TransactionRequest) (*wallet.Transaction, error) {
	if f.block != nil {
		<-f.block
	}
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &wallet.Transaction{
		ID: int64(len(f.reqs)), Type: req.Type, Counterparty: req.FromTo, Amount: req.Amount,
		Description: req.Description, CreatedAt: time.Now(),
	}, nil
}

type fixedBalance int64

func (b fixedBalance) CurrentBalance() int64 { return int64(b) }

type notes []wallet.Notification

func (n *notes) Notify(x wallet.Notification) { *n = append(*n, x) }

func (n notes) last() wallet.Notification {
	if len(n) == 0 {
		return wallet.Notification{}
	}
	return n[len(n)-1]
}

func newController(t *testing.T, creator TransactionCreator, balance int64, n *notes) *Controller {
	t.Helper()
	return New(testConfig, creator, fixedBalance(balance), nil, n, wallet.Currency{Code: "IDR"}, zaptest.NewLogger(t))
}

func TestTransferValidationAgainstBalance(t *testing.T) {
	c := newController(t, &fakeCreator{}, 10000000, &notes{})

	for _, amount := range []string{"1", "5000", "9999999", "10000000"} {
		req, err := c.BuildTransfer(TransferForm{Amount: amount, Recipient: "9000008940208"})
		require.NoError(t, err, amount)
		assert.Equal(t, wallet.Debit, req.Type)
	}
	for _, amount := range []string{"10000001", "15000000"} {
		_, err := c.BuildTransfer(TransferForm{Amount: amount, Recipient: "9000008940208"})
		assert.True(t, errors.Is(err, wallet.ErrInsufficientBalance), amount)
	}
	for _, amount := range []string{"0", "-1", "abc", ""} {
		_, err := c.BuildTransfer(TransferForm{Amount: amount, Recipient: "9000008940208"})
		assert.True(t, errors.Is(err, wallet.ErrInvalidAmount), amount)
	}
}

func TestTransferBalanceCheckCanBeRelaxed(t *testing.T) {
	cfg := testConfig
	cfg.StrictBalanceCheck = false
	c := New(cfg, &fakeCreator{}, fixedBalance(0), nil, &notes{}, wallet.Currency{Code: "IDR"}, zaptest.NewLogger(t))

	_, err := c.BuildTransfer(TransferForm{Amount: "15000000", Recipient: "x"})
	assert.NoError(t, err)
}

func TestTransferRequiresRecipient(t *testing.T) {
	c := newController(t, &fakeCreator{}, 100, &notes{})

	_, err := c.BuildTransfer(TransferForm{Amount: "1", Recipient: "  "})

	var vErr *wallet.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "recipient", vErr.Field)
}

func TestCheckTransferNeedsNoBalance(t *testing.T) {
	c := newController(t, &fakeCreator{}, 0, &notes{})

	assert.NoError(t, c.CheckTransfer(TransferForm{Amount: "15000000", Recipient: "9000008940208"}))
	assert.True(t, errors.Is(c.CheckTransfer(TransferForm{Amount: "abc", Recipient: "x"}), wallet.ErrInvalidAmount))
	assert.True(t, errors.Is(c.CheckTransfer(TransferForm{Amount: "-5", Recipient: "x"}), wallet.ErrInvalidAmount))

	var vErr *wallet.ValidationError
	require.True(t, errors.As(c.CheckTransfer(TransferForm{Amount: "1"}), &vErr))
	assert.Equal(t, "recipient", vErr.Field)
	assert.True(t, c.ChecksBalance())
}

func TestTopupBuildsCreditWithExactAmount(t *testing.T) {
	c := newController(t, &fakeCreator{}, 0, &notes{})

	for _, amount := range []int64{1, 50000, 2000000, 9223372036854775807} {
		req, err := c.BuildTopup(TopupForm{Amount: formatInt(amount)})
		require.NoError(t, err)
		assert.Equal(t, wallet.Credit, req.Type)
		assert.Equal(t, amount, req.Amount)
		assert.Equal(t, "BYOND Pay", req.FromTo)
		assert.Equal(t, "Top-up via app", req.Description)
	}
}

func TestTopupMethodAndNote(t *testing.T) {
	c := newController(t, &fakeCreator{}, 0, &notes{})

	req, err := c.BuildTopup(TopupForm{Amount: "10", Method: "E-Wallet", Note: "pocket money"})
	require.NoError(t, err)
	assert.Equal(t, "E-Wallet", req.FromTo)
	assert.Equal(t, "pocket money", req.Description)

	_, err = c.BuildTopup(TopupForm{Amount: "10", Method: "Cash"})
	var vErr *wallet.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "method", vErr.Field)
}

func TestTopupRejectedLocallyNoRequest(t *testing.T) {
	creator := &fakeCreator{}
	n := &notes{}
	c := newController(t, creator, 0, n)

	for _, amount := range []string{"abc", "0", "-100", ""} {
		form := &TopupForm{Amount: amount, Note: "keep me"}
		_, err := c.SubmitTopup(context.Background(), form)

		var vErr *wallet.ValidationError
		require.True(t, errors.As(err, &vErr), amount)
		assert.Equal(t, amount, form.Amount)
		assert.Equal(t, "keep me", form.Note)
	}

	assert.Empty(t, creator.reqs)
	assert.Equal(t, wallet.LevelError, n.last().Level)
}

func TestSubmitTopupSuccessClearsForm(t *testing.T) {
	creator := &fakeCreator{}
	n := &notes{}
	c := newController(t, creator, 0, n)

	form := &TopupForm{Amount: "50000", Method: "Credit Card", Note: "n"}
	tx, err := c.SubmitTopup(context.Background(), form)

	require.NoError(t, err)
	assert.Equal(t, int64(50000), tx.Amount)
	assert.Empty(t, form.Amount)
	assert.Empty(t, form.Note)
	assert.Equal(t, "Credit Card", form.Method)
	assert.Equal(t, wallet.LevelSuccess, n.last().Level)
	assert.Equal(t, "Top-up of IDR 50.000 was successful!", n.last().Message)
}

func TestSubmitFailureKeepsFormAndShowsServerMessage(t *testing.T) {
	creator := &fakeCreator{err: &wallet.ServiceError{Status: 422, Message: "daily limit reached"}}
	n := &notes{}
	c := newController(t, creator, 10000000, n)

	form := &TransferForm{Amount: "2000000", Recipient: "9000008940208", Note: "rent"}
	_, err := c.SubmitTransfer(context.Background(), form)

	var svcErr *wallet.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "2000000", form.Amount)
	assert.Equal(t, "rent", form.Note)
	assert.Equal(t, "daily limit reached", n.last().Message)
	assert.False(t, c.Busy())
}

func TestInsufficientBalanceScenario(t *testing.T) {
	creator := &fakeCreator{}
	store := wallet.NewStore(10000000)
	ledger := wallet.NewLedger(store, zaptest.NewLogger(t))
	c := New(testConfig, creator, ledger, nil, &notes{}, wallet.Currency{Code: "IDR"}, zaptest.NewLogger(t))

	_, err := c.SubmitTransfer(context.Background(), &TransferForm{Amount: "15000000", Recipient: "9000008940208"})

	assert.True(t, errors.Is(err, wallet.ErrInsufficientBalance))
	assert.Equal(t, "insufficient balance", err.Error())
	assert.Equal(t, int64(10000000), ledger.CurrentBalance())
	assert.Empty(t, creator.reqs)
}

func TestDuplicateSubmitRejected(t *testing.T) {
	creator := &fakeCreator{block: make(chan struct{})}
	n := &notes{}
	c := newController(t, creator, 10000000, n)

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitTransfer(context.Background(), &TransferForm{Amount: "1", Recipient: "a"})
		done <- err
	}()

	require.Eventually(t, c.Busy, time.Second, time.Millisecond)

	_, err := c.SubmitTransfer(context.Background(), &TransferForm{Amount: "1", Recipient: "a"})
	assert.True(t, errors.Is(err, ErrSubmissionInFlight))

	close(creator.block)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
	assert.Len(t, creator.reqs, 1)
}

func TestTransferScenarioBalanceFollowsServer(t *testing.T) {
	api := apitest.NewServer()
	t.Cleanup(api.Close)
	api.AddUser(apitest.User{
		FullName: "Talitha Kayla Amory", Email: "talitha@example.com", Password: "secret123",
		AccountNo: "100899", Balance: 10000000,
	})

	log := zaptest.NewLogger(t)
	store := wallet.NewStore(0)
	ledger := wallet.NewLedger(store, log)
	remote := client.New(client.Config{BaseURL: api.URL(), Timeout: 5 * time.Second}, store, log)
	session := wallet.NewSessionStore(store, remote, memStorage{}, nil, log)
	_, err := session.Login(context.Background(), "talitha@example.com", "secret123")
	require.NoError(t, err)

	home := dashboard.New(remote, ledger, log)
	require.Equal(t, dashboard.StatusReady, home.Mount(context.Background()).Status)
	require.Equal(t, int64(10000000), ledger.CurrentBalance())

	n := &notes{}
	c := New(testConfig, remote, ledger, home, n, wallet.Currency{Code: "IDR"}, log)
	form := &TransferForm{Amount: "2000000", Recipient: "9000008940208"}
	_, err = c.SubmitTransfer(context.Background(), form)
	require.NoError(t, err)

	assert.Equal(t, int64(8000000), ledger.CurrentBalance())
	assert.Equal(t, int64(0), ledger.NetLocalAdjustment())
	assert.Equal(t, "Transfer of IDR 2.000.000 to 9000008940208 was successful!", n.last().Message)
	assert.Len(t, home.View().Transactions, 1)

	// after logout nothing authenticated goes through
	session.Logout(context.Background())
	_, err = c.SubmitTopup(context.Background(), &TopupForm{Amount: "1"})
	assert.True(t, wallet.NeedsLogin(err))
	assert.Equal(t, 1, api.Hits(apitest.RouteCreate))
}

type memStorage map[string]string

func (m memStorage) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memStorage) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func (m memStorage) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
