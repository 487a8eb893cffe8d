package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqtlab/wallet/pkg/apitest"
	"github.com/eqtlab/wallet/wallet"
)

type harness struct {
	t   *testing.T
	api *apitest.Server
	env map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	api := apitest.NewServer()
	t.Cleanup(api.Close)
	api.AddUser(apitest.User{
		ID: "u-1", FullName: "Talitha Kayla Amory", Email: "talitha@example.com", Password: "secret123",
		AccountNo: "100899", Balance: 10000000,
	})

	return &harness{
		t:   t,
		api: api,
		env: map[string]string{
			"API_BASE_URL":        api.URL(),
			"API_TIMEOUT":         "5s",
			"STORAGE_SQLITE_PATH": filepath.Join(t.TempDir(), "wallet.db"),
		},
	}
}

type result struct {
	err    error
	stdout string
	stderr string
}

func (h *harness) run(stdin string, args ...string) result {
	return h.runCtx(context.Background(), stdin, args...)
}

func (h *harness) runCtx(ctx context.Context, stdin string, args ...string) result {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(ctx, args, envconfig.MapLookuper(h.env), bytes.NewBufferString(stdin), stdout, stderr)
	return result{err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func (h *harness) login() {
	h.t.Helper()
	r := h.run("", "login", "-email", "talitha@example.com", "-password", "secret123")
	require.NoError(h.t, r.err, r.stderr)
}

func TestRun_NoCommand(t *testing.T) {
	h := newHarness(t)

	r := h.run("")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "Usage:")

	r = h.run("", "balance")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, `Unknown command "balance"`)
}

func TestRun_LoginThenHome(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "-email", "talitha@example.com", "-password", "secret123")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Logged in as talitha@example.com.")

	// a fresh process restores the session from device storage
	r = h.run("", "home")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Talitha Kayla Amory")
	assert.Contains(t, r.stdout, "100899")
	assert.Contains(t, r.stdout, "IDR 10.000.000")
	assert.Contains(t, r.stdout, "No transactions yet.")
}

func TestRun_InteractivePassword(t *testing.T) {
	h := newHarness(t)

	r := h.run("secret123\n", "login", "-email", "talitha@example.com")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Password: ")
	assert.Contains(t, r.stdout, "Logged in")
}

func TestRun_LoginRejected(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "-email", "talitha@example.com", "-password", "nope")
	require.Error(t, r.err)
	assert.True(t, wallet.NeedsLogin(r.err))
	assert.Contains(t, r.stderr, "Login failed: invalid email or password")
	assert.NotContains(t, r.stderr, "Run `wallet login`")

	r = h.run("", "home")
	assert.True(t, wallet.NeedsLogin(r.err))
}

func TestRun_LoginValidation(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "-email", "talitha", "-password", "secret123")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "Please enter a valid email address.")
	assert.Zero(t, h.api.Hits(apitest.RouteLogin))
}

func TestRun_HomeWithoutSession(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "home")
	require.Error(t, r.err)
	assert.Contains(t, r.stdout, "Could not load your account")
	assert.Contains(t, r.stderr, "Run `wallet login` to sign in again.")
	assert.Zero(t, h.api.Hits(apitest.RouteProfile))
}

func TestRun_HideBalance(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.run("", "home", "-hide-balance")
	require.NoError(t, r.err, r.stderr)
	assert.NotContains(t, r.stdout, "10.000.000")
}

func TestRun_TransferScenario(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.run("", "transfer", "-amount", "2000000", "-to", "9000008940208", "-note", "rent")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Transfer of IDR 2.000.000 to 9000008940208 was successful!")
	assert.Contains(t, r.stdout, "Balance: IDR 8.000.000")
	assert.Equal(t, int64(8000000), h.api.Balance("talitha@example.com"))

	r = h.run("", "home")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "IDR 8.000.000")
	assert.Contains(t, r.stdout, "-2.000.000")
	assert.Contains(t, r.stdout, "Transfer")
}

func TestRun_TransferAboveBalance(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.run("", "transfer", "-amount", "15000000", "-to", "9000008940208")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "insufficient balance")
	assert.Zero(t, h.api.Hits(apitest.RouteCreate))
	assert.Equal(t, int64(10000000), h.api.Balance("talitha@example.com"))
}

func TestRun_TransferInvalidAmount(t *testing.T) {
	h := newHarness(t)

	// logged out: still a local validation failure, not a login prompt
	r := h.run("", "transfer", "-amount", "abc", "-to", "9000008940208")
	require.Error(t, r.err)
	assert.False(t, wallet.NeedsLogin(r.err))
	assert.Contains(t, r.stderr, "Transfer failed: invalid amount")

	h.login()
	for _, args := range [][]string{
		{"transfer", "-amount", "abc", "-to", "9000008940208"},
		{"transfer", "-amount", "0", "-to", "9000008940208"},
		{"transfer", "-amount", "100", "-to", " "},
	} {
		r = h.run("", args...)
		var vErr *wallet.ValidationError
		require.ErrorAs(t, r.err, &vErr, args)
	}

	assert.Zero(t, h.api.Hits(apitest.RouteProfile))
	assert.Zero(t, h.api.Hits(apitest.RouteTransactions))
	assert.Zero(t, h.api.Hits(apitest.RouteCreate))
}

func TestRun_Topup(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.run("", "topup", "-amount", "500000", "-method", "Bank Transfer")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Top-up of IDR 500.000 was successful!")
	assert.Contains(t, r.stdout, "Balance: IDR 10.500.000")

	r = h.run("", "topup", "-amount", "abc")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "Top Up failed: invalid amount")
	assert.Equal(t, 1, h.api.Hits(apitest.RouteCreate))
}

func TestRun_ServerErrorIsShownVerbatim(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.api.Fail(apitest.RouteCreate, 422, "daily limit reached")

	r := h.run("", "topup", "-amount", "500000")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "Top Up failed: daily limit reached")
	assert.Contains(t, r.stderr, "Recent log:")
	// warnings went to stderr already and stay out of the trail
	_, trail, _ := strings.Cut(r.stderr, "Recent log:")
	assert.NotContains(t, trail, "daily limit reached")
}

func TestRun_Logout(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.run("", "logout")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Logged out.")

	r = h.run("", "home")
	assert.True(t, wallet.NeedsLogin(r.err))
}

func TestRun_Register(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "register", "-name", "Jeno Lee", "-email", "jeno@example.com", "-password", "password1", "-accept-terms")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Account created.")

	r = h.run("", "register", "-name", "Jeno Lee", "-email", "jeno@example.com", "-password", "password1", "-accept-terms")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "email already registered")

	r = h.run("", "register", "-name", "Jeno Lee", "-email", "jeno2@example.com", "-password", "password1")
	require.Error(t, r.err)
	assert.Equal(t, 2, h.api.Hits(apitest.RouteRegister))

	r = h.run("", "login", "-email", "jeno@example.com", "-password", "password1")
	require.NoError(t, r.err, r.stderr)
}

func TestRun_SealedSession(t *testing.T) {
	h := newHarness(t)
	h.env["STORAGE_SEAL_KEY"] = "first key"
	h.login()

	r := h.run("", "home")
	require.NoError(t, r.err, r.stderr)

	// a token sealed under another key is dropped
	h.env["STORAGE_SEAL_KEY"] = "second key"
	r = h.run("", "home")
	assert.True(t, wallet.NeedsLogin(r.err))
}

func TestRun_Watch(t *testing.T) {
	h := newHarness(t)
	h.login()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	r := h.runCtx(ctx, "", "watch", "-interval", "50ms")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "IDR 10.000.000")
	assert.GreaterOrEqual(t, h.api.Hits(apitest.RouteProfile), 2)
}

func TestRun_BadConfig(t *testing.T) {
	h := newHarness(t)
	h.env["STORAGE_DRIVER"] = "redis"

	r := h.run("", "home")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "can't parse configuration")
}
