package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eqtlab/wallet/wallet"
)

const maxResponseSize = 1 << 20

type Config struct {
	BaseURL string        `env:"BASE_URL, default=http://54.254.164.127/api/v1"`
	Timeout time.Duration `env:"TIMEOUT, default=30s"` // a request that outlives it fails with a network error
}

type TokenSource interface {
	CurrentToken() (string, bool)
}

// Client is a thin wrapper around the wallet REST API. No retries, no caching.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

func New(cfg Config, tokens TokenSource, l *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		logger:  l,
	}
}

// Login implements wallet.Authenticator.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp envelope[loginData]
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.Token == nil {
		return "", malformed(http.StatusOK, "POST /auth/login", errMissingData)
	}

	return *resp.Data.Token, nil
}

// Register implements wallet.Authenticator.
func (c *Client) Register(ctx context.Context, r wallet.Registration) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/register",
		body: registerRequest{
			FullName:  r.FullName,
			Email:     r.Email,
			Password:  r.Password,
			AvatarURL: r.AvatarURL,
		},
	}, nil)
}

func (c *Client) FetchProfile(ctx context.Context) (*wallet.Account, error) {
	const op = "GET /users/me"

	var resp envelope[profileData]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/me", auth: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, malformed(http.StatusOK, op, errMissingData)
	}

	account, err := resp.Data.toAccount()
	if err != nil {
		return nil, malformed(http.StatusOK, op, err)
	}

	return account, nil
}

func (c *Client) FetchTransactions(ctx context.Context) ([]wallet.Transaction, error) {
	const op = "GET /transactions/"

	var resp envelope[[]transactionData]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/transactions/", auth: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, malformed(http.StatusOK, op, errMissingData)
	}

	out := make([]wallet.Transaction, 0, len(*resp.Data))
	for i := range *resp.Data {
		tx, err := (*resp.Data)[i].toTransaction()
		if err != nil {
			return nil, malformed(http.StatusOK, op, err)
		}
		out = append(out, tx)
	}

	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req wallet.TransactionRequest) (*wallet.Transaction, error) {
	const op = "POST /transactions"

	var resp envelope[transactionData]
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/transactions",
		auth:   true,
		body: transactionRequest{
			Type:        string(req.Type),
			FromTo:      req.FromTo,
			Amount:      req.Amount,
			Description: req.Description,
		},
		idempotencyKey: uuid.NewString(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, malformed(http.StatusOK, op, errMissingData)
	}

	tx, err := resp.Data.toTransaction()
	if err != nil {
		return nil, malformed(http.StatusOK, op, err)
	}

	return &tx, nil
}

type request struct {
	method         string
	path           string
	body           any
	auth           bool
	idempotencyKey string
}

// do performs one round trip and maps the outcome onto the wallet error taxonomy.
func (c *Client) do(ctx context.Context, req request, out any) error {
	op := req.method + " " + req.path

	var token string
	if req.auth {
		t, ok := c.tokens.CurrentToken()
		if !ok {
			return wallet.ErrNoToken
		}
		token = t
	}

	var body io.Reader
	if req.body != nil {
		bb, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		body = bytes.NewReader(bb)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.idempotencyKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn(
			"client: request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return &wallet.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &wallet.NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug(
		"client: request done",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return malformed(resp.StatusCode, op, err)
		}
		return nil
	}

	msg := errorMessage(resp.StatusCode, payload)
	if req.auth && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return &wallet.AuthError{Reason: msg}
	}

	return &wallet.ServiceError{Status: resp.StatusCode, Message: msg}
}
