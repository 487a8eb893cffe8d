package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eqtlab/wallet/wallet"
)

// Wire shapes of the remote service. Every required field is a pointer or nullable
// so that a missing field can be told apart from a zero value.

type envelope[T any] struct {
	Data *T `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginData struct {
	Token *string `json:"token"`
}

type registerRequest struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url"`
}

type profileData struct {
	ID        flexString          `json:"id"`
	FullName  *string             `json:"full_name"`
	AccountNo *flexString         `json:"account_no"`
	Balance   decimal.NullDecimal `json:"balance"`
}

type transactionRequest struct {
	Type        string `json:"type"`
	FromTo      string `json:"from_to"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type transactionData struct {
	ID          *int64              `json:"id"`
	Type        *string             `json:"type"`
	FromTo      *string             `json:"from_to"`
	Amount      decimal.NullDecimal `json:"amount"`
	Description string              `json:"description"`
	CreatedAt   *time.Time          `json:"created_at"`
}

// flexString accepts both "100899" and 100899.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

var errMissingData = errors.New("missing data")

func malformed(status int, op string, err error) error {
	return &wallet.ServiceError{
		Status:  status,
		Message: "unexpected response from server",
		Err:     fmt.Errorf("%s: malformed response: %w", op, err),
	}
}

func errorMessage(status int, payload []byte) string {
	var body errorBody
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return http.StatusText(status)
}

func wholeAmount(field string, d decimal.NullDecimal) (int64, error) {
	if !d.Valid {
		return 0, fmt.Errorf("missing %s", field)
	}
	if !d.Decimal.IsInteger() || !d.Decimal.BigInt().IsInt64() {
		return 0, fmt.Errorf("%s is not a whole amount: %s", field, d.Decimal.String())
	}
	return d.Decimal.IntPart(), nil
}

func (p *profileData) toAccount() (*wallet.Account, error) {
	if p.FullName == nil {
		return nil, errors.New("missing full_name")
	}
	if p.AccountNo == nil {
		return nil, errors.New("missing account_no")
	}
	balance, err := wholeAmount("balance", p.Balance)
	if err != nil {
		return nil, err
	}

	return &wallet.Account{
		ID:            string(p.ID),
		FullName:      *p.FullName,
		AccountNumber: string(*p.AccountNo),
		Balance:       balance,
	}, nil
}

func (t *transactionData) toTransaction() (wallet.Transaction, error) {
	if t.ID == nil {
		return wallet.Transaction{}, errors.New("missing id")
	}
	if t.Type == nil || !wallet.TxType(*t.Type).Valid() {
		return wallet.Transaction{}, fmt.Errorf("transaction %d: bad type", *t.ID)
	}
	if t.FromTo == nil {
		return wallet.Transaction{}, fmt.Errorf("transaction %d: missing from_to", *t.ID)
	}
	if t.CreatedAt == nil {
		return wallet.Transaction{}, fmt.Errorf("transaction %d: missing created_at", *t.ID)
	}
	amount, err := wholeAmount("amount", t.Amount)
	if err != nil {
		return wallet.Transaction{}, fmt.Errorf("transaction %d: %w", *t.ID, err)
	}
	if amount <= 0 {
		return wallet.Transaction{}, fmt.Errorf("transaction %d: non-positive amount", *t.ID)
	}

	return wallet.Transaction{
		ID:           *t.ID,
		Type:         wallet.TxType(*t.Type),
		Counterparty: *t.FromTo,
		Amount:       amount,
		Description:  t.Description,
		CreatedAt:    *t.CreatedAt,
	}, nil
}
