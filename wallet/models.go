package wallet

import (
	"time"
)

// TxType is the direction of a transaction as it travels on the wire.
type TxType string

const (
	Credit TxType = "c"
	Debit  TxType = "d"
)

func (t TxType) Valid() bool {
	return t == Credit || t == Debit
}

func (t TxType) String() string {
	switch t {
	case Credit:
		return "credit"
	case Debit:
		return "debit"
	default:
		return "unknown(" + string(t) + ")"
	}
}

// Session is the result of a successful login.
type Session struct {
	Token string
}

// Account is the read-only copy of the remote profile.
type Account struct {
	ID            string
	FullName      string
	AccountNumber string
	Balance       int64
}

// Transaction is created by the remote service only and never mutated by the client.
type Transaction struct {
	ID           int64
	Type         TxType
	Counterparty string
	Amount       int64
	Description  string
	CreatedAt    time.Time
}

// Signed returns the amount with the sign of its effect on the balance.
func (t Transaction) Signed() int64 {
	if t.Type == Debit {
		return -t.Amount
	}
	return t.Amount
}

// TransactionRequest is what the flow controller submits to the remote service.
type TransactionRequest struct {
	Type        TxType
	FromTo      string
	Amount      int64
	Description string
}

// Registration is the payload of a new account sign-up.
type Registration struct {
	FullName      string
	Email         string
	Password      string
	AvatarURL     string
	AcceptedTerms bool
}
