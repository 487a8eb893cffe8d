package wallet

import (
	"time"

	"go.uber.org/zap"
)

// Ledger is the session-local balance. It only ever moves by signed deltas,
// so the journal always explains how the current value was reached.
type Ledger struct {
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store *Store, l *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: l,
		now:    time.Now,
	}
}

func (l *Ledger) CurrentBalance() int64 {
	return l.store.State().Balance
}

// ApplyDelta adds signedAmount to the balance and returns the new value. No validation is done here.
func (l *Ledger) ApplyDelta(signedAmount int64) int64 {
	return l.apply(signedAmount, SourceLocal)
}

// Reconcile moves the balance to the server's value by applying the difference as a delta.
func (l *Ledger) Reconcile(serverBalance int64) int64 {
	st := l.store.dispatch(reconciled{server: serverBalance, at: l.now()})

	l.logger.Debug(
		"ledger: reconciled with server balance",
		zap.Int64("server_balance", serverBalance),
		zap.Int("journal", len(st.Journal)),
	)

	return st.Balance
}

// Journal returns every adjustment made during this session, oldest first.
func (l *Ledger) Journal() []Adjustment {
	return l.store.State().Journal
}

// NetLocalAdjustment is the sum of the deltas that did not come from the server.
func (l *Ledger) NetLocalAdjustment() int64 {
	var net int64
	for _, adj := range l.Journal() {
		if adj.Source == SourceLocal {
			net += adj.Delta
		}
	}
	return net
}

func (l *Ledger) apply(delta int64, source AdjustmentSource) int64 {
	st := l.store.dispatch(balanceAdjusted{adj: Adjustment{
		Delta:  delta,
		Source: source,
		At:     l.now(),
	}})
	return st.Balance
}
