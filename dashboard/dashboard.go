package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eqtlab/wallet/wallet"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// View is what the home screen renders. Profile and Transactions are either both set or both empty.
type View struct {
	Status       Status
	Profile      *wallet.Account
	Transactions []wallet.Transaction // newest first
	Err          error                // why the screen is in the error state
	RefreshErr   error                // last failed refresh, while older data stays on screen
	Refreshing   bool
	UpdatedAt    time.Time
}

type Fetcher interface {
	FetchProfile(ctx context.Context) (*wallet.Account, error)
	FetchTransactions(ctx context.Context) ([]wallet.Transaction, error)
}

// Reconciler receives the server balance each time a profile is loaded.
type Reconciler interface {
	Reconcile(serverBalance int64) int64
}

type Presenter struct {
	fetcher Fetcher
	ledger  Reconciler
	logger  *zap.Logger
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	view  View
	gen   uint64 // fetches started under the same generation are shared
	seq   uint64 // last fetch started
	shown uint64 // seq of the fetch on screen
}

func New(f Fetcher, r Reconciler, l *zap.Logger) *Presenter {
	return &Presenter{
		fetcher: f,
		ledger:  r,
		logger:  l,
		now:     time.Now,
	}
}

func (p *Presenter) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyView()
}

// Mount loads the screen from scratch: loading first, then either everything or the error state.
func (p *Presenter) Mount(ctx context.Context) View {
	p.mu.Lock()
	p.view = View{Status: StatusLoading}
	p.gen++
	p.mu.Unlock()

	snap, err := p.load(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.logger.Warn("dashboard: mount failed", zap.Error(err))
		p.view = View{Status: StatusFailed, Err: err}
		return p.copyView()
	}
	p.apply(snap)
	return p.copyView()
}

// Refresh re-runs both fetches, joining one already in flight. On failure data already on screen stays there.
func (p *Presenter) Refresh(ctx context.Context) error {
	return p.refresh(ctx, false)
}

// Reload is Refresh after a write: it never joins a fetch that started before the call.
func (p *Presenter) Reload(ctx context.Context) error {
	return p.refresh(ctx, true)
}

func (p *Presenter) refresh(ctx context.Context, fresh bool) error {
	p.mu.Lock()
	p.view.Refreshing = true
	if fresh {
		p.gen++
	}
	p.mu.Unlock()

	snap, err := p.load(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Refreshing = false
	if err != nil {
		if p.view.Status == StatusReady {
			p.logger.Warn("dashboard: refresh failed, keeping stale data", zap.Error(err))
			p.view.RefreshErr = err
		} else {
			p.view = View{Status: StatusFailed, Err: err}
		}
		return err
	}
	p.apply(snap)
	return nil
}

type snapshot struct {
	seq          uint64
	profile      *wallet.Account
	transactions []wallet.Transaction
}

// load fetches profile and history concurrently; callers of the same generation share one round trip.
// The shared fetch outlives a caller that gives up, so one cancellation doesn't fail the others.
func (p *Presenter) load(ctx context.Context) (snapshot, error) {
	p.mu.RLock()
	key := strconv.FormatUint(p.gen, 10)
	p.mu.RUnlock()

	ch := p.group.DoChan(key, func() (any, error) {
		return p.fetchBoth(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			p.logger.Debug("dashboard: joined an in-flight load")
		}
		if res.Err != nil {
			return snapshot{}, res.Err
		}
		return res.Val.(snapshot), nil
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	}
}

func (p *Presenter) fetchBoth(ctx context.Context) (snapshot, error) {
	p.mu.Lock()
	p.seq++
	snap := snapshot{seq: p.seq}
	p.mu.Unlock()

	pl := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	pl.Go(func(ctx context.Context) error {
		profile, err := p.fetcher.FetchProfile(ctx)
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		snap.profile = profile
		return nil
	})
	pl.Go(func(ctx context.Context) error {
		txs, err := p.fetcher.FetchTransactions(ctx)
		if err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}
		snap.transactions = txs
		return nil
	})
	if err := pl.Wait(); err != nil {
		return snapshot{}, err
	}

	slices.SortStableFunc(snap.transactions, func(a, b wallet.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return snap, nil
}

// apply must be called with mu held. A snapshot older than the one on screen is dropped.
func (p *Presenter) apply(snap snapshot) {
	if snap.seq < p.shown {
		p.logger.Debug("dashboard: dropping out-of-date load", zap.Uint64("seq", snap.seq), zap.Uint64("shown", p.shown))
		return
	}
	p.shown = snap.seq

	p.ledger.Reconcile(snap.profile.Balance)
	p.view = View{
		Status:       StatusReady,
		Profile:      snap.profile,
		Transactions: snap.transactions,
		UpdatedAt:    p.now(),
	}
	p.logger.Debug(
		"dashboard: loaded",
		zap.Int64("balance", snap.profile.Balance),
		zap.Int("transactions", len(snap.transactions)),
	)
}

// copyView must be called with mu held.
func (p *Presenter) copyView() View {
	v := p.view
	if v.Profile != nil {
		profile := *v.Profile
		v.Profile = &profile
	}
	v.Transactions = slices.Clone(v.Transactions)
	return v
}
