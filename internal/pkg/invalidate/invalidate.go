// Package invalidate delivers best-effort cache invalidation signals after
// successful state mutations. A failed delivery never undoes the mutation.
package invalidate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scopes signalled by the registry and the settlement engine
const (
	ScopeProviders = "admin/providers"
	ScopePayouts   = "admin/payouts"
	ScopeAccounts  = "accounts"
)

// AccountScope returns the scope of a single account's balance and ledger views
func AccountScope(accountID string) string {
	return ScopeAccounts + "/" + accountID
}

// Hook is the external invalidation collaborator
type Hook interface {
	Invalidate(ctx context.Context, scope string) error
}

// Noop discards every signal
type Noop struct{}

func (Noop) Invalidate(context.Context, string) error { return nil }

// Multi fans a signal out to every hook and joins their errors
type Multi []Hook

func (m Multi) Invalidate(ctx context.Context, scope string) error {
	var errs []error
	for _, h := range m {
		if err := h.Invalidate(ctx, scope); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher fires hooks asynchronously so callers never wait on delivery
type Dispatcher struct {
	hook    Hook
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps hook; a nil hook behaves like Noop
func NewDispatcher(hook Hook, timeout time.Duration) *Dispatcher {
	if hook == nil {
		hook = Noop{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Dispatcher{hook: hook, timeout: timeout}
}

// Fire signals every scope in the background and returns immediately
func (d *Dispatcher) Fire(scopes ...string) {
	for _, scope := range scopes {
		d.wg.Add(1)
		go func(scope string) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := d.hook.Invalidate(ctx, scope); err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("cache invalidation failed")
				return
			}
			log.Debug().Str("scope", scope).Msg("cache invalidated")
		}(scope)
	}
}

// Wait blocks until in-flight signals are delivered; used on shutdown
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
