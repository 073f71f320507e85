package settlement

import (
	"context"
	stdlog "log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const reconcileTimeout = time.Minute

// Reconciler periodically audits that every balance equals its ledger sum
type Reconciler struct {
	cron     *cron.Cron
	service  *Service
	schedule string
}

// NewReconciler creates a reconciler running on a cron schedule
// such as "@every 15m" or "0 3 * * *".
func NewReconciler(service *Service, schedule string) *Reconciler {
	cronLogger := cron.PrintfLogger(stdlog.New(log.Logger, "cron: ", 0))
	return &Reconciler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		service:  service,
		schedule: schedule,
	}
}

// Start registers the audit job and starts the scheduler
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.Run); err != nil {
		log.Error().Err(err).Str("schedule", r.schedule).Msg("failed to schedule ledger reconciliation")
		return err
	}
	log.Info().Str("schedule", r.schedule).Msg("scheduled ledger reconciliation")
	r.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done when a running job finishes
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}

// Run performs one audit
func (r *Reconciler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	report, err := r.service.reconcile(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ledger reconciliation failed")
		return
	}

	for _, d := range report.Discrepancies {
		log.Error().
			Str("account_id", d.AccountID.String()).
			Int64("balance", d.Balance).
			Int64("ledger_sum", d.LedgerSum).
			Int64("drift", d.Drift()).
			Msg("balance does not match ledger")
	}
	log.Info().
		Int("checked", report.Checked).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("ledger reconciliation finished")
}
