package settlement

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medibook/medibook-api/internal/domain/authz"
)

var statementHeader = []string{"entry_id", "created_at", "category", "delta", "balance_after", "payout_id", "actor_id", "description"}

// ExportStatement writes the account's full ledger, oldest first, as CSV to
// object storage and returns where it was stored.
func (s *Service) ExportStatement(ctx context.Context, accountID uuid.UUID) (*Statement, error) {
	actor, err := authz.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}
	if s.objects == nil {
		return nil, ErrStatementsDisabled
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, classify(err)
	}

	var entries []*LedgerEntry
	err = s.store.ScanLedger(ctx, accountID, maxPageLimit, func(batch []*LedgerEntry) error {
		entries = append(entries, batch...)
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	body, err := encodeStatement(entries)
	if err != nil {
		return nil, classify(err)
	}

	key := statementKey(accountID, s.now())
	if err := s.objects.Put(ctx, key, bytes.NewReader(body), "text/csv"); err != nil {
		return nil, classify(fmt.Errorf("upload statement: %w", err))
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("actor_id", actor.ID.String()).
		Str("key", key).
		Int("entries", len(entries)).
		Msg("ledger statement exported")

	return &Statement{
		AccountID: accountID,
		Key:       key,
		URL:       s.objects.GetURL(key),
		Entries:   len(entries),
	}, nil
}

func statementKey(accountID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("statements/%s/%s.csv", accountID, at.Format("20060102T150405Z"))
}

// encodeStatement expects entries oldest first, as ScanLedger yields them
func encodeStatement(entries []*LedgerEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementHeader); err != nil {
		return nil, err
	}

	for _, e := range entries {
		record := []string{
			e.ID.String(),
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Category),
			strconv.FormatInt(e.Delta, 10),
			strconv.FormatInt(e.BalanceAfter, 10),
			optionalID(e.PayoutID),
			optionalID(e.ActorID),
			e.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
