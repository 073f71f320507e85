package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/config"
	"github.com/medibook/medibook-api/internal/domain/settlement"
	"github.com/medibook/medibook-api/internal/pkg/database"
	"github.com/medibook/medibook-api/internal/pkg/jwt"
)

// debug_login mints an access token for local testing and, with -reconcile,
// prints every account whose balance differs from its ledger.
func main() {
	cfg := config.Load()

	accountFlag := flag.String("account", "", "account id to issue the token for (random if empty)")
	roleFlag := flag.String("role", "ADMIN", "role claim: ADMIN, DOCTOR or PATIENT")
	ttlFlag := flag.Duration("ttl", time.Hour, "token lifetime")
	reconcileFlag := flag.Bool("reconcile", false, "compare balances with ledger sums in DATABASE_URL")
	flag.Parse()

	id, err := parseAccountID(*accountFlag)
	if err != nil {
		log.Fatalf("Invalid -account: %v", err)
	}

	token, err := jwt.NewService(cfg.JWTSecret, *ttlFlag).GenerateAccessToken(id, strings.ToUpper(*roleFlag))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Printf("account: %s\nrole:    %s\ntoken:   %s\n", id, strings.ToUpper(*roleFlag), token)

	if !*reconcileFlag {
		return
	}

	db, err := database.NewPostgres(cfg.Postgres())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePostgres(db)

	totals, err := settlement.NewRepository(db, cfg.SettlementTxTimeout).SumLedger(context.Background())
	if err != nil {
		log.Fatalf("Failed to sum ledger: %v", err)
	}

	drifted := 0
	fmt.Println("--- Ledger reconciliation ---")
	for _, t := range totals {
		if t.Drift() == 0 {
			continue
		}
		drifted++
		fmt.Printf("%s balance=%d ledger=%d drift=%d\n", t.AccountID, t.Balance, t.LedgerSum, t.Drift())
	}
	fmt.Printf("checked %d accounts, %d drifted\n", len(totals), drifted)
	if drifted > 0 {
		os.Exit(1)
	}
}

func parseAccountID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}
