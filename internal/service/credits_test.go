package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ledger"
	"github.com/octobees/contact-enricher/internal/localstore"
)

func newCreditsService(t *testing.T, now time.Time) *CreditsService {
	t.Helper()
	db, err := localstore.Open(filepath.Join(t.TempDir(), "credits.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := localstore.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := localstore.NewCreditStore(db)
	clock := func() time.Time { return now }
	svc := NewCreditsService(ledger.New(store, ledger.WithClock(clock), ledger.WithLogger(logger)), store)
	svc.now = clock
	return svc
}

func TestCreditsService_Allocate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	explicit := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	tests := map[string]struct {
		req          dto.AllocateCreditsRequest
		expectError  string
		expectSource entity.CreditSource
		expectExpiry time.Time
	}{
		"missing user": {
			req:         dto.AllocateCreditsRequest{Credits: 10},
			expectError: "user_id is required",
		},
		"non positive credits": {
			req:         dto.AllocateCreditsRequest{UserID: "alice"},
			expectError: "credits must be positive",
		},
		"unknown source": {
			req:         dto.AllocateCreditsRequest{UserID: "alice", Credits: 5, Source: "gift"},
			expectError: `unknown credit source "gift"`,
		},
		"expiry in the past": {
			req:         dto.AllocateCreditsRequest{UserID: "alice", Credits: 5, ExpiresAt: &past},
			expectError: "expires_at must be in the future",
		},
		"valid days out of range": {
			req:         dto.AllocateCreditsRequest{UserID: "alice", Credits: 5, ValidDays: -1},
			expectError: "valid_days must be between 1 and 3650",
		},
		"defaults": {
			req:          dto.AllocateCreditsRequest{UserID: "alice", Credits: 5},
			expectSource: entity.CreditSourceSubscription,
			expectExpiry: now.AddDate(0, 0, 30),
		},
		"valid days": {
			req:          dto.AllocateCreditsRequest{UserID: "alice", Credits: 5, Source: "TopUp", ValidDays: 7},
			expectSource: entity.CreditSourceTopUp,
			expectExpiry: now.AddDate(0, 0, 7),
		},
		"explicit expiry wins": {
			req:          dto.AllocateCreditsRequest{UserID: "alice", Credits: 5, ExpiresAt: &explicit, ValidDays: 7},
			expectSource: entity.CreditSourceSubscription,
			expectExpiry: explicit,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc := newCreditsService(t, now)
			alloc, err := svc.Allocate(context.Background(), tt.req)
			if tt.expectError != "" {
				var valErr ValidationError
				if !errors.As(err, &valErr) || valErr.Error() != tt.expectError {
					t.Fatalf("expected validation error %q, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if alloc.Source != tt.expectSource || !alloc.ExpiresAt.Equal(tt.expectExpiry) {
				t.Fatalf("unexpected allocation: %+v", alloc)
			}
			if alloc.CreditsRemaining != 5 {
				t.Fatalf("expected 5 remaining, got %d", alloc.CreditsRemaining)
			}
		})
	}
}

func TestCreditsService_BalanceAndHistory(t *testing.T) {
	now := time.Now()
	svc := newCreditsService(t, now)
	ctx := context.Background()

	if _, err := svc.Balance(ctx, " "); err == nil {
		t.Fatalf("expected validation error for blank user")
	}
	if _, err := svc.History(ctx, "", 10); err == nil {
		t.Fatalf("expected validation error for blank user")
	}

	for _, credits := range []int{10, 20} {
		if _, err := svc.Allocate(ctx, dto.AllocateCreditsRequest{UserID: "bob", Credits: credits}); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}

	balance, err := svc.Balance(ctx, "bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available != 30 || balance.LifetimeTotal != 30 {
		t.Fatalf("unexpected balance: %+v", balance)
	}

	logs, err := svc.History(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(logs))
	}
	for _, entry := range logs {
		if entry.Operation != entity.CreditOperationAllocate {
			t.Fatalf("unexpected operation %q", entry.Operation)
		}
	}

	logs, err = svc.History(ctx, "bob", 1)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected limit to apply, got %d entries (err %v)", len(logs), err)
	}
}
