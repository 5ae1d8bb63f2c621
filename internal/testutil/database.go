// Package testutil provides test utilities shared across packages: an
// in-memory database with migrations applied and builders for common
// fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/autobank/internal/model"
	"github.com/Veraticus/autobank/internal/service"
	"github.com/Veraticus/autobank/internal/storage"
)

// SetupTestDB creates an in-memory database with migrations applied.
// Cleanup is registered automatically.
func SetupTestDB(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// NewRule builds an enabled rule with sensible defaults for tests.
func NewRule(triggerAccountKey string, conditions []model.Condition, actions []model.Action) *model.Rule {
	now := time.Now().Unix()
	return &model.Rule{
		ID:                uuid.NewString(),
		Name:              "test rule",
		Enabled:           true,
		TriggerAccountKey: triggerAccountKey,
		Conditions:        conditions,
		Actions:           actions,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewTransaction builds a booked transaction with sensible defaults.
func NewTransaction(id, description string, amount float64) model.Transaction {
	return model.Transaction{
		ID:            id,
		Description:   description,
		Amount:        amount,
		Date:          time.Now().UnixMilli(),
		TypeCode:      "VARER",
		CurrencyCode:  "NOK",
		BookingStatus: model.BookingStatusBooked,
		AccountKey:    "checking-1",
	}
}
