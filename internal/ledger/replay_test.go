package ledger

import (
	"testing"

	"github.com/jwseo/salonbook/internal/model"
)

func TestReplay(t *testing.T) {
	entries := []model.PrepaidEntry{
		{Type: model.LedgerCharge, Amount: 100000, Bonus: 10000, BalanceAfter: 110000},
		{Type: model.LedgerUse, Amount: 50000, BalanceAfter: 60000},
		{Type: model.LedgerUse, Amount: 60000, BalanceAfter: 0},
	}
	balance, err := Replay(entries)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0, got %d", balance)
	}
}

func TestReplayDetectsNegativeBalance(t *testing.T) {
	entries := []model.PrepaidEntry{
		{Type: model.LedgerCharge, Amount: 10000, BalanceAfter: 10000},
		{Type: model.LedgerUse, Amount: 20000, BalanceAfter: -10000},
	}
	if _, err := Replay(entries); err == nil {
		t.Fatal("expected error for negative running balance")
	}
}

func TestReplayDetectsInconsistentRow(t *testing.T) {
	entries := []model.PrepaidEntry{
		{Type: model.LedgerCharge, Amount: 10000, BalanceAfter: 99999},
	}
	if _, err := Replay(entries); err == nil {
		t.Fatal("expected error when balance_after disagrees with replay")
	}
}

func TestReplayEmptyLedger(t *testing.T) {
	balance, err := Replay(nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0, got %d", balance)
	}
}
