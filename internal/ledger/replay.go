package ledger

import (
	"fmt"

	"github.com/jwseo/salonbook/internal/model"
)

// Replay folds ledger rows in chronological order and returns the final
// balance. It fails if any row disagrees with the running balance or
// drives it negative; the ledger alone must reconstruct the account.
func Replay(entries []model.PrepaidEntry) (int64, error) {
	var balance int64
	for i, e := range entries {
		switch e.Type {
		case model.LedgerCharge:
			balance += e.Amount + e.Bonus
		case model.LedgerUse:
			balance -= e.Amount
		default:
			return 0, fmt.Errorf("row %d: unknown entry type %q", i, e.Type)
		}
		if balance < 0 {
			return 0, fmt.Errorf("row %d: balance went negative (%d)", i, balance)
		}
		if e.BalanceAfter != balance {
			return 0, fmt.Errorf("row %d: balance_after %d, replay says %d", i, e.BalanceAfter, balance)
		}
	}
	return balance, nil
}
