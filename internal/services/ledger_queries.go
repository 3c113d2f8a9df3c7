package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ruralpay/minibank/internal/models"
)

// GetBalances returns every account ordered by id. It takes no locks and
// reflects whatever state was committed when the query ran.
func (s *LedgerService) GetBalances(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, selectBalances)
	if err != nil {
		return nil, &StorageError{Op: "get balances", Err: err}
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance); err != nil {
			return nil, &StorageError{Op: "get balances", Err: err}
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get balances", Err: err}
	}
	return accounts, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx, selectAccount, accountID).
		Scan(&a.ID, &a.Name, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Which: "account", ID: accountID}
	}
	if err != nil {
		return nil, &StorageError{Op: "get account", Err: err}
	}
	return &a, nil
}

// GetHistory returns the whole transactions log, newest first. Rows sharing a
// timestamp (both legs of a transfer always do) are ordered by id descending.
func (s *LedgerService) GetHistory(ctx context.Context) ([]models.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectHistory)
	if err != nil {
		return nil, &StorageError{Op: "get history", Err: err}
	}
	return scanRecords(rows, "get history")
}

// GetAccountHistory returns the newest records of one account. limit is
// clamped by the ledger configuration. Records are kept for ids that no
// longer resolve to an account, so no existence check is made.
func (s *LedgerService) GetAccountHistory(ctx context.Context, accountID int64, limit int) ([]models.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectAccountHistory, accountID, s.cfg.ClampHistoryLimit(limit))
	if err != nil {
		return nil, &StorageError{Op: "get account history", Err: err}
	}
	return scanRecords(rows, "get account history")
}

func scanRecords(rows *sql.Rows, op string) ([]models.TransactionRecord, error) {
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		var rec models.TransactionRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.AccountName, &kind, &rec.Amount, &rec.CreatedAt); err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		rec.Kind = models.TransactionKind(kind)
		if !rec.Kind.Valid() {
			return nil, &StorageError{Op: op, Err: fmt.Errorf("record %d has unknown kind %q", rec.ID, kind)}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return records, nil
}
