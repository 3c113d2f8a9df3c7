package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ruralpay/minibank/internal/audit"
	"github.com/ruralpay/minibank/internal/config"
	"github.com/ruralpay/minibank/internal/models"
	"github.com/shopspring/decimal"
)

const (
	insertAccount = `INSERT INTO accounts (name, balance) VALUES ($1, $2) RETURNING id`

	selectAccountForUpdate = `SELECT id, name, balance, version FROM accounts WHERE id = $1 FOR UPDATE`

	updateAccountBalance = `UPDATE accounts SET balance = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`

	insertTransaction = `INSERT INTO transactions (account_id, account_name, kind, amount) VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	selectAccount = `SELECT id, name, balance, version, created_at, updated_at FROM accounts WHERE id = $1`

	selectBalances = `SELECT id, name, balance FROM accounts ORDER BY id ASC`

	selectHistory = `SELECT id, account_id, account_name, kind, amount, created_at FROM transactions ORDER BY created_at DESC, id DESC`

	selectAccountHistory = `SELECT id, account_id, account_name, kind, amount, created_at FROM transactions WHERE account_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
)

// Balance and amount columns are NUMERIC(20,2): 18 integer digits, 2 fractional.
const (
	moneyPlaces      = 2
	maxIntegerDigits = 18
)

var maxBalance = decimal.New(1, maxIntegerDigits)

// LedgerService owns the accounts and transactions tables. Every mutating
// operation is one database transaction: it either commits balance changes
// together with their transaction records or leaves both untouched.
type LedgerService struct {
	db    *sql.DB
	cfg   *config.LedgerConfig
	audit *audit.Logger
}

func NewLedgerService(db *sql.DB, cfg *config.LedgerConfig) *LedgerService {
	if cfg == nil {
		cfg = config.DefaultLedgerConfig()
	}
	return &LedgerService{
		db:    db,
		cfg:   cfg,
		audit: audit.NewLogger(),
	}
}

// CreateAccount inserts an account with the given opening balance. Opening an
// account is not a ledger movement, so no transaction record is written.
func (s *LedgerService) CreateAccount(ctx context.Context, name string, initialBalance decimal.Decimal) (int64, error) {
	if initialBalance.IsNegative() {
		return 0, &ValidationError{Field: "initial_balance", Reason: "must not be negative"}
	}
	if err := checkPrecision("initial_balance", initialBalance); err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, insertAccount, name, initialBalance).Scan(&id); err != nil {
		return 0, &StorageError{Op: "create account", Err: err}
	}
	return id, nil
}

// Deposit adds amount to the account and appends a deposit record.
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.TransactionRecord, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var rec *models.TransactionRecord
	err := s.withTx(ctx, "deposit", func(tx *sql.Tx) error {
		acct, err := s.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return &NotFoundError{Which: "account", ID: accountID}
		}

		newBalance := acct.Balance.Add(amount)
		if err := checkBalanceCeiling(newBalance); err != nil {
			return err
		}
		if err := s.updateAccountBalance(ctx, tx, acct, newBalance); err != nil {
			return err
		}
		rec, err = s.appendRecord(ctx, tx, acct, models.KindDeposit, amount)
		return err
	})
	if err != nil {
		s.audit.LogError("deposit", accountID, amount, err)
		return nil, err
	}

	s.audit.LogMovement(rec)
	return rec, nil
}

// Withdraw removes amount from the account and appends a withdraw record.
// The balance check runs against the locked row, so concurrent withdrawals
// on one account can never both pass it against the same balance.
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.TransactionRecord, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var rec *models.TransactionRecord
	err := s.withTx(ctx, "withdraw", func(tx *sql.Tx) error {
		acct, err := s.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return &NotFoundError{Which: "account", ID: accountID}
		}
		if acct.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		if err := s.updateAccountBalance(ctx, tx, acct, acct.Balance.Sub(amount)); err != nil {
			return err
		}
		rec, err = s.appendRecord(ctx, tx, acct, models.KindWithdraw, amount)
		return err
	})
	if err != nil {
		s.audit.LogError("withdraw", accountID, amount, err)
		return nil, err
	}

	s.audit.LogMovement(rec)
	return rec, nil
}

// Transfer moves amount from one account to another and appends the paired
// transfer-out and transfer-in records. Checks run in a fixed order: sender
// exists, sender covers amount, recipient exists. A transfer to the same
// account is allowed; its balance is unchanged but both records are written.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*models.TransactionRecord, *models.TransactionRecord, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	var out, in *models.TransactionRecord
	err := s.withTx(ctx, "transfer", func(tx *sql.Tx) error {
		from, to, err := s.lockPair(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}

		if from == nil {
			return &NotFoundError{Which: "sender", ID: fromID}
		}
		if from.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if to == nil {
			return &NotFoundError{Which: "recipient", ID: toID}
		}

		if fromID != toID {
			if err := checkBalanceCeiling(to.Balance.Add(amount)); err != nil {
				return err
			}
			if err := s.updateAccountBalance(ctx, tx, from, from.Balance.Sub(amount)); err != nil {
				return err
			}
			if err := s.updateAccountBalance(ctx, tx, to, to.Balance.Add(amount)); err != nil {
				return err
			}
		}

		if out, err = s.appendRecord(ctx, tx, from, models.KindTransferOut, amount); err != nil {
			return err
		}
		in, err = s.appendRecord(ctx, tx, to, models.KindTransferIn, amount)
		return err
	})
	if err != nil {
		s.audit.LogError("transfer", fromID, amount, err)
		return nil, nil, err
	}

	s.audit.LogTransfer(out, in)
	return out, in, nil
}

// lockPair locks both transfer accounts in ascending id order, whatever the
// transfer direction, so opposing transfers cannot deadlock. A missing
// account comes back nil.
func (s *LedgerService) lockPair(ctx context.Context, tx *sql.Tx, fromID, toID int64) (*models.Account, *models.Account, error) {
	if fromID == toID {
		acct, err := s.lockAccount(ctx, tx, fromID)
		return acct, acct, err
	}

	firstLock, secondLock := fromID, toID
	if fromID > toID {
		firstLock, secondLock = toID, fromID
	}

	first, err := s.lockAccount(ctx, tx, firstLock)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.lockAccount(ctx, tx, secondLock)
	if err != nil {
		return nil, nil, err
	}

	if firstLock != fromID {
		first, second = second, first
	}
	return first, second, nil
}

// lockAccount takes the row lock on an account for the rest of tx.
// It returns a nil account, not an error, when the id does not exist.
func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, selectAccountForUpdate, accountID).
		Scan(&account.ID, &account.Name, &account.Balance, &account.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "lock account", Err: err}
	}
	return &account, nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, account *models.Account, newBalance decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, updateAccountBalance,
		newBalance, time.Now(), account.ID, account.Version)
	if err != nil {
		return &StorageError{Op: "update balance", Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &StorageError{Op: "update balance", Err: err}
	}
	if rowsAffected == 0 {
		return errVersionConflict
	}

	account.Balance = newBalance
	account.Version++
	return nil
}

// appendRecord writes one transactions row, snapshotting the account name.
func (s *LedgerService) appendRecord(ctx context.Context, tx *sql.Tx, account *models.Account, kind models.TransactionKind, amount decimal.Decimal) (*models.TransactionRecord, error) {
	rec := &models.TransactionRecord{
		AccountID:   account.ID,
		AccountName: account.Name,
		Kind:        kind,
		Amount:      amount,
	}
	err := tx.QueryRowContext(ctx, insertTransaction, account.ID, account.Name, string(kind), amount).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, &StorageError{Op: "append " + string(kind), Err: err}
	}
	return rec, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return checkPrecision("amount", amount)
}

// checkPrecision rejects values the NUMERIC(20,2) columns cannot hold. It
// works from the coefficient digits and exponent first, so a value like
// 1e20000000 is refused without ever being expanded.
func checkPrecision(field string, v decimal.Decimal) error {
	if v.IsZero() {
		return nil
	}
	digits := int64(v.NumDigits())
	exp := int64(v.Exponent())

	if digits+exp > maxIntegerDigits {
		return &ValidationError{Field: field, Reason: "must be less than 10^18"}
	}
	// A nonzero coefficient cannot end in more zeros than it has digits.
	if exp < -moneyPlaces && -exp-moneyPlaces > digits {
		return &ValidationError{Field: field, Reason: "must have at most 2 decimal places"}
	}
	if !v.Equal(v.Truncate(moneyPlaces)) {
		return &ValidationError{Field: field, Reason: "must have at most 2 decimal places"}
	}
	return nil
}

// checkBalanceCeiling reports a credit that would push a balance past what
// the balance column can store.
func checkBalanceCeiling(newBalance decimal.Decimal) error {
	if newBalance.GreaterThanOrEqual(maxBalance) {
		return &ValidationError{Field: "amount", Reason: "would exceed the maximum account balance"}
	}
	return nil
}
