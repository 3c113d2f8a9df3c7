package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the movement type recorded in the transactions log.
type TransactionKind string

const (
	KindDeposit     TransactionKind = "deposit"
	KindWithdraw    TransactionKind = "withdraw"
	KindTransferOut TransactionKind = "transfer-out"
	KindTransferIn  TransactionKind = "transfer-in"
)

// Valid reports whether k is one of the four recorded kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransferOut, KindTransferIn:
		return true
	}
	return false
}

type Account struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int64           `json:"-" db:"version"` // for optimistic locking
	CreatedAt time.Time       `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at,omitempty" db:"updated_at"`
}

// TransactionRecord is one immutable row of the transactions log.
// AccountName is the account's name when the row was written, not the live name.
type TransactionRecord struct {
	ID          int64           `json:"id" db:"id"`
	AccountID   int64           `json:"account_id" db:"account_id"`
	AccountName string          `json:"account_name" db:"account_name"`
	Kind        TransactionKind `json:"kind" db:"kind"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
