package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/minibank/internal/models"
	"github.com/shopspring/decimal"
)

// Event is one structured audit line. Events go to the process log only; the
// transactions table remains the ledger's record of truth.
type Event struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	RecordID  int64           `json:"record_id,omitempty"`
	AccountID int64           `json:"account_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Details   any             `json:"details,omitempty"`
}

type Logger struct {
	logf func(format string, v ...any)
}

func NewLogger() *Logger {
	return &Logger{logf: log.Printf}
}

// LogMovement records a committed deposit or withdrawal.
func (a *Logger) LogMovement(rec *models.TransactionRecord) {
	a.log(Event{
		EventType: string(rec.Kind),
		RecordID:  rec.ID,
		AccountID: rec.AccountID,
		Amount:    rec.Amount,
		Status:    "SUCCESS",
	})
}

// LogTransfer records both legs of a committed transfer as one event.
func (a *Logger) LogTransfer(out, in *models.TransactionRecord) {
	a.log(Event{
		EventType: "transfer",
		RecordID:  out.ID,
		AccountID: out.AccountID,
		Amount:    out.Amount,
		Status:    "SUCCESS",
		Details: map[string]int64{
			"from_account": out.AccountID,
			"to_account":   in.AccountID,
			"in_record":    in.ID,
		},
	})
}

func (a *Logger) LogError(operation string, accountID int64, amount decimal.Decimal, err error) {
	a.log(Event{
		EventType: operation,
		AccountID: accountID,
		Amount:    amount,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	event.EventID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(event)
	a.logf("AUDIT: %s", string(data))
}
