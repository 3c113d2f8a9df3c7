package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ruralpay/minibank/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(l *Logger) *[]string {
	lines := &[]string{}
	l.logf = func(format string, v ...any) {
		*lines = append(*lines, fmt.Sprintf(format, v...))
	}
	return lines
}

func decode(t *testing.T, line string) Event {
	t.Helper()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "AUDIT: ")), &ev))
	return ev
}

func TestLogger(t *testing.T) {
	l := NewLogger()
	lines := capture(l)

	t.Run("movement", func(t *testing.T) {
		l.LogMovement(&models.TransactionRecord{ID: 9, AccountID: 1, Kind: models.KindDeposit, Amount: decimal.RequireFromString("50.00")})
		ev := decode(t, (*lines)[len(*lines)-1])
		assert.Equal(t, "deposit", ev.EventType)
		assert.Equal(t, int64(9), ev.RecordID)
		assert.True(t, ev.Amount.Equal(decimal.NewFromInt(50)))
		assert.NotEmpty(t, ev.EventID)
	})

	t.Run("transfer", func(t *testing.T) {
		out := &models.TransactionRecord{ID: 3, AccountID: 1, Kind: models.KindTransferOut, Amount: decimal.NewFromInt(5)}
		in := &models.TransactionRecord{ID: 4, AccountID: 2, Kind: models.KindTransferIn, Amount: decimal.NewFromInt(5)}
		l.LogTransfer(out, in)
		ev := decode(t, (*lines)[len(*lines)-1])
		assert.Equal(t, "transfer", ev.EventType)
		assert.Equal(t, "SUCCESS", ev.Status)
	})

	t.Run("error", func(t *testing.T) {
		l.LogError("withdraw", 1, decimal.NewFromInt(200), errors.New("insufficient funds"))
		ev := decode(t, (*lines)[len(*lines)-1])
		assert.Equal(t, "FAILED", ev.Status)
		assert.Equal(t, "withdraw", ev.EventType)
	})

	assert.Len(t, *lines, 3)
}
