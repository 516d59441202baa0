package types

import (
	"encoding/json"
	"time"
)

type TransactionType string

const (
	TxEntry TransactionType = "Entry"
	TxExit  TransactionType = "Exit"
	TxTopUp TransactionType = "TopUp"
)

// DateLayout is the timestamp format shown on the dashboard.
const DateLayout = "2006-01-02 15:04:05"

type TransactionRecord struct {
	ID      int64
	UID     string
	Name    string
	Address string
	Balance int64 // balance after the transaction
	Role    string
	Type    TransactionType
	Granted bool
	ScanID  string
	Date    time.Time
}

type transactionJSON struct {
	ID      int64           `json:"ID"`
	UID     string          `json:"UID"`
	Name    string          `json:"Name"`
	Address string          `json:"Address"`
	Balance int64           `json:"Balance"`
	Role    string          `json:"Role"`
	Type    TransactionType `json:"Type"`
	Granted bool            `json:"Granted"`
	Date    string          `json:"Date"`
}

func (r TransactionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:      r.ID,
		UID:     r.UID,
		Name:    r.Name,
		Address: r.Address,
		Balance: r.Balance,
		Role:    r.Role,
		Type:    r.Type,
		Granted: r.Granted,
		Date:    r.Date.Local().Format(DateLayout),
	})
}

// RecordFor builds a transaction record from the account state after the
// decision was applied.
func RecordFor(acct CardAccount, typ TransactionType, granted bool, scanID string, at time.Time) TransactionRecord {
	return TransactionRecord{
		UID:     acct.UID,
		Name:    acct.Name,
		Address: acct.Address,
		Balance: acct.Balance,
		Role:    acct.Role,
		Type:    typ,
		Granted: granted,
		ScanID:  scanID,
		Date:    at,
	}
}
