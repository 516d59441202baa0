package types

import "time"

const (
	RoleResident = "Resident"
	RoleVisitor  = "Visitor"
)

// CardAccount is a transient copy of a ledger record, fetched per scan.
type CardAccount struct {
	UID     string `json:"UID"`
	Name    string `json:"Name"`
	Address string `json:"Address"`
	Balance int64  `json:"Balance"`
	Role    string `json:"Role"`
}

// WithDefaults fills fields the ledger left empty the same way the
// dashboard has always displayed them.
func (a CardAccount) WithDefaults() CardAccount {
	if a.Name == "" {
		a.Name = "Unknown"
	}
	if a.Address == "" {
		a.Address = "N/A"
	}
	if a.Role == "" {
		a.Role = "Unknown"
	}
	return a
}

type ScanEvent struct {
	ID         string
	Lane       Lane
	Raw        string
	UID        string // empty when the line carried no identifier
	ReceivedAt time.Time
}
