package types

import "time"

const (
	ListenerRunning = "RUNNING"
	ListenerStopped = "STOPPED"

	StatusOffline   = "OFFLINE"
	StatusListening = "Listening..."
)

type LaneStatus struct {
	ReaderConnected bool
	LastMessage     string
	LastActivity    time.Time
}

// StatusSnapshot is the polled view the dashboard renders.
type StatusSnapshot struct {
	EntranceReaderStatus string `json:"entrance_reader_status"`
	ExitReaderStatus     string `json:"exit_reader_status"`
	LastActivityTime     string `json:"last_activity_time"`
	LastActivity         string `json:"last_activity"`
	ListenerState        string `json:"listener_state"`
	LastScannedUID       string `json:"last_scanned_uid"`
}

// Map returns the snapshot keyed the same way as its JSON form.
func (s StatusSnapshot) Map() map[string]any {
	return map[string]any{
		"entrance_reader_status": s.EntranceReaderStatus,
		"exit_reader_status":     s.ExitReaderStatus,
		"last_activity_time":     s.LastActivityTime,
		"last_activity":          s.LastActivity,
		"listener_state":         s.ListenerState,
		"last_scanned_uid":       s.LastScannedUID,
	}
}
