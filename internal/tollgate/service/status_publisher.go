package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// StatusPublisher holds the live reader status shown on the dashboard.
// When File is set every change is also written there atomically, for a
// dashboard running in another process.
type StatusPublisher struct {
	mu             sync.Mutex
	lanes          map[types.Lane]types.LaneStatus
	running        map[types.Lane]bool
	lastActivity   string
	lastActivityAt time.Time
	lastScannedUID string
	hooks          []func(types.Lane, types.LaneStatus)
	seq            uint64

	// hookMu orders hook delivery; a change older than the last one
	// delivered for its lane is dropped.
	hookMu    sync.Mutex
	delivered map[types.Lane]uint64

	fileMu sync.Mutex
	file   string
	logger logrus.FieldLogger
}

func NewStatusPublisher(file string, logger logrus.FieldLogger) *StatusPublisher {
	p := &StatusPublisher{
		lanes:     make(map[types.Lane]types.LaneStatus, len(types.Lanes)),
		running:   make(map[types.Lane]bool, len(types.Lanes)),
		delivered: make(map[types.Lane]uint64, len(types.Lanes)),
		file:      file,
		logger:    logger,
	}
	for _, l := range types.Lanes {
		p.lanes[l] = types.LaneStatus{LastMessage: types.StatusOffline}
	}
	return p
}

// OnChange registers fn to be called after any lane status change.
func (p *StatusPublisher) OnChange(fn func(types.Lane, types.LaneStatus)) {
	p.mu.Lock()
	p.hooks = append(p.hooks, fn)
	p.mu.Unlock()
}

// SetConnected marks the reader connected ("Listening...") or OFFLINE.
func (p *StatusPublisher) SetConnected(lane types.Lane, connected bool) {
	msg := types.StatusOffline
	if connected {
		msg = types.StatusListening
	}
	p.change(lane, func(st *types.LaneStatus) {
		st.ReaderConnected = connected
		st.LastMessage = msg
	}, msg)
}

// Update records message as the lane's latest activity.
func (p *StatusPublisher) Update(lane types.Lane, message string) {
	p.change(lane, func(st *types.LaneStatus) {
		st.LastMessage = message
	}, message)
}

// SetRunning tracks whether lane's listener loop is alive.
func (p *StatusPublisher) SetRunning(lane types.Lane, running bool) {
	p.mu.Lock()
	p.running[lane] = running
	p.mu.Unlock()
	p.persist()
}

func (p *StatusPublisher) change(lane types.Lane, fn func(*types.LaneStatus), message string) {
	now := time.Now()

	p.mu.Lock()
	st := p.lanes[lane]
	fn(&st)
	st.LastActivity = now
	p.lanes[lane] = st
	p.lastActivity = fmt.Sprintf("[%s] %s", lane, message)
	p.lastActivityAt = now
	p.seq++
	seq := p.seq
	hooks := slices.Clone(p.hooks)
	p.mu.Unlock()

	p.hookMu.Lock()
	if seq > p.delivered[lane] {
		p.delivered[lane] = seq
		for _, h := range hooks {
			h(lane, st)
		}
	}
	p.hookMu.Unlock()
	p.persist()
}

func (p *StatusPublisher) Lane(lane types.Lane) types.LaneStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lanes[lane]
}

func (p *StatusPublisher) SetLastScannedUID(uid string) {
	p.mu.Lock()
	p.lastScannedUID = uid
	p.mu.Unlock()
	p.persist()
}

// ClearLastScannedUID clears the prefilled UID only if it is still uid.
func (p *StatusPublisher) ClearLastScannedUID(uid string) {
	p.mu.Lock()
	cleared := p.lastScannedUID == uid
	if cleared {
		p.lastScannedUID = ""
	}
	p.mu.Unlock()
	if cleared {
		p.persist()
	}
}

func (p *StatusPublisher) Snapshot() types.StatusSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := types.StatusSnapshot{
		EntranceReaderStatus: p.lanes[types.LaneEntrance].LastMessage,
		ExitReaderStatus:     p.lanes[types.LaneExit].LastMessage,
		LastActivityTime:     "N/A",
		LastActivity:         "N/A",
		ListenerState:        types.ListenerStopped,
		LastScannedUID:       p.lastScannedUID,
	}
	if !p.lastActivityAt.IsZero() {
		snap.LastActivityTime = p.lastActivityAt.Format(types.DateLayout)
		snap.LastActivity = p.lastActivity
	}
	for _, r := range p.running {
		if r {
			snap.ListenerState = types.ListenerRunning
			break
		}
	}
	return snap
}

// persist writes the current snapshot to the status file via temp file and
// rename, so readers never see a partial document.
func (p *StatusPublisher) persist() {
	if p.file == "" {
		return
	}

	p.fileMu.Lock()
	defer p.fileMu.Unlock()

	if err := writeStatusFile(p.file, p.Snapshot()); err != nil {
		p.logger.WithError(err).WithField("file", p.file).Warn("status file write failed")
	}
}

func writeStatusFile(path string, snap types.StatusSnapshot) error {
	b, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// StatusFile serves snapshots from a file written by a StatusPublisher in
// another process.  When Local is set its last scanned UID wins, since the
// desk reader belongs to the dashboard process.
type StatusFile struct {
	Path  string
	Local *StatusPublisher
}

func (f StatusFile) Snapshot() types.StatusSnapshot {
	snap := f.read()
	if f.Local != nil {
		snap.LastScannedUID = f.Local.Snapshot().LastScannedUID
	}
	return snap
}

func (f StatusFile) read() types.StatusSnapshot {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return offlineSnapshot("No status file found. Check the gate listener.")
	}
	var snap types.StatusSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return offlineSnapshot("Status file unreadable.")
	}
	return snap
}

func offlineSnapshot(activity string) types.StatusSnapshot {
	return types.StatusSnapshot{
		EntranceReaderStatus: types.StatusOffline,
		ExitReaderStatus:     types.StatusOffline,
		LastActivityTime:     "N/A",
		LastActivity:         activity,
		ListenerState:        types.ListenerStopped,
	}
}
