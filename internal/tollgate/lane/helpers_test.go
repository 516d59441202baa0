package lane_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/lane"
)

// fakeStream is a serial port stand-in: the test feeds reader output
// through a pipe and inspects what the controller wrote back.
type fakeStream struct {
	in   *io.PipeReader
	feed *io.PipeWriter

	mu       sync.Mutex
	out      bytes.Buffer
	writeErr error

	once   sync.Once
	closed chan struct{}
}

func newFakeStream() *fakeStream {
	r, w := io.Pipe()
	return &fakeStream{in: r, feed: w, closed: make(chan struct{})}
}

func (s *fakeStream) Read(p []byte) (int, error) { return s.in.Read(p) }

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.out.Write(p)
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.in.Close()
	})
	return nil
}

func (s *fakeStream) Written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func (s *fakeStream) failWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// send writes one reader line; it blocks until the controller reads it.
func (s *fakeStream) send(t *testing.T, line string) {
	t.Helper()
	if _, err := s.feed.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("feed %q: %v", line, err)
	}
}

// hangUp simulates the device disappearing.
func (s *fakeStream) hangUp() {
	s.feed.CloseWithError(errors.New("device removed"))
}

// openerOf hands out streams in order, then fails.
func openerOf(streams ...*fakeStream) (lane.Opener, func() int) {
	var (
		mu    sync.Mutex
		calls int
	)
	return func(context.Context) (io.ReadWriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if len(streams) == 0 {
			return nil, errors.New("no such port")
		}
		s := streams[0]
		streams = streams[1:]
		return s, nil
	}, func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
