// Package lane drives one card reader and gate actuator per serial link.
package lane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

var (
	ErrStreamFatal  = errors.New("serial stream fault")
	ErrNotConnected = errors.New("lane not connected")
)

// Opener opens the byte stream for one reader.  Close must unblock a
// pending Read.
type Opener func(ctx context.Context) (io.ReadWriteCloser, error)

// SerialOpener opens port at baud, 8N1.  No read timeout is set: reads
// block until a line arrives or the port is closed.
func SerialOpener(port string, baud int) Opener {
	return func(context.Context) (io.ReadWriteCloser, error) {
		p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", port, err)
		}
		return p, nil
	}
}

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

type Reconnect struct {
	Attempts int           // 0 = a fault ends the loop
	Delay    time.Duration // wait between attempts, default 5s
}

// supervise opens the stream, hands it to serve and, after a fault, retries
// up to rc.Attempts times in a row.  connected is called around each
// session.  It returns nil when ctx is cancelled.
func supervise(
	ctx context.Context,
	open Opener,
	rc Reconnect,
	logger logrus.FieldLogger,
	connected func(rw io.ReadWriteCloser),
	disconnected func(),
	serve func(ctx context.Context, rw io.ReadWriteCloser) error,
) error {
	delay := rc.Delay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	failures := 0
	for {
		rw, err := open(ctx)
		if err == nil {
			failures = 0
			connected(rw)
			err = session(ctx, rw, serve)
			disconnected()
			if ctx.Err() != nil {
				return nil
			}
		} else {
			err = fmt.Errorf("%w: %v", ErrStreamFatal, err)
		}

		if ctx.Err() != nil {
			return nil
		}
		failures++
		if failures > rc.Attempts {
			return err
		}
		logger.WithError(err).WithField("attempt", failures).Warn("serial fault, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func session(ctx context.Context, rw io.ReadWriteCloser, serve func(context.Context, io.ReadWriteCloser) error) error {
	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer func() {
		stop()
		rw.Close()
	}()
	return serve(ctx, rw)
}

// readLines calls fn for every line until the stream ends, fn fails or ctx
// is cancelled.
func readLines(ctx context.Context, r io.Reader, fn func(line string) error) error {
	lr := NewLineReader(r)
	for {
		line, err := lr.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: read: %v", ErrStreamFatal, err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}
