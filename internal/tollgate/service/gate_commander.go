package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

var (
	ErrUnknownLane     = errors.New("unknown lane")
	ErrLaneUnavailable = errors.New("lane actuator unavailable")
)

// Actuator writes gate commands to a lane's controller.
type Actuator interface {
	Send(ctx context.Context, cmd types.GateCommand) error
}

// GateCommander opens a gate on operator request and closes it again after
// a fixed delay.  Pending closes are cancelled only by Stop.
type GateCommander struct {
	mu        sync.Mutex
	actuators map[types.Lane]Actuator
	pending   map[*time.Timer]struct{}
	stopped   bool

	delay  time.Duration
	logger logrus.FieldLogger
}

func NewGateCommander(delay time.Duration, logger logrus.FieldLogger) *GateCommander {
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &GateCommander{
		actuators: make(map[types.Lane]Actuator, len(types.Lanes)),
		pending:   make(map[*time.Timer]struct{}),
		delay:     delay,
		logger:    logger,
	}
}

func (c *GateCommander) Attach(lane types.Lane, a Actuator) {
	c.mu.Lock()
	c.actuators[lane] = a
	c.mu.Unlock()
}

// Open sends OPEN to the named lane now and schedules CLOSE.
func (c *GateCommander) Open(ctx context.Context, laneName string) error {
	lane, err := types.ParseLane(laneName)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownLane, laneName)
	}

	c.mu.Lock()
	a, ok := c.actuators[lane]
	stopped := c.stopped
	c.mu.Unlock()
	if !ok || stopped {
		return ErrLaneUnavailable
	}

	if err := a.Send(ctx, types.GateCommand{Lane: lane, Action: types.ActionOpen}); err != nil {
		return fmt.Errorf("%w: %v", ErrLaneUnavailable, err)
	}
	c.logger.WithField("lane", lane).Info("manual gate open")

	c.scheduleClose(lane, a)
	return nil
}

func (c *GateCommander) scheduleClose(lane types.Lane, a Actuator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		delete(c.pending, t)
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.Send(ctx, types.GateCommand{Lane: lane, Action: types.ActionClose}); err != nil {
			c.logger.WithField("lane", lane).WithError(err).Warn("scheduled close failed")
		}
	})
	c.pending[t] = struct{}{}
}

// Pending reports how many scheduled closes have not fired yet.
func (c *GateCommander) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop cancels pending closes and refuses further opens.
func (c *GateCommander) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for t := range c.pending {
		t.Stop()
		delete(c.pending, t)
	}
}
