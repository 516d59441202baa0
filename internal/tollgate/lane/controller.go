package lane

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/uid"
)

// Gate resolves and records scans; *service.GateService satisfies it.
type Gate interface {
	Resolve(ctx context.Context, lane types.Lane, uid string) service.Resolution
	Record(ctx context.Context, ev types.ScanEvent, res service.Resolution)
}

type Config struct {
	Lane      types.Lane
	Reconnect Reconnect
}

// Controller owns one lane: it reads scans, writes exactly one OPEN or
// CLOSE per resolved scan and keeps the lane status current.
type Controller struct {
	cfg    Config
	open   Opener
	gate   Gate
	status *service.StatusPublisher
	logger logrus.FieldLogger

	wmu    sync.Mutex
	stream io.ReadWriteCloser // nil while disconnected
}

func NewController(cfg Config, open Opener, gate Gate, status *service.StatusPublisher, logger logrus.FieldLogger) *Controller {
	return &Controller{
		cfg:    cfg,
		open:   open,
		gate:   gate,
		status: status,
		logger: logger.WithField("lane", cfg.Lane),
	}
}

func (c *Controller) Lane() types.Lane { return c.cfg.Lane }

// Run blocks until ctx is cancelled (nil) or the stream faults for good
// (wraps ErrStreamFatal).  The lane is OFFLINE when Run returns.
func (c *Controller) Run(ctx context.Context) error {
	c.status.SetRunning(c.cfg.Lane, true)
	defer c.status.SetRunning(c.cfg.Lane, false)

	err := supervise(ctx, c.open, c.cfg.Reconnect, c.logger, c.attach, c.detach, c.serve)
	if err != nil {
		c.logger.WithError(err).Error("lane offline")
	}
	return err
}

func (c *Controller) attach(rw io.ReadWriteCloser) {
	c.wmu.Lock()
	c.stream = rw
	c.wmu.Unlock()
	c.status.SetConnected(c.cfg.Lane, true)
	c.logger.Info("listening")
}

func (c *Controller) detach() {
	c.wmu.Lock()
	c.stream = nil
	c.wmu.Unlock()
	c.status.SetConnected(c.cfg.Lane, false)
}

func (c *Controller) serve(ctx context.Context, rw io.ReadWriteCloser) error {
	return readLines(ctx, rw, func(line string) error {
		return c.handle(ctx, line)
	})
}

func (c *Controller) handle(ctx context.Context, line string) error {
	id, ok := uid.Extract(line)
	if !ok {
		c.logger.WithField("raw", line).Debug("no card id in line")
		return nil
	}

	ev := types.ScanEvent{
		ID:         uuid.NewString(),
		Lane:       c.cfg.Lane,
		Raw:        line,
		UID:        id,
		ReceivedAt: time.Now().UTC(),
	}
	log := c.logger.WithFields(logrus.Fields{"uid": id, "scan_id": ev.ID})

	res := c.gate.Resolve(ctx, c.cfg.Lane, id)
	werr := c.write(res.Command)

	// The decision stands even if the actuator write failed.
	c.gate.Record(ctx, ev, res)
	c.status.Update(c.cfg.Lane, service.StatusMessage(id, res))

	log.WithFields(logrus.Fields{
		"action": res.Command.Action,
		"reason": res.Decision.Reason,
	}).Info("scan resolved")

	if werr != nil {
		return fmt.Errorf("%w: write: %v", ErrStreamFatal, werr)
	}
	return nil
}

// Send writes cmd to the actuator, serialized with the scan loop.
func (c *Controller) Send(_ context.Context, cmd types.GateCommand) error {
	if cmd.Lane != c.cfg.Lane {
		return fmt.Errorf("command for %s sent to %s", cmd.Lane, c.cfg.Lane)
	}
	return c.write(cmd)
}

func (c *Controller) write(cmd types.GateCommand) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.stream == nil {
		return ErrNotConnected
	}
	_, err := c.stream.Write(cmd.Wire())
	return err
}
