package lane

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/uid"
)

// TopUpReader listens on the dashboard's desk reader and publishes the
// last scanned card so the top-up form can be prefilled.  It never writes
// to the stream.
type TopUpReader struct {
	open      Opener
	reconnect Reconnect
	status    *service.StatusPublisher
	logger    logrus.FieldLogger
}

func NewTopUpReader(open Opener, rc Reconnect, status *service.StatusPublisher, logger logrus.FieldLogger) *TopUpReader {
	return &TopUpReader{open: open, reconnect: rc, status: status, logger: logger.WithField("reader", "topup")}
}

func (r *TopUpReader) Run(ctx context.Context) error {
	err := supervise(ctx, r.open, r.reconnect, r.logger,
		func(io.ReadWriteCloser) { r.logger.Info("listening") },
		func() {},
		func(ctx context.Context, rw io.ReadWriteCloser) error {
			return readLines(ctx, rw, func(line string) error {
				if id, ok := uid.Extract(line); ok {
					r.status.SetLastScannedUID(id)
					r.logger.WithField("uid", id).Info("card scanned for top-up")
				}
				return nil
			})
		})
	if err != nil {
		r.logger.WithError(err).Error("top-up reader offline")
	}
	return err
}
