package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerClosed is returned by Do after Close.
var ErrWorkerClosed = errors.New("db worker closed")

type TxFn func(ctx context.Context, tx *sql.Tx) error

type writeReq struct {
	ctx    context.Context
	fn     TxFn
	result chan error
}

// Worker runs every write transaction on one goroutine, so both lanes and
// the dashboard append without SQLITE_BUSY contention.
type Worker struct {
	conn  *sql.DB
	queue chan writeReq
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

const queueSize = 256

func NewWorker(conn *sql.DB) *Worker {
	w := &Worker{
		conn:  conn,
		queue: make(chan writeReq, queueSize),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close stops accepting writes, finishes the queued ones and waits for the
// loop to exit.  Safe to call more than once.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

// Queued reports how many writes are waiting for the loop.
func (w *Worker) Queued() int {
	return len(w.queue)
}

// Do runs fn inside a write transaction.  fn's error or panic rolls the
// transaction back.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	req := writeReq{ctx: ctx, fn: fn, result: make(chan error, 1)}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWorkerClosed
	}
	select {
	case w.queue <- req:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	// Once queued, the outcome is whatever the transaction did: run
	// honours ctx itself, so a commit is never reported as a timeout.
	return <-req.result
}

func (w *Worker) loop() {
	defer close(w.done)
	for req := range w.queue {
		req.result <- w.run(req)
	}
}

func (w *Worker) run(req writeReq) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	tx, err := w.conn.BeginTx(req.ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("write panicked: %v", r)
		}
	}()

	if err := req.fn(req.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
