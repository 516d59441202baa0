package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/lane"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/uid"
)

type topUpper interface {
	TopUp(ctx context.Context, uid string, amount int64) (types.CardAccount, error)
}

type session struct {
	ledger store.Ledger
	topUp  topUpper
	out    io.Writer
}

func (s *session) oneShot(ctx context.Context, id string, amount int64) error {
	acct, err := s.topUp.TopUp(ctx, id, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Top-up successful: %s (%s) new balance %d\n", acct.UID, acct.Name, acct.Balance)
	return nil
}

// interactive waits for a card on cards, shows the holder and asks for an
// amount on prompts.  When both are the same terminal the operator types
// the UID.  It returns nil once either stream ends.
func (s *session) interactive(ctx context.Context, cards, prompts io.Reader) error {
	scans := lane.NewLineReader(cards)
	answers := scans
	if cards != prompts {
		answers = lane.NewLineReader(prompts)
	}

	fmt.Fprintln(s.out, "=== RFID Top-Up Mode ===")
	for {
		fmt.Fprintln(s.out, "Waiting for RFID card...")

		id, ok := nextUID(scans)
		if !ok {
			return nil
		}
		fmt.Fprintf(s.out, "Detected UID: %s\n", id)

		acct, err := s.ledger.FetchAccount(ctx, id)
		if errors.Is(err, store.ErrAccountNotFound) {
			fmt.Fprintln(s.out, "UID not found. Try again.")
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch %s: %w", id, err)
		}
		fmt.Fprintf(s.out, "User: %s | Current Balance: %d\n", acct.Name, acct.Balance)

		fmt.Fprint(s.out, "Enter top-up amount: ")
		answer, err := answers.Next()
		if err != nil {
			return nil
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(answer), 10, 64)
		if err != nil {
			fmt.Fprintln(s.out, "Invalid input. Please enter a number.")
			continue
		}

		updated, err := s.topUp.TopUp(ctx, id, amount)
		if err != nil {
			fmt.Fprintf(s.out, "Top-up failed: %v\n", err)
			continue
		}
		fmt.Fprintf(s.out, "Top-up successful! New balance %d\n\n", updated.Balance)
	}
}

func nextUID(lr *lane.LineReader) (string, bool) {
	for {
		line, err := lr.Next()
		if err != nil {
			return "", false
		}
		if id, ok := uid.Extract(line); ok {
			return id, true
		}
	}
}
