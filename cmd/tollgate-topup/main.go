package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/BrandonDHaskell/tollgate/internal/app"
	"github.com/BrandonDHaskell/tollgate/internal/config"
	"github.com/BrandonDHaskell/tollgate/internal/logging"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/lane"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/policy"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
)

func main() {
	var (
		configPath = pflag.String("config", os.Getenv("TOLLGATE_CONFIG"), "YAML config file")
		uidFlag    = pflag.String("uid", "", "card UID for a one-shot top-up")
		amount     = pflag.Int64("amount", 0, "amount to add in one-shot mode")
		port       = pflag.String("port", "", "serial port of the desk reader for interactive mode")
		listPorts  = pflag.Bool("list-ports", false, "print available serial ports and exit")
	)
	pflag.Parse()

	if *listPorts {
		ports, err := lane.Ports()
		if err != nil {
			fmt.Fprintf(os.Stderr, "list ports: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Level: "warn", Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *uidFlag, *amount, *port, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, uid string, amount int64, port string, logger *logrus.Logger) error {
	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	svc := service.NewTopUpService(backends.Ledger, backends.Transactions, backends.Locker, service.GateConfig{
		Policy:        policy.New(cfg.Fare, cfg.MaxTopUp),
		LedgerTimeout: cfg.LedgerTimeout,
		LockTimeout:   cfg.LockTimeout,
	}, nil, logger)

	s := &session{ledger: backends.Ledger, topUp: svc, out: os.Stdout}

	if uid != "" {
		return s.oneShot(ctx, uid, amount)
	}

	var cards io.Reader = os.Stdin
	if port != "" {
		rw, err := lane.SerialOpener(port, cfg.BaudRate)(ctx)
		if err != nil {
			return err
		}
		defer rw.Close()
		stopClose := context.AfterFunc(ctx, func() { rw.Close() })
		defer stopClose()
		cards = rw
	}
	return s.interactive(ctx, cards, os.Stdin)
}
