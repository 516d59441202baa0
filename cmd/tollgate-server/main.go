package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/BrandonDHaskell/tollgate/internal/app"
	"github.com/BrandonDHaskell/tollgate/internal/config"
	"github.com/BrandonDHaskell/tollgate/internal/grpcapi"
	"github.com/BrandonDHaskell/tollgate/internal/httpapi"
	"github.com/BrandonDHaskell/tollgate/internal/logging"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/lane"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/policy"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

func main() {
	configPath := pflag.String("config", os.Getenv("TOLLGATE_CONFIG"), "YAML config file")
	dashboardOnly := pflag.Bool("dashboard-only", false, "serve the dashboard only, reading lane status from the status file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, *dashboardOnly, logger); err != nil {
		logger.WithError(err).Fatal("tollgate-server")
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, dashboardOnly bool, logger *logrus.Logger) error {
	if dashboardOnly && cfg.StatusFile == "" {
		return errors.New("--dashboard-only needs TOLLGATE_STATUS_FILE")
	}

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	gateCfg := service.GateConfig{
		Policy:        policy.New(cfg.Fare, cfg.MaxTopUp),
		LedgerTimeout: cfg.LedgerTimeout,
		LockTimeout:   cfg.LockTimeout,
		RecordDenied:  cfg.RecordDenied,
	}
	rc := lane.Reconnect{Attempts: cfg.ReconnectAttempts, Delay: cfg.ReconnectDelay}

	// In dashboard-only mode the lanes run elsewhere and write the status
	// file; this process owns just the desk reader.
	statusFile := cfg.StatusFile
	if dashboardOnly {
		statusFile = ""
	}
	status := service.NewStatusPublisher(statusFile, logger)
	var statusSource httpapi.StatusSource = status
	if dashboardOnly {
		statusSource = service.StatusFile{Path: cfg.StatusFile, Local: status}
	}

	topUp := service.NewTopUpService(backends.Ledger, backends.Transactions, backends.Locker, gateCfg, status, logger)
	commander := service.NewGateCommander(cfg.AutoCloseDelay, logger)
	defer commander.Stop()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.WithError(err).WithField("component", name).Error("stopped")
			}
		}()
	}

	if !dashboardOnly {
		gate := service.NewGateService(backends.Ledger, backends.Transactions, backends.Locker, gateCfg, logger)
		ports := map[types.Lane]string{
			types.LaneEntrance: cfg.EntrancePort,
			types.LaneExit:     cfg.ExitPort,
		}
		for _, l := range types.Lanes {
			port := ports[l]
			if port == "" {
				logger.WithField("lane", l).Warn("no serial port configured; lane stays OFFLINE")
				continue
			}
			ctrl := lane.NewController(lane.Config{Lane: l, Reconnect: rc}, lane.SerialOpener(port, cfg.BaudRate), gate, status, logger)
			commander.Attach(l, ctrl)
			goRun(string(l), ctrl.Run)
		}
	}

	if cfg.TopUpPort != "" {
		reader := lane.NewTopUpReader(lane.SerialOpener(cfg.TopUpPort, cfg.BaudRate), rc, status, logger)
		goRun("topup-reader", reader.Run)
	}

	var gates httpapi.GateOpener
	if !dashboardOnly {
		gates = commander
	}
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              cfg.HTTPAddr,
		Status:            statusSource,
		Transactions:      backends.Transactions,
		TopUp:             topUp,
		Gates:             gates,
		OperatorTokenHash: cfg.OperatorTokenHash,
		Cache:             backends.Redis,
		CORSOrigins:       cfg.CORSOrigins,
	})

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("dashboard listening")
		if err := srv.Start(); err != nil {
			logger.WithError(err).Error("http server error")
			stop()
		}
	}()

	var health *grpcapi.Server
	if cfg.GRPCAddr != "" && !dashboardOnly {
		health = grpcapi.NewServer(cfg.GRPCAddr, status, logger)
		go func() {
			if err := health.Start(); err != nil {
				logger.WithError(err).Error("grpc server error")
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	commander.Stop()
	_ = srv.Shutdown(shutdownCtx)
	if health != nil {
		_ = health.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return nil
}
