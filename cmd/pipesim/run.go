package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pipeworks/internal/sim/tuning"
)

var (
	runConfig   string
	runAddr     string
	runDataDir  string
	runNoIndex  bool
	runTicks    uint64
	runLoopback bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario and serve metrics, state and the observer websocket",
	Long: `Loads the tuning/scenario file, then ticks the network at tick_rate_hz.

Every run gets a fresh run id. Audit and tick logs are written under
<data>/runs/<run id>/, and indexed into <data>/index.db unless --no-index.`,
	RunE: runSim,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runConfig, "config", "./configs/pipesim.yaml", "tuning and scenario file")
	f.StringVar(&runAddr, "addr", ":8080", "http listen address")
	f.StringVar(&runDataDir, "data", "./data", "runtime data directory")
	f.BoolVar(&runNoIndex, "no-index", false, "disable the sqlite audit index")
	f.Uint64Var(&runTicks, "ticks", 0, "stop after this many ticks (overrides max_ticks)")
	f.BoolVar(&runLoopback, "loopback-only", true, "only accept observer sessions from loopback")
}

func runSim(cmd *cobra.Command, args []string) error {
	tune, err := tuning.Load(runConfig)
	if err != nil {
		return err
	}
	if runTicks > 0 {
		tune.MaxTicks = runTicks
	}

	runID := uuid.NewString()
	opts := simOptions{RunDir: runDir(runDataDir, runID), Loopback: runLoopback}
	if !runNoIndex {
		opts.IndexPath = filepath.Join(runDataDir, "index.db")
	}
	s, err := newSim(logger, tune, runID, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("close run", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              runAddr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		// Finishing max_ticks ends the run like a signal does.
		err := s.loop(ctx)
		if err == nil {
			err = errRunFinished
		}
		return err
	})
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", runAddr), zap.String("run_dir", opts.RunDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	err = g.Wait()
	if errors.Is(err, errRunFinished) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errRunFinished = errors.New("run finished")
