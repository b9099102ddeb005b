package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/network"
	"pipeworks/internal/sim/tuning"
	"pipeworks/internal/transport/observer"
)

var (
	mirrorConfig string
	mirrorURL    string
	mirrorCenter []int
	mirrorRadius int
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Follow a running simulation as a mirror replica",
	Long: `Connects to a pipesim observer websocket, builds the same scenario layout
in mirror mode and replays the unit updates it receives.`,
	RunE: runMirror,
}

func init() {
	f := mirrorCmd.Flags()
	f.StringVar(&mirrorConfig, "config", "./configs/pipesim.yaml", "tuning and scenario file (layout must match the server)")
	f.StringVar(&mirrorURL, "url", "ws://127.0.0.1:8080/v1/observer/ws", "observer websocket url")
	f.IntSliceVar(&mirrorCenter, "center", []int{0, 0, 0}, "subscription center x,y,z")
	f.IntVar(&mirrorRadius, "radius", 0, "subscription radius (0 = server default)")
}

func runMirror(cmd *cobra.Command, args []string) error {
	tune, err := tuning.Load(mirrorConfig)
	if err != nil {
		return err
	}
	if len(mirrorCenter) != 3 {
		return fmt.Errorf("--center needs 3 values, got %d", len(mirrorCenter))
	}
	m := network.New(network.Config{Mirror: true, ShifterRange: tune.ShifterRange, PipeCapacity: tune.PipeCapacity}, network.Ops{})
	if err := tune.Scenario.Build(m); err != nil {
		return fmt.Errorf("build scenario: %w", err)
	}

	ctx := cmd.Context()
	c, err := observer.Dial(ctx, mirrorURL, [3]int{mirrorCenter[0], mirrorCenter[1], mirrorCenter[2]}, mirrorRadius)
	if err != nil {
		return err
	}

	msgs := make(chan any, 4096)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(msgs)
		for {
			msg, err := c.Read()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("observer read: %w", err)
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return c.Close()
	})
	g.Go(func() error {
		return mirrorLoop(ctx, m, msgs, tune.TickRateHz, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func mirrorLoop(ctx context.Context, m *network.Network, msgs <-chan any, rateHz int, log *zap.Logger) error {
	ticker := time.NewTicker(time.Second / time.Duration(rateHz))
	defer ticker.Stop()
	apply := func(msg any) {
		switch v := msg.(type) {
		case protocol.UnitUpdate:
			if err := m.ApplyUpdate(v); err != nil {
				log.Debug("apply update", zap.Error(err))
			}
		case protocol.UnitGone:
			m.ApplyGone(v)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			apply(msg)
		case <-ticker.C:
			m.Tick()
			if t := m.CurrentTick(); t%uint64(rateHz*10) == 0 {
				log.Info("mirror", zap.Uint64("tick", t), zap.Int("units", m.UnitCount()), zap.Int("stuck", m.StuckCount()))
			}
		}
	}
}
