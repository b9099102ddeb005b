package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/network"
	"pipeworks/internal/sim/transport"
	"pipeworks/internal/sim/tuning"
)

var (
	replayConfig string
	replayTicks  uint64
)

var replayCheckCmd = &cobra.Command{
	Use:   "replay-check",
	Short: "Run a scenario offline with a mirror replica and compare them",
	Long: `Runs the scenario authoritatively and feeds every sync message into a
mirror network in lockstep. Fails if the mirror ends up holding units the
authoritative network does not know.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tune, err := tuning.Load(replayConfig)
		if err != nil {
			return err
		}
		rep, err := replayCheck(tune, replayTicks)
		if err != nil {
			return err
		}
		logger.Info("replay check",
			zap.Uint64("ticks", rep.Ticks),
			zap.Int("updates", rep.Updates),
			zap.Int("gone", rep.Gone),
			zap.Int("delivered", rep.Delivered),
			zap.Int("dropped", rep.Dropped),
			zap.Int("auth_units", rep.AuthUnits),
			zap.Int("mirror_units", rep.MirrorUnits),
			zap.Int("drift", rep.Drift))
		if rep.ApplyErrors > 0 || rep.Ghosts > 0 {
			return fmt.Errorf("mirror diverged: %d ghost units, %d apply errors", rep.Ghosts, rep.ApplyErrors)
		}
		return nil
	},
}

func init() {
	replayCheckCmd.Flags().StringVar(&replayConfig, "config", "./configs/pipesim.yaml", "tuning and scenario file")
	replayCheckCmd.Flags().Uint64Var(&replayTicks, "ticks", 600, "ticks to simulate")
}

type replayReport struct {
	Ticks       uint64
	Updates     int
	Gone        int
	Delivered   int
	Dropped     int
	ApplyErrors int

	AuthUnits   int
	MirrorUnits int
	// Ghosts are mirror units the authoritative network does not have.
	Ghosts int
	// Drift counts units present on both sides but in different pipes.
	Drift int
}

func replayCheck(tune tuning.Tuning, ticks uint64) (replayReport, error) {
	var (
		rep   replayReport
		queue []any
	)
	auth := network.New(network.Config{
		ShifterRange: tune.ShifterRange,
		PipeCapacity: tune.PipeCapacity,
		Seed:         tune.Seed,
	}, network.Ops{
		Broadcast: func(_ uint64, _ model.Vec3i, msg any) { queue = append(queue, msg) },
		Leave: func(o transport.Outcome, _ string, _ int) {
			switch o {
			case transport.OutcomeDelivered:
				rep.Delivered++
			case transport.OutcomeDropped:
				rep.Dropped++
			}
		},
	})
	mirror := network.New(network.Config{
		Mirror:       true,
		ShifterRange: tune.ShifterRange,
		PipeCapacity: tune.PipeCapacity,
	}, network.Ops{})
	for _, n := range []*network.Network{auth, mirror} {
		if err := tune.Scenario.Build(n); err != nil {
			return rep, fmt.Errorf("build scenario: %w", err)
		}
	}

	flush := func() {
		for _, m := range queue {
			switch msg := m.(type) {
			case protocol.UnitUpdate:
				rep.Updates++
				if err := mirror.ApplyUpdate(msg); err != nil {
					rep.ApplyErrors++
				}
			case protocol.UnitGone:
				rep.Gone++
				mirror.ApplyGone(msg)
			}
		}
		queue = queue[:0]
	}

	for rep.Ticks < ticks {
		tune.Scenario.Inject(auth, auth.CurrentTick())
		flush()
		auth.Tick()
		mirror.Tick()
		flush()
		rep.Ticks++
	}

	authIDs, mirrorIDs := auth.UnitIDs(), mirror.UnitIDs()
	rep.AuthUnits, rep.MirrorUnits = len(authIDs), len(mirrorIDs)
	for id, pos := range mirrorIDs {
		ap, ok := authIDs[id]
		switch {
		case !ok:
			rep.Ghosts++
		case ap != pos:
			rep.Drift++
		}
	}
	return rep, nil
}
