package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pipeworks/internal/persistence/indexdb"
	persistlog "pipeworks/internal/persistence/log"
	"pipeworks/internal/protocol"
	"pipeworks/internal/sim/model"
	"pipeworks/internal/sim/network"
	"pipeworks/internal/sim/tuning"
	"pipeworks/internal/telemetry"
	"pipeworks/internal/transport/observer"
)

// sim owns one authoritative network and everything that records it. The
// network is only touched under mu.
type sim struct {
	log   *zap.Logger
	tune  tuning.Tuning
	runID string

	mu  sync.Mutex
	net *network.Network

	audit   *persistlog.AuditLogger
	ticks   *persistlog.TickLogger
	index   *indexdb.SQLiteIndex
	metrics *telemetry.Metrics
	hub     *observer.Hub
}

type simOptions struct {
	RunDir    string
	IndexPath string // "" disables the sqlite index
	Loopback  bool
}

func newSim(logger *zap.Logger, tune tuning.Tuning, runID string, opts simOptions) (*sim, error) {
	// Log segments hold one hour of world time.
	span := uint64(tune.TickRateHz) * 3600
	s := &sim{
		log:     logger.With(zap.String("run_id", runID)),
		tune:    tune,
		runID:   runID,
		audit:   persistlog.NewAuditLogger(opts.RunDir, runID, span),
		ticks:   persistlog.NewTickLogger(opts.RunDir, runID, span),
		metrics: telemetry.New(),
	}
	s.hub = observer.NewHub(s.log.Named("observer"), observer.Options{
		LoopbackOnly: opts.Loopback,
		OnSessions:   s.metrics.SetSessions,
	})
	if opts.IndexPath != "" {
		idx, err := indexdb.OpenSQLite(opts.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("open index %s: %w", opts.IndexPath, err)
		}
		if err := idx.RecordRun(runID, tune); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("record run: %w", err)
		}
		s.index = idx
	}

	s.net = network.New(network.Config{
		ShifterRange: tune.ShifterRange,
		PipeCapacity: tune.PipeCapacity,
		Seed:         tune.Seed,
		RunID:        runID,
	}, network.Ops{
		AuditEvent: s.onAudit,
		Broadcast: func(_ uint64, pos model.Vec3i, msg any) {
			s.hub.Broadcast(pos, s.tune.ObserverRadius, msg)
		},
		Leave: s.metrics.Leave,
	})
	if err := tune.Scenario.Build(s.net); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	return s, nil
}

func (s *sim) onAudit(e network.AuditEntry) {
	if err := s.audit.WriteAudit(e); err != nil {
		s.log.Warn("audit log write", zap.Error(err))
	}
	_ = s.index.WriteAudit(e)
	if e.Action == "PIPE_DROPPED" {
		s.log.Debug("item dropped",
			zap.Uint64("tick", e.Tick),
			zap.Ints("pos", e.Pos[:]),
			zap.String("item", e.Item),
			zap.Int("count", e.Count))
	}
}

// step runs the scheduled injections and one network tick.
func (s *sim) step() network.TickEntry {
	s.mu.Lock()
	for _, err := range s.tune.Scenario.Inject(s.net, s.net.CurrentTick()) {
		s.log.Warn("injection rejected", zap.Error(err))
	}
	start := time.Now()
	s.net.Tick()
	took := time.Since(start)
	sum := s.net.Summary()
	s.mu.Unlock()

	if err := s.ticks.WriteTick(sum); err != nil {
		s.log.Warn("tick log write", zap.Error(err))
	}
	_ = s.index.WriteTick(sum)
	s.metrics.ObserveTick(sum, took)
	return sum
}

// loop ticks at the configured rate until ctx ends or MaxTicks is reached.
func (s *sim) loop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.tune.TickRateHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		sum := s.step()
		if sum.Tick%uint64(s.tune.TickRateHz*10) == 0 {
			s.log.Info("tick",
				zap.Uint64("tick", sum.Tick),
				zap.Int("units", sum.Units),
				zap.Int("stuck", sum.Stuck),
				zap.Int("drops", sum.Drops))
		}
		if s.tune.MaxTicks > 0 && sum.Tick >= s.tune.MaxTicks {
			s.log.Info("max ticks reached", zap.Uint64("tick", sum.Tick))
			return nil
		}
	}
}

type stateResponse struct {
	RunID      string               `json:"run_id"`
	Summary    network.TickEntry    `json:"summary"`
	Containers []containerState     `json:"containers"`
	Index      indexdb.Stats        `json:"index"`
	Sessions   int                  `json:"observer_sessions"`
	Drops      []protocol.ItemStack `json:"drops"`
}

type containerState struct {
	Pos   [3]int               `json:"pos"`
	Items []protocol.ItemStack `json:"items"`
}

func (s *sim) state() stateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := stateResponse{
		RunID:    s.runID,
		Summary:  s.net.Summary(),
		Index:    s.index.Stats(),
		Sessions: s.hub.Sessions(),
	}
	for _, c := range s.net.Containers() {
		resp.Containers = append(resp.Containers, containerState{Pos: c.Pos.ToArray(), Items: c.InventoryList()})
	}
	for _, d := range s.net.Drops() {
		resp.Drops = append(resp.Drops, protocol.ItemStack{Item: d.Item, Count: d.Count})
	}
	return resp
}

func (s *sim) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.state())
	})
	mux.HandleFunc("/v1/observer/ws", s.hub.WSHandler())
	return mux
}

func (s *sim) Close() error {
	var errs []error
	if err := s.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("audit log: %w", err))
	}
	if err := s.ticks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("tick log: %w", err))
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("index: %w", err))
		}
	}
	return errors.Join(errs...)
}

func runDir(dataDir, runID string) string { return filepath.Join(dataDir, "runs", runID) }

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
