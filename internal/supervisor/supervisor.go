// Package supervisor watches execution services over their health endpoint
// and restarts them when they stop answering.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"arena/internal/common/metrics"
	appErr "arena/pkg/errors"
	"arena/pkg/utils/contextkey"
	"arena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Config holds per-service supervision settings.
type Config struct {
	Service        string        `yaml:"name"`
	Interval       time.Duration `yaml:"interval"`
	MaxFailures    int           `yaml:"maxFailures"`
	Cooldown       time.Duration `yaml:"cooldown"`
	RestartTimeout time.Duration `yaml:"restartTimeout"`
	LogTail        int           `yaml:"logTail"`
	SinkTimeout    time.Duration `yaml:"sinkTimeout"`
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
	if c.RestartTimeout <= 0 {
		c.RestartTimeout = time.Minute
	}
	if c.LogTail <= 0 {
		c.LogTail = 200
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = time.Second
	}
}

// Option configures optional collaborators.
type Option func(*Supervisor)

func WithSink(sink Sink) Option {
	return func(s *Supervisor) { s.sink = sink }
}

func WithEvents(events EventPublisher) Option {
	return func(s *Supervisor) { s.events = events }
}

func WithArchiver(archiver Archiver) Option {
	return func(s *Supervisor) { s.archiver = archiver }
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

type restartRequest struct {
	reason string
	at     time.Time
}

type restartReply struct {
	event RestartEvent
	err   error
}

// Supervisor runs the probe loop for one service.
type Supervisor struct {
	cfg      Config
	prober   Prober
	instance Instance
	sink     Sink
	events   EventPublisher
	archiver Archiver
	now      func() time.Time

	// health and inFlight are touched only by the Run goroutine.
	health   HealthState
	inFlight bool
	snapshot atomic.Pointer[Snapshot]
}

// New creates a supervisor. The service starts out HEALTHY.
func New(cfg Config, prober Prober, instance Instance, opts ...Option) *Supervisor {
	cfg.applyDefaults()
	s := &Supervisor{
		cfg:      cfg,
		prober:   prober,
		instance: instance,
		now:      time.Now,
		health:   HealthState{State: StateHealthy},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{Service: cfg.Service, State: StateHealthy, UpdatedAt: s.now()})
	return s
}

// Service returns the supervised service name.
func (s *Supervisor) Service() string {
	return s.cfg.Service
}

// Snapshot returns the latest published health view. Safe for concurrent use.
func (s *Supervisor) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Run probes until ctx is cancelled. Restarts run on a separate goroutine and
// report back over a channel; ticks that arrive meanwhile are skipped.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, contextkey.Service, s.cfg.Service)
	requests := make(chan restartRequest)
	replies := make(chan restartReply, 1)
	go s.restartLoop(ctx, requests, replies)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	logger.Info(ctx, "supervisor started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("max_failures", s.cfg.MaxFailures),
		zap.Duration("cooldown", s.cfg.Cooldown),
	)
	s.publish(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "supervisor stopped")
			return nil
		case <-ticker.C:
			if s.inFlight {
				continue
			}
			err := s.prober.Probe(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if !s.observe(ctx, err) {
				continue
			}
			req := restartRequest{reason: s.health.LastError, at: s.now()}
			s.health.State = StateRestarting
			s.inFlight = true
			s.publish(ctx)
			select {
			case requests <- req:
			case <-ctx.Done():
				return nil
			}
		case rep := <-replies:
			s.complete(ctx, rep)
		}
	}
}

// observe applies one probe result and reports whether a restart is due.
func (s *Supervisor) observe(ctx context.Context, probeErr error) bool {
	if probeErr == nil {
		metrics.ProbesTotal.WithLabelValues(s.cfg.Service, "ok").Inc()
		if s.health.State != StateHealthy {
			logger.Info(ctx, "service recovered", zap.Int("failures", s.health.ConsecutiveFailures))
		}
		s.health.ConsecutiveFailures = 0
		s.health.State = StateHealthy
		s.health.LastError = ""
		s.publish(ctx)
		return false
	}

	metrics.ProbesTotal.WithLabelValues(s.cfg.Service, "fail").Inc()
	s.health.ConsecutiveFailures++
	s.health.LastError = probeErr.Error()
	logger.Warn(ctx, "health probe failed",
		zap.Int("failures", s.health.ConsecutiveFailures),
		zap.Error(probeErr),
	)

	if s.health.ConsecutiveFailures < s.cfg.MaxFailures {
		s.health.State = StateDegraded
		s.publish(ctx)
		return false
	}
	if !s.health.LastRestart.IsZero() && s.now().Sub(s.health.LastRestart) < s.cfg.Cooldown {
		s.health.State = StateCooldownBlocked
		metrics.RestartsTotal.WithLabelValues(s.cfg.Service, "suppressed").Inc()
		logger.Warn(ctx, "restart suppressed by cooldown",
			zap.Int("code", int(appErr.RestartSuppressed)),
			zap.Time("last_restart", s.health.LastRestart),
			zap.Duration("cooldown", s.cfg.Cooldown),
		)
		s.publish(ctx)
		return false
	}
	return true
}

// complete folds a restart reply into the health state. Failed restarts are
// stamped too so the cooldown still applies to them. A successful restart stays
// RESTARTING until the next probe answers.
func (s *Supervisor) complete(ctx context.Context, rep restartReply) {
	s.inFlight = false
	s.health.ConsecutiveFailures = 0
	s.health.LastRestart = s.now()
	s.health.Restarts++
	if rep.err != nil {
		s.health.State = StateDegraded
		s.health.LastError = rep.err.Error()
		metrics.RestartsTotal.WithLabelValues(s.cfg.Service, "failed").Inc()
		logger.Error(ctx, "restart failed", zap.Error(rep.err))
	} else {
		s.health.State = StateRestarting
		s.health.LastError = ""
		metrics.RestartsTotal.WithLabelValues(s.cfg.Service, "ok").Inc()
		logger.Info(ctx, "service restarted", zap.Int("restarts", s.health.Restarts))
	}
	s.publish(ctx)
}

func (s *Supervisor) restartLoop(ctx context.Context, requests <-chan restartRequest, replies chan<- restartReply) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			rep := s.restart(ctx, req)
			replies <- rep
		}
	}
}

// restart captures diagnostics, then stops and starts the instance.
func (s *Supervisor) restart(ctx context.Context, req restartRequest) restartReply {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RestartTimeout)
	defer cancel()

	event := RestartEvent{Service: s.cfg.Service, Reason: req.reason, StartedAt: req.at}
	logger.Warn(ctx, "restarting service", zap.String("reason", req.reason))

	logs, err := s.instance.Logs(ctx, s.cfg.LogTail)
	if err != nil {
		logger.Warn(ctx, "capture logs failed", zap.Error(err))
	}
	if s.archiver != nil && len(logs) > 0 {
		key, err := s.archiver.Archive(ctx, s.cfg.Service, req.at, logs)
		if err != nil {
			logger.Warn(ctx, "archive logs failed", zap.Error(err))
		} else {
			event.ArchiveKey = key
		}
	}

	var restartErr error
	if err := s.instance.Stop(ctx); err != nil {
		restartErr = appErr.Wrapf(err, appErr.RestartFailed, "stop %s failed: %v", s.cfg.Service, err)
	} else if err := s.instance.Start(ctx); err != nil {
		restartErr = appErr.Wrapf(err, appErr.RestartFailed, "start %s failed: %v", s.cfg.Service, err)
	}
	event.CompletedAt = s.now()
	event.Success = restartErr == nil
	if restartErr != nil {
		event.Error = restartErr.Error()
	}

	if s.sink != nil {
		if err := s.sink.RecordRestart(ctx, event); err != nil {
			logger.Warn(ctx, "record restart failed", zap.Error(err))
		}
	}
	if s.events != nil {
		if err := s.events.PublishRestart(ctx, event); err != nil {
			logger.Warn(ctx, "publish restart event failed", zap.Error(err))
		}
	}
	return restartReply{event: event, err: restartErr}
}

func (s *Supervisor) publish(ctx context.Context) {
	snap := &Snapshot{
		Service:             s.cfg.Service,
		State:               s.health.State,
		ConsecutiveFailures: s.health.ConsecutiveFailures,
		Restarts:            s.health.Restarts,
		LastRestart:         s.health.LastRestart,
		LastError:           s.health.LastError,
		UpdatedAt:           s.now(),
	}
	s.snapshot.Store(snap)

	metrics.ConsecutiveFailures.WithLabelValues(s.cfg.Service).Set(float64(snap.ConsecutiveFailures))
	for _, st := range allStates {
		v := 0.0
		if st == snap.State {
			v = 1
		}
		metrics.ServiceState.WithLabelValues(s.cfg.Service, string(st)).Set(v)
	}

	if s.sink == nil {
		return
	}
	sinkCtx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
	defer cancel()
	if err := s.sink.PutSnapshot(sinkCtx, *snap); err != nil {
		logger.Debug(ctx, "store snapshot failed", zap.Error(err))
	}
}
