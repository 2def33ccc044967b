package service

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"arena/internal/arena/analyzer"
	"arena/internal/arena/game"
	"arena/internal/arena/model"
	"arena/internal/arena/simulation"
	"arena/internal/arena/strategy"
	"arena/internal/common/metrics"
	appErr "arena/pkg/errors"
	"arena/pkg/utils/contextkey"
	"arena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	scratchFileName  = "strategy.lua"
	maxTeamNameLen   = 64
	maxCustomRewards = 32
)

// Mode selects the trial-count defaults of a request.
type Mode string

const (
	ModeValidation Mode = "validation"
	ModeSimulation Mode = "simulation"
)

// TrialLimits are the default and maximum trial counts of one mode.
type TrialLimits struct {
	Default int `yaml:"default"`
	Max     int `yaml:"max"`
}

// Service runs submitted strategies.
type Service struct {
	analyzer       *analyzer.Analyzer
	games          *game.Registry
	runner         *simulation.Runner
	workRoot       string
	limits         strategy.Limits
	requestTimeout time.Duration
	traceTimeout   time.Duration
	slotTimeout    time.Duration
	feedbackMax    int
	seed           int64
	trials         map[Mode]TrialLimits
	sem            chan struct{}
}

// Config holds service dependencies and settings.
type Config struct {
	Analyzer       *analyzer.Analyzer
	Games          *game.Registry
	Runner         *simulation.Runner
	WorkRoot       string
	VMLimits       strategy.Limits
	RequestTimeout time.Duration
	TraceTimeout   time.Duration
	// SlotTimeout bounds the wait for a free batch slot.
	SlotTimeout     time.Duration
	MaxBatches      int
	FeedbackMaxSize int
	// Seed fixes the random seed of every request. Zero uses the clock.
	Seed       int64
	Validation TrialLimits
	Simulation TrialLimits
}

// NewService creates a new execution service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Games == nil {
		return nil, fmt.Errorf("game registry is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.WorkRoot == "" {
		return nil, fmt.Errorf("work root is required")
	}
	if err := os.MkdirAll(cfg.WorkRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create work root failed: %w", err)
	}
	maxBatches := cfg.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 8
	}
	slotTimeout := cfg.SlotTimeout
	if slotTimeout <= 0 {
		slotTimeout = 2 * time.Second
	}
	feedbackMax := cfg.FeedbackMaxSize
	if feedbackMax <= 0 {
		feedbackMax = 16 << 10
	}
	return &Service{
		analyzer:       cfg.Analyzer,
		games:          cfg.Games,
		runner:         cfg.Runner,
		workRoot:       cfg.WorkRoot,
		limits:         cfg.VMLimits,
		requestTimeout: cfg.RequestTimeout,
		traceTimeout:   cfg.TraceTimeout,
		slotTimeout:    slotTimeout,
		feedbackMax:    feedbackMax,
		seed:           cfg.Seed,
		trials: map[Mode]TrialLimits{
			ModeValidation: withTrialDefaults(cfg.Validation, 100, 1000),
			ModeSimulation: withTrialDefaults(cfg.Simulation, 1000, 10000),
		},
		sem: make(chan struct{}, maxBatches),
	}, nil
}

func withTrialDefaults(l TrialLimits, def, max int) TrialLimits {
	if l.Default <= 0 {
		l.Default = def
	}
	if l.Max <= 0 {
		l.Max = max
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// Validate runs a first-time submission with validation defaults.
func (s *Service) Validate(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error) {
	return s.Execute(ctx, ModeValidation, req)
}

// Simulate runs an accepted submission with simulation defaults.
func (s *Service) Simulate(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error) {
	return s.Execute(ctx, ModeSimulation, req)
}

// Execute screens, loads and runs one submission. Rejections and load
// failures come back as an error response; the returned error is reserved
// for failures of the service itself.
func (s *Service) Execute(ctx context.Context, mode Mode, req model.ExecuteRequest) (resp model.ExecuteResponse, err error) {
	ctx = context.WithValue(ctx, contextkey.Team, req.TeamName)
	gameLabel := "unknown"
	defer func() {
		status := resp.Status
		if err != nil {
			status = "internal"
		}
		metrics.RequestsTotal.WithLabelValues(string(mode), gameLabel, status).Inc()
	}()

	trials, err := s.normalize(mode, &req)
	if err != nil {
		metrics.Rejections.WithLabelValues("invalid").Inc()
		return model.ErrorResponse(err.Error()), nil
	}

	verdict := s.analyzer.Check(req.Code)
	if !verdict.Safe {
		metrics.Rejections.WithLabelValues("static").Inc()
		logger.Info(ctx, "submission rejected", zap.String("reason", verdict.Reason), zap.String("game", req.GameName))
		return model.ErrorResponse(verdict.Reason), nil
	}

	g, err := s.games.Lookup(req.GameName)
	if err != nil {
		metrics.Rejections.WithLabelValues("load").Inc()
		return model.ErrorResponse(err.Error()), nil
	}
	gameLabel = g.Name()
	for _, reserved := range g.Reserved() {
		if req.TeamName == reserved {
			metrics.Rejections.WithLabelValues("invalid").Inc()
			return model.ErrorResponse(fmt.Sprintf("team_name %q is reserved by %s", req.TeamName, g.Name())), nil
		}
	}

	if err := s.acquireSlot(ctx); err != nil {
		return model.ExecuteResponse{}, err
	}
	defer s.releaseSlot()
	metrics.ActiveBatches.Inc()
	defer metrics.ActiveBatches.Dec()

	prog, err := s.compile(ctx, req.TeamName, req.Code)
	if err != nil {
		if appErr.GetCode(err).Terminal() {
			metrics.Rejections.WithLabelValues("load").Inc()
			return model.ErrorResponse(err.Error()), nil
		}
		return model.ExecuteResponse{}, err
	}

	runCtx := ctx
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	check, err := prog.Instantiate(runCtx, strategy.InstanceOptions{Limits: s.limits})
	if err != nil {
		metrics.Rejections.WithLabelValues("load").Inc()
		logger.Info(ctx, "strategy failed to load", zap.Error(err))
		return model.ErrorResponse(err.Error()), nil
	}
	check.Close()

	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	opts := game.Options{Rewards: req.CustomRewards, Seed: seed}
	feedback := s.tracedTrial(runCtx, g, prog, opts)

	loader := s.loader(prog, nil)
	batch := simulation.Batch{Trials: trials, Cost: g.TrialCost()}
	result := s.runner.Run(runCtx, batch, func(ctx context.Context, index int) (game.TrialResult, error) {
		// trial 0 is the traced run
		return game.PlayTrial(ctx, g, loader, index+1, opts)
	})

	metrics.TrialsTotal.WithLabelValues(g.Name(), "ok").Add(float64(result.NumTrials))
	metrics.TrialsTotal.WithLabelValues(g.Name(), "failed").Add(float64(result.Failed))
	metrics.BatchDuration.WithLabelValues(g.Name()).Observe(float64(result.Elapsed.Milliseconds()))
	if result.TimedOut {
		metrics.BatchTimeouts.WithLabelValues(g.Name()).Inc()
	}
	logger.Info(ctx, "batch finished",
		zap.String("mode", string(mode)),
		zap.String("game", g.Name()),
		zap.Int("requested", result.Requested),
		zap.Int("effective", result.Effective),
		zap.Int("completed", result.NumTrials),
		zap.Int("failed", result.Failed),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("elapsed", result.Elapsed),
	)

	return model.ExecuteResponse{
		Status:   model.StatusSuccess,
		Feedback: feedback,
		SimulationResults: &model.SimulationResults{
			TotalPoints:    result.TotalPoints,
			NumSimulations: result.NumTrials,
			Table:          result.Table,
		},
	}, nil
}

// normalize validates required fields and resolves the trial count.
func (s *Service) normalize(mode Mode, req *model.ExecuteRequest) (int, error) {
	limits, ok := s.trials[mode]
	if !ok {
		return 0, appErr.Newf(appErr.InvalidParams, "unknown mode: %s", mode)
	}
	req.GameName = strings.TrimSpace(req.GameName)
	req.TeamName = strings.TrimSpace(req.TeamName)
	switch {
	case strings.TrimSpace(req.Code) == "":
		return 0, appErr.ValidationError("code", "is required")
	case req.GameName == "":
		return 0, appErr.ValidationError("game_name", "is required")
	case req.TeamName == "":
		return 0, appErr.ValidationError("team_name", "is required")
	case len(req.TeamName) > maxTeamNameLen:
		return 0, appErr.ValidationError("team_name", "must be at most "+strconv.Itoa(maxTeamNameLen)+" characters")
	case req.NumSimulations < 0:
		return 0, appErr.ValidationError("num_simulations", "must not be negative")
	case len(req.CustomRewards) > maxCustomRewards:
		return 0, appErr.ValidationError("custom_rewards", "has too many entries")
	}
	for _, r := range req.CustomRewards {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, appErr.ValidationError("custom_rewards", "must be finite numbers")
		}
	}
	n := req.NumSimulations
	if n == 0 {
		n = limits.Default
	}
	if n > limits.Max {
		n = limits.Max
	}
	return n, nil
}

// compile writes the source to a per-request scratch directory, compiles it
// from there and removes the directory on every exit path.
func (s *Service) compile(ctx context.Context, team, code string) (prog *strategy.Program, err error) {
	dir := filepath.Join(s.workRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, appErr.Wrapf(err, appErr.ScratchIOError, "create scratch dir failed")
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Warn(ctx, "remove scratch dir failed", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()

	path := filepath.Join(dir, scratchFileName)
	if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
		return nil, appErr.Wrapf(err, appErr.ScratchIOError, "write scratch file failed")
	}
	return strategy.CompileFile(team, path)
}

func (s *Service) loader(prog *strategy.Program, out *strategy.Output) game.Loader {
	return func(ctx context.Context, seed int64) (strategy.Strategy, error) {
		return prog.Instantiate(ctx, strategy.InstanceOptions{
			Limits: s.limits,
			Seed:   seed,
			Output: out,
		})
	}
}

// tracedTrial plays trial 0 with tracing and renders it as feedback. A failed
// traced trial is reported in the text, not as a request failure.
func (s *Service) tracedTrial(ctx context.Context, g game.Game, prog *strategy.Program, opts game.Options) string {
	if s.traceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.traceTimeout)
		defer cancel()
	}
	var trace bytes.Buffer
	loadOut := strategy.NewOutput(0)
	opts.Trace = &trace

	res, err := game.PlayTrial(ctx, g, s.loader(prog, loadOut), 0, opts)

	var b strings.Builder
	for _, line := range loadOut.Drain() {
		b.WriteString("[load] ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.Write(trace.Bytes())
	if err != nil {
		fmt.Fprintf(&b, "traced game failed: %s\n", err.Error())
	} else {
		fmt.Fprintf(&b, "points: %s\n", formatPoints(res.Points))
	}
	return truncate(b.String(), s.feedbackMax)
}

func formatPoints(points map[string]float64) string {
	names := make([]string, 0, len(points))
	for name := range points {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strconv.FormatFloat(points[name], 'f', -1, 64))
	}
	return strings.Join(parts, " ")
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n... feedback truncated\n"
}

func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.slotTimeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrapf(ctx.Err(), appErr.Timeout, "request canceled while waiting for a batch slot")
	case <-timer.C:
		return appErr.New(appErr.ServiceUnavailable).WithMessage("execution pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}
