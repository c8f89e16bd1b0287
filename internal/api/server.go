// Package api exposes the simulator over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/childsim/internal/config"
	"github.com/san-kum/childsim/internal/experiment"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/repository"
	"github.com/san-kum/childsim/internal/sim"
)

// DefaultMaxCells bounds individuals x steps for one request.
const DefaultMaxCells = 5_000_000

type Server struct {
	logger   log.Logger
	runs     repository.RunRepository
	maxCells int
}

type Option func(*Server)

func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRunRepository stores a summary of every successful simulation.
func WithRunRepository(r repository.RunRepository) Option {
	return func(s *Server) { s.runs = r }
}

func WithMaxCells(n int) Option {
	return func(s *Server) { s.maxCells = n }
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:   log.NewNopLogger(),
		maxCells: DefaultMaxCells,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)

	v1 := r.Group("/v1")
	{
		v1.GET("/presets", s.listPresets)
		v1.POST("/simulate", s.simulate)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level.Info(s.logger).Log(
			"msg", "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listPresets(c *gin.Context) {
	out := make(map[string]*config.Config, len(config.Presets))
	for _, name := range config.ListPresets() {
		out[name] = config.GetPreset(name)
	}
	c.JSON(http.StatusOK, gin.H{"presets": out})
}

type SimulateRequest struct {
	Preset    string          `json:"preset,omitempty"`
	Scenario  json.RawMessage `json:"scenario,omitempty"`
	Breakdown bool            `json:"breakdown,omitempty"`
}

type SimulateResponse struct {
	Scenario   string             `json:"scenario"`
	Integrator string             `json:"integrator"`
	Metrics    map[string]float64 `json:"metrics"`
	Trajectory *models.Trajectory `json:"trajectory"`
	Breakdown  *models.Breakdown  `json:"breakdown,omitempty"`
	ElapsedMS  float64            `json:"elapsed_ms"`
}

func (s *Server) simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := s.resolve(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	e := experiment.New(cfg, experiment.WithLogger(s.logger))
	if err := e.Setup(); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	out, err := e.Run(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	resp := SimulateResponse{
		Scenario:   out.Name,
		Integrator: out.Integrator,
		Metrics:    s.finiteMetrics(out.Metrics),
		Trajectory: out.Trajectory,
		ElapsedMS:  float64(out.Elapsed.Microseconds()) / 1000,
	}
	if req.Breakdown {
		ffm, fm, _ := out.Trajectory.Final()
		x := append(append(sim.State{}, ffm...), fm...)
		b, err := e.Child().EnergyBreakdown(x, out.Trajectory.Times[out.Trajectory.Steps()-1])
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		resp.Breakdown = b
	}

	if s.runs != nil {
		runID := fmt.Sprintf("api_%s_%d", cfg.Name, time.Now().UnixNano())
		summary := repository.Summarize(runID, cfg.Name, cfg.Integrator, cfg.Dt, cfg.Days, out.Trajectory, out.Metrics)
		if _, err := s.runs.Create(summary); err != nil {
			level.Warn(s.logger).Log("msg", "failed to store run summary", "run", runID, "err", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) resolve(req SimulateRequest) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case len(req.Scenario) > 0:
		// fields missing from the request keep their defaults
		cfg = config.DefaultConfig()
		if err := json.Unmarshal(req.Scenario, cfg); err != nil {
			return nil, fmt.Errorf("%w: scenario: %v", sim.ErrInvalidInput, err)
		}
	case req.Preset != "":
		cfg = config.GetPreset(req.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", sim.ErrInvalidInput, req.Preset)
		}
	default:
		return nil, fmt.Errorf("%w: request needs a preset or a scenario", sim.ErrInvalidInput)
	}

	if cfg.Intake.File != "" {
		return nil, fmt.Errorf("%w: intake files are not accepted over HTTP, send the matrix", sim.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cells := len(cfg.Individuals) * (cfg.Steps() + 1); cells > s.maxCells {
		return nil, fmt.Errorf("%w: %d individuals x %d steps exceeds the limit of %d cells",
			sim.ErrInvalidConfiguration, len(cfg.Individuals), cfg.Steps()+1, s.maxCells)
	}
	if cfg.Integrator == "" {
		cfg.Integrator = config.DefaultIntegrator
	}
	if cfg.Name == "" {
		cfg.Name = "api"
	}
	return cfg, nil
}

// finiteMetrics drops NaN and infinite values, which JSON cannot carry.
func (s *Server) finiteMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for name, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			level.Warn(s.logger).Log("msg", "dropping non-finite metric", "metric", name, "value", v)
			continue
		}
		out[name] = v
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrInvalidInput),
		errors.Is(err, sim.ErrInvalidConfiguration),
		errors.Is(err, sim.ErrIndexOutOfRange),
		errors.Is(err, sim.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, sim.ErrNumericDegeneracy),
		errors.Is(err, sim.ErrInvalidState):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
