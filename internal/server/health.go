package server

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/mapping-testgen/internal/generator"
)

// Health states.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthDown     = "unavailable"
)

// DependencyHealth is the probe result of one dependency.
type DependencyHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Store     DependencyHealth `json:"store"`
	Generator DependencyHealth `json:"generator"`
}

// handleHealth probes the store and the generator's external dependency
// concurrently. Neither probe mutates state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    healthOK,
		Store:     DependencyHealth{Name: s.store.Backend(), Status: healthOK},
		Generator: DependencyHealth{Name: s.jobs.GeneratorName(), Status: healthOK},
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := s.store.Ping(ctx); err != nil {
			resp.Store.Status = healthDown
			resp.Store.Error = err.Error()
		}
		return nil
	})
	if p, ok := s.generator.(generator.Pinger); ok {
		g.Go(func() error {
			if err := p.Ping(ctx); err != nil {
				resp.Generator.Status = healthDown
				resp.Generator.Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if resp.Store.Status != healthOK || resp.Generator.Status != healthOK {
		resp.Status = healthDegraded
		status = http.StatusServiceUnavailable
	}
	s.jsonResponse(w, status, resp)
}
