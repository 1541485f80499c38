// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package console serves the runtime's debug console: a small JSON API over
// the job registry plus Prometheus metrics. It is meant for local debugging
// and binds to localhost by default.
package console

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"sqlaunch/cli/internal/checkpoint"
	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddr is where the console listens unless configured otherwise.
const DefaultAddr = "localhost:8081"

// Summary describes the environment behind the console.
type Summary struct {
	Engine      string             `json:"engine"`
	Parallelism int                `json:"parallelism"`
	StartedAt   time.Time          `json:"started_at"`
	Jobs        map[job.Status]int `json:"jobs"`
}

// Source is what the console reads from.
type Source interface {
	Summary() Summary
	Jobs() []job.Info
	Job(id string) (job.Info, bool)
	Ping(ctx context.Context) error
	Checkpoint(ctx context.Context) (checkpoint.Snapshot, error)
}

// Server is the debug console HTTP server.
type Server struct {
	src    Source
	addr   string
	router *gin.Engine
	srv    *http.Server
	ln     net.Listener
}

// New builds the console routes for src.
func New(src Source, addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())

	s := &Server{src: src, addr: addr, router: r}
	r.GET("/", s.summary)
	r.GET("/health", s.health)
	r.GET("/jobs", s.jobs)
	r.GET("/jobs/:id", s.job)
	r.POST("/checkpoints", s.checkpoint)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			gin.DefaultErrorWriter.Write([]byte("console: " + err.Error() + "\n"))
		}
	}()
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) summary(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Summary())
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.src.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"checks": gin.H{"engine": err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": gin.H{"engine": "ok"}})
}

func (s *Server) jobs(c *gin.Context) {
	all := s.src.Jobs()
	status := job.Status(c.Query("status"))
	if status == "" {
		c.JSON(http.StatusOK, gin.H{"jobs": all})
		return
	}
	filtered := make([]job.Info, 0, len(all))
	for _, j := range all {
		if j.Status == status {
			filtered = append(filtered, j)
		}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": filtered})
}

func (s *Server) job(c *gin.Context) {
	info, ok := s.src.Job(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// checkpoint takes a checkpoint on demand and answers with its metadata.
func (s *Server) checkpoint(c *gin.Context) {
	snap, err := s.src.Checkpoint(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"sequence": snap.Sequence,
		"taken":    snap.Taken,
		"jobs":     len(snap.Jobs),
	})
}
