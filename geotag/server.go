// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
)

// maximum log lines retained for the status endpoint
const runLogLimit = 1000

// Server is the local-only web shell: it starts tagging runs, exposes
// their progress, log and statistics, and lets the user manage the
// cache. It holds no pipeline internals; everything it reports comes off
// the worker's event channel.
type Server struct {
	cache *GeocodingCache
	opts  Options

	mu  sync.Mutex
	run *serverRun
}

// NewServer creates the shell around a cache and the run options
// template. The directory and skip flag come per request; the rest of
// the options apply to every run started through the server.
func NewServer(cache *GeocodingCache, opts Options) *Server {
	return &Server{cache: cache, opts: opts}
}

// serverRun tracks one worker run as seen through its events.
type serverRun struct {
	worker *Worker
	cancel context.CancelFunc

	mu      sync.Mutex
	current int
	total   int
	log     []string
	stats   RunStatistics
	done    bool
	errMsg  string
}

// consume drains the worker's event channel into the run snapshot. The
// channel closes after Finished or Error, ending the loop.
func (r *serverRun) consume() {
	for e := range r.worker.Events() {
		r.mu.Lock()

		switch e.Kind {
		case EventProgress:
			r.current, r.total = e.Current, e.Total
		case EventLog:
			r.log = append(r.log, e.Line)
			if len(r.log) > runLogLimit {
				r.log = r.log[len(r.log)-runLogLimit:]
			}
		case EventStats:
			r.stats = e.Stats
		case EventFinished:
			r.done = true
		case EventError:
			r.done = true
			r.errMsg = e.Err
		}

		r.mu.Unlock()
	}
}

func (r *serverRun) snapshot() gin.H {
	r.mu.Lock()
	defer r.mu.Unlock()

	return gin.H{
		"active":     !r.done,
		"current":    r.current,
		"total":      r.total,
		"log":        append([]string(nil), r.log...),
		"statistics": r.stats,
		"error":      r.errMsg,
	}
}

func (r *serverRun) isDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done
}

// Run serves the shell API on addr until the process ends.
func (s *Server) Run(addr string) error {
	return s.router().Run(addr)
}

func (s *Server) router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/cache/stats", s.getCacheStats)
	r.GET("/api/cache/entries", s.listCacheEntries)
	r.POST("/api/cache/purge", s.purgeCache)
	r.POST("/api/cache/clear", s.clearCache)
	r.POST("/api/runs", s.startRun)
	r.GET("/api/runs/current", s.getCurrentRun)
	r.POST("/api/runs/cancel", s.cancelRun)

	return r
}

func (s *Server) getCacheStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.cache.Stats())
}

func (s *Server) listCacheEntries(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.cache.Entries())
}

func (s *Server) purgeCache(ctx *gin.Context) {
	deleted := s.cache.PurgeExpired(0)
	ctx.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) clearCache(ctx *gin.Context) {
	s.cache.PurgeAll()
	ctx.JSON(http.StatusOK, gin.H{"total": 0})
}

type startRunRequest struct {
	Directory    string `json:"directory" binding:"required"`
	SkipExisting *bool  `json:"skip_existing"`
}

func (s *Server) startRun(ctx *gin.Context) {
	var req startRunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if info, err := os.Stat(req.Directory); err != nil || !info.IsDir() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "not a directory: " + req.Directory})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil && !s.run.isDone() {
		ctx.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})

		return
	}

	opts := s.opts
	opts.Directory = req.Directory

	if req.SkipExisting != nil {
		opts.SkipExisting = *req.SkipExisting
	}

	worker := NewWorker(opts, s.cache, nil, nil)
	runCtx, cancel := context.WithCancel(context.Background())
	run := &serverRun{worker: worker, cancel: cancel}

	go worker.Run(runCtx)
	go run.consume()

	s.run = run

	ctx.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) getCurrentRun(ctx *gin.Context) {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	if run == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no run started yet"})

		return
	}

	ctx.JSON(http.StatusOK, run.snapshot())
}

func (s *Server) cancelRun(ctx *gin.Context) {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	if run == nil || run.isDone() {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no run in progress"})

		return
	}

	run.cancel()
	ctx.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}
