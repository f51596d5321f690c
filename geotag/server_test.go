// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	return NewServer(newTestCache(t, 5, 30), Options{Language: "de"})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestServer_CacheEndpoints(t *testing.T) {
	server := newTestServer(t)
	server.cache.Put(48.85837, 2.29448, &LocationRecord{City: "Paris"})

	router := server.router()

	rec := doJSON(t, router, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 5, stats.Precision)

	rec = doJSON(t, router, http.MethodGet, "/api/cache/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries map[string]CacheEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	for _, entry := range entries {
		assert.Equal(t, "Paris", entry.LocationData.City)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/cache/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted": 0}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, server.cache.Stats().Total)
}

func TestServer_RunLifecycle(t *testing.T) {
	server := newTestServer(t)
	router := server.router()

	// No run started yet.
	rec := doJSON(t, router, http.MethodGet, "/api/runs/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/runs/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A run over an empty directory completes immediately.
	rec = doJSON(t, router, http.MethodPost, "/api/runs", gin.H{"directory": t.TempDir()})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var status gin.H

	require.Eventually(t, func() bool {
		rec := doJSON(t, router, http.MethodGet, "/api/runs/current", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		status = gin.H{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

		return status["active"] == false
	}, 5*time.Second, 10*time.Millisecond)

	assert.Empty(t, status["error"])

	lines, ok := status["log"].([]any)
	require.True(t, ok)
	assert.Contains(t, lines, "No image files found.")

	// The finished run cannot be cancelled.
	rec = doJSON(t, router, http.MethodPost, "/api/runs/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartRunValidation(t *testing.T) {
	server := newTestServer(t)
	router := server.router()

	rec := doJSON(t, router, http.MethodPost, "/api/runs", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "directory is required")

	rec = doJSON(t, router, http.MethodPost, "/api/runs", gin.H{"directory": "/does/not/exist"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
