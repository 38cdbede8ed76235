/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/changeagent/pipeline/events"
	"chainguard.dev/changeagent/pipeline/orchestrator"
)

const maxRequestBytes = 1 << 20

// runner executes one change request against a stream.
type runner interface {
	Run(ctx context.Context, req orchestrator.ChangeRequest, stream *events.Stream) orchestrator.Phase
}

type server struct {
	runner runner
	buffer int
}

func newServer(r runner, buffer int) *server {
	return &server{runner: r, buffer: buffer}
}

func (s *server) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /code", s.handleCode)
}

type codeRequest struct {
	RepoURL string `json:"repoUrl"`
	Prompt  string `json:"prompt"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "changeagent"})
}

func (s *server) handleCode(w http.ResponseWriter, r *http.Request) {
	log := clog.FromContext(r.Context())

	var body codeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	body.RepoURL = strings.TrimSpace(body.RepoURL)
	if body.RepoURL == "" || strings.TrimSpace(body.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "repoUrl and prompt are required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := events.NewStream(s.buffer)
	done := make(chan orchestrator.Phase, 1)
	go func() {
		done <- s.runner.Run(r.Context(), orchestrator.ChangeRequest{RepositoryURL: body.RepoURL, Prompt: body.Prompt}, stream)
	}()

	if err := events.Pump(r.Context(), stream, w, flusher.Flush); err != nil {
		log.Warnf("Event stream ended early: %v", err)
	}
	log.Infof("Change request finished: %s", <-done)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
