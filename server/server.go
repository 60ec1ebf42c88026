// Package server exposes the canvas-facing HTTP API: the streaming chat
// endpoint, credential resolution, geocoding, and session lifecycle.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
	runnerx "github.com/plancanvas/plancanvas/agent/runner"
	statex "github.com/plancanvas/plancanvas/agent/state"
	toolx "github.com/plancanvas/plancanvas/agent/tool"
	authx "github.com/plancanvas/plancanvas/pkg/auth"
)

const defaultSessionID = "default"

type Server struct {
	runner       *runnerx.Runner
	sessions     *statex.Manager
	workspaceFor func(token string) contractx.WorkspaceAPI
	tasks        contractx.TaskAPI
	geocoder     contractx.Geocoder
	tokens       authx.TokenSource
}

func New(
	runner *runnerx.Runner,
	sessions *statex.Manager,
	workspaceFor func(token string) contractx.WorkspaceAPI,
	tasks contractx.TaskAPI,
	geocoder contractx.Geocoder,
	tokens authx.TokenSource,
) http.Handler {
	s := &Server{
		runner:       runner,
		sessions:     sessions,
		workspaceFor: workspaceFor,
		tasks:        tasks,
		geocoder:     geocoder,
		tokens:       tokens,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/auth/google-token", s.handleGoogleToken)
	mux.HandleFunc("POST /api/places/geocode", s.handleGeocode)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleReleaseSession)

	return RequestLogger(mux)
}

type chatRequest struct {
	SessionID      string                  `json:"sessionId,omitempty"`
	Messages       []contractx.ChatMessage `json:"messages"`
	ConnectedNodes []contractx.NodeContext `json:"connectedNodes,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	planning, err := s.sessions.Acquire(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process chat request")
		return
	}

	// A missing workspace credential degrades tool coverage, not the chat.
	googleToken, err := s.tokens.GoogleToken(r.Context(), bearerToken(r))
	if err != nil {
		log.Warn().Err(err).Msg("google credential not available; workspace tools may not work")
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// A fresh session adopts the client-supplied transcript wholesale so
	// earlier turns reach the model; afterwards only the new user message is
	// appended.
	if existing := planning.Messages(); len(existing) == 0 {
		for _, msg := range req.Messages {
			planning.AppendMessage(msg)
		}
	} else if len(req.Messages) > 0 {
		if last := req.Messages[len(req.Messages)-1]; last.Role == contractx.RoleUser && !hasMessage(existing, last.ID) {
			planning.AppendMessage(last)
		}
	}
	planning.SetStreaming(true)
	defer planning.SetStreaming(false)

	env := toolx.Env{
		State:     planning,
		Workspace: s.workspaceFor(googleToken),
		Tasks:     s.tasks,
	}
	emit := func(ev runnerx.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	assistant, err := s.runner.Stream(r.Context(), env, planning.Messages(), req.ConnectedNodes, emit)
	if err != nil {
		// the error event already went out on the stream
		log.Error().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
		return
	}
	planning.AppendMessage(assistant)
}

type googleTokenResponse struct {
	Token string `json:"token"`
}

type googleTokenError struct {
	Error string `json:"error"`
}

// googleTokenLinkError is the 400 body for a signed-in user without a linked
// Google account. AvailableProviders always serializes, empty list included.
type googleTokenLinkError struct {
	Error              string   `json:"error"`
	Hint               string   `json:"hint"`
	AvailableProviders []string `json:"availableProviders"`
}

func (s *Server) handleGoogleToken(w http.ResponseWriter, r *http.Request) {
	session := bearerToken(r)
	if session == "" {
		writeJSON(w, http.StatusUnauthorized, googleTokenError{Error: "Unauthorized. Please sign in."})
		return
	}

	token, err := s.tokens.GoogleToken(r.Context(), session)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, googleTokenResponse{Token: token})
	case errors.Is(err, authx.ErrNoSession):
		writeJSON(w, http.StatusUnauthorized, googleTokenError{Error: "Unauthorized. Please sign in."})
	case errors.Is(err, authx.ErrNoLinkedAccount):
		providers, provErr := s.tokens.LinkedProviders(r.Context(), session)
		if provErr != nil {
			log.Error().Err(provErr).Msg("failed to list linked providers")
		}
		if providers == nil {
			providers = []string{}
		}
		writeJSON(w, http.StatusBadRequest, googleTokenLinkError{
			Error:              "No Google token available. Please connect your Google account.",
			Hint:               "Sign in with Google and link the account to your profile.",
			AvailableProviders: providers,
		})
	default:
		log.Error().Err(err).Msg("failed to get google token")
		writeJSON(w, http.StatusInternalServerError, googleTokenError{Error: "Failed to get Google token"})
	}
}

type geocodeRequest struct {
	Region string `json:"region"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Region) == "" {
		writeError(w, http.StatusBadRequest, "Region is required")
		return
	}

	result, err := s.geocoder.Geocode(r.Context(), req.Region)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, contractx.ErrNotFound):
		writeError(w, http.StatusNotFound, "Region not found")
	default:
		log.Error().Err(err).Str("region", req.Region).Msg("geocoding failed")
		writeError(w, http.StatusInternalServerError, "Failed to geocode region")
	}
}

func (s *Server) handleReleaseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Release(r.Context(), id); err != nil {
		if errors.Is(err, statex.ErrInvalidSession) {
			writeError(w, http.StatusBadRequest, "session id is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to release session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func hasMessage(messages []contractx.ChatMessage, id string) bool {
	if id == "" {
		return false
	}
	for _, msg := range messages {
		if msg.ID == id {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
