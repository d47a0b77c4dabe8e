package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
)

// A struct to define the expected JSON request body for a chat turn.
type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeChatRequest parses the body and applies the default thread. The
// message itself is validated by the use case.
func decodeChatRequest(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chatRequest{}, err
	}
	if strings.TrimSpace(req.ThreadID) == "" {
		req.ThreadID = model.DefaultThreadID
	}
	return req, nil
}

// statusForErr maps domain errors to HTTP statuses for the non-streaming
// surface. The streaming surface reports failures in-band instead.
func statusForErr(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest, "message must not be empty"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "concurrent modification, retry"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "thread store unavailable"
	case domain.IsGeneration(err):
		return http.StatusBadGateway, "generation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// handleChat serves the batch endpoint: the full reply in one JSON body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.allow(ctx, req.ThreadID); err != nil {
		status, msg := statusForErr(err)
		writeError(w, status, msg)
		return
	}

	reply, err := s.chatUC.SendTurn(ctx, req.ThreadID, req.Message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client is gone; there is nobody to answer.
			return
		}
		status, msg := statusForErr(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

// handleChatStream serves the streaming endpoint. Request-shape problems are
// rejected with plain HTTP statuses before the stream opens; once units have
// been written, failures travel in-band as an error unit.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if err := s.allow(ctx, req.ThreadID); err != nil {
		status, msg := statusForErr(err)
		writeError(w, status, msg)
		return
	}

	enc, err := NewSSEEncoder(w, s.streamTimeout)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if err := s.chatUC.StreamTurn(ctx, req.ThreadID, req.Message, enc); err != nil {
		// Failure units were already emitted by the use case through the
		// encoder; cancellation ends the stream silently.
		s.log.Debug().Err(err).Str("thread_id", req.ThreadID).Msg("stream turn ended with error")
	}
}

// handleThreadGet returns the committed history of one thread.
func (s *Server) handleThreadGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := threadIDParam(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "thread id is required")
		return
	}

	turns, err := s.chatUC.History(ctx, id)
	if err != nil {
		status, msg := statusForErr(err)
		writeError(w, status, msg)
		return
	}

	response := struct {
		ThreadID string       `json:"thread_id"`
		Turns    []model.Turn `json:"turns"`
	}{
		ThreadID: id,
		Turns:    turns,
	}
	writeJSON(w, http.StatusOK, response)
}

// modelsListHandler exposes the generator's model catalog.
func modelsListHandler(models func(ctx context.Context) ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := models(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to list models")
			return
		}
		response := struct {
			Data []string `json:"data"`
		}{Data: list}
		writeJSON(w, http.StatusOK, response)
	}
}

// ===== Admin handlers =====

// handleAdminToken exchanges the configured API key for a session token.
func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		writeError(w, http.StatusForbidden, "admin API disabled")
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey != s.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{Token: token})
}

// threadsListHandler returns a paginated list of threads.
// It accepts 'offset' and 'limit' query parameters.
func threadsListHandler(threads repository.ThreadRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50 // Default page size
		}
		if offset < 0 {
			offset = 0
		}

		list, err := threads.ListThreads(ctx, offset, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list threads")
			return
		}

		response := struct {
			Data   []model.Thread `json:"data"`
			Limit  int            `json:"limit"`
			Offset int            `json:"offset"`
		}{
			Data:   list,
			Limit:  limit,
			Offset: offset,
		}
		writeJSON(w, http.StatusOK, response)
	}
}

// threadDeleteHandler removes a thread and all its turns.
func threadDeleteHandler(threads repository.ThreadRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := threadIDParam(r)
		if id == "" {
			writeError(w, http.StatusBadRequest, "thread id is required")
			return
		}

		if err := threads.DeleteThread(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "thread not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to delete thread")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
