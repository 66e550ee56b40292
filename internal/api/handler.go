package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/Yates-Labs/narraitor/internal/orchestrator"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves every API route from the orchestrator's services.
type Handler struct {
	o   *orchestrator.Orchestrator
	log zerolog.Logger
}

func NewHandler(o *orchestrator.Orchestrator) *Handler {
	return &Handler{o: o, log: o.Log.With().Str("component", "api").Logger()}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// statusFor maps an error to an HTTP status: sentinels first, then the
// message for errors that carry none.
func statusFor(err error) int {
	var ended *narrative.SessionEndedError
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &ended):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, narrative.ErrGenerationExhausted),
		errors.Is(err, narrative.ErrGenerationFailed),
		errors.Is(err, narrative.ErrLLMFailed):
		return http.StatusServiceUnavailable
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "API"), strings.Contains(msg, "generation"):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respond.WriteError(w, status, err.Error())
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", engine.ErrValidation, name)
	}
	return n, nil
}

func queryList(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
