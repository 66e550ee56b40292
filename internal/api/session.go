package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/gorilla/mux"
)

func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	respond.WriteData(w, http.StatusOK, h.o.Narrative.GetSessionSegments(mux.Vars(r)["sessionId"]))
}

// AddSegment appends a client-authored segment. Ended sessions answer 409.
func (h *Handler) AddSegment(w http.ResponseWriter, r *http.Request) {
	var seg engine.NarrativeSegment
	if !decodeJSON(w, r, &seg) {
		return
	}
	stored, err := h.o.Narrative.AddSegment(r.Context(), mux.Vars(r)["sessionId"], seg)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, stored)
}

// GenerateScene asks the LLM for the next scene of the session. Ended
// sessions answer 409.
func (h *Handler) GenerateScene(w http.ResponseWriter, r *http.Request) {
	var req narrative.SceneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SessionID = mux.Vars(r)["sessionId"]
	if req.WorldID == "" || req.CharacterID == "" {
		respond.WriteBadRequest(w, "Missing required fields: worldId, characterId")
		return
	}
	res, err := h.o.Scenes.Generate(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, res)
}

type segmentPatchRequest struct {
	Content  *string                 `json:"content,omitempty"`
	Type     *engine.SegmentType     `json:"type,omitempty"`
	Metadata *engine.SegmentMetadata `json:"metadata,omitempty"`
}

func (h *Handler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type != nil && !req.Type.Valid() {
		respond.WriteBadRequest(w, fmt.Sprintf("Invalid segment type %q", *req.Type))
		return
	}
	seg, err := h.o.Narrative.UpdateSegment(r.Context(), mux.Vars(r)["segmentId"], narrative.SegmentPatch{
		Content:  req.Content,
		Type:     req.Type,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusOK, seg)
}

func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.o.Narrative.DeleteSegment(r.Context(), mux.Vars(r)["segmentId"]); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contextResponse struct {
	SessionID    string                      `json:"sessionId"`
	MaxTokens    int                         `json:"maxTokens"`
	Context      string                      `json:"context"`
	Elements     []engine.PrioritizedElement `json:"elements"`
	SegmentCount int                         `json:"segmentCount"`
}

// GetContext returns the token-bounded prompt context for a session.
func (h *Handler) GetContext(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	maxTokens, err := queryInt(r, "maxTokens", narrative.DefaultSceneContextTokens)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	cm := h.o.ContextManager()
	cm.LoadSegments(h.o.Narrative.GetSessionSegments(sessionID))
	respond.WriteData(w, http.StatusOK, contextResponse{
		SessionID:    sessionID,
		MaxTokens:    maxTokens,
		Context:      cm.GetOptimizedContext(maxTokens),
		Elements:     cm.GetPrioritizedElements(),
		SegmentCount: cm.Len(),
	})
}

// ExportSession streams the session transcript as JSON or markdown.
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = string(narrative.FormatJSON)
	}
	contentType := "application/json"
	switch narrative.ExportFormat(format) {
	case narrative.FormatJSON:
	case narrative.FormatMarkdown:
		contentType = "text/markdown; charset=utf-8"
	default:
		respond.WriteBadRequest(w, fmt.Sprintf("unsupported export format: %s (supported: json, markdown)", format))
		return
	}

	exp := narrative.BuildSessionExport(h.o.Narrative, mux.Vars(r)["sessionId"])
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := narrative.ExportSession(exp, format, w); err != nil {
		h.log.Error().Err(err).Msg("export failed mid-stream")
	}
}
