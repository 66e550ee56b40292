package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/gorilla/mux"
)

const defaultLoreContextFacts = 10

func (h *Handler) SearchFacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := lore.SearchOptions{
		WorldID:    q.Get("worldId"),
		Category:   lore.Category(q.Get("category")),
		Source:     lore.Source(q.Get("source")),
		Tags:       queryList(r, "tags"),
		SearchTerm: q.Get("q"),
	}
	if raw := q.Get("canonical"); raw != "" {
		canonical, err := strconv.ParseBool(raw)
		if err != nil {
			respond.WriteBadRequest(w, "canonical must be true or false")
			return
		}
		opts.IsCanonical = &canonical
	}
	respond.WriteData(w, http.StatusOK, h.o.Lore.SearchFacts(opts))
}

func (h *Handler) CreateFact(w http.ResponseWriter, r *http.Request) {
	var f lore.Fact
	if !decodeJSON(w, r, &f) {
		return
	}
	created, err := h.o.Lore.CreateFact(r.Context(), f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, created)
}

func (h *Handler) GetFact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["factId"]
	f, ok := h.o.Lore.GetFact(id)
	if !ok {
		respond.WriteNotFound(w, fmt.Sprintf("fact %s not found", id))
		return
	}
	respond.WriteData(w, http.StatusOK, f)
}

type factPatchRequest struct {
	Category     *lore.Category `json:"category,omitempty"`
	Title        *string        `json:"title,omitempty"`
	Content      *string        `json:"content,omitempty"`
	Source       *lore.Source   `json:"source,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	IsCanonical  *bool          `json:"isCanonical,omitempty"`
	RelatedFacts []string       `json:"relatedFacts,omitempty"`
}

func (h *Handler) UpdateFact(w http.ResponseWriter, r *http.Request) {
	var req factPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := mux.Vars(r)["factId"]
	f, ok, err := h.o.Lore.UpdateFact(r.Context(), id, lore.FactPatch{
		Category:     req.Category,
		Title:        req.Title,
		Content:      req.Content,
		Source:       req.Source,
		Tags:         req.Tags,
		IsCanonical:  req.IsCanonical,
		RelatedFacts: req.RelatedFacts,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if !ok {
		respond.WriteNotFound(w, fmt.Sprintf("fact %s not found", id))
		return
	}
	respond.WriteData(w, http.StatusOK, f)
}

// DeleteFact removes the fact and drops it from the recall index.
func (h *Handler) DeleteFact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["factId"]
	if !h.o.Lore.DeleteFact(r.Context(), id) {
		respond.WriteNotFound(w, fmt.Sprintf("fact %s not found", id))
		return
	}
	if h.o.LoreIndex != nil {
		if err := h.o.LoreIndex.Forget(r.Context(), id); err != nil {
			h.log.Warn().Err(err).Str("fact_id", id).Msg("failed to remove fact from recall index")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetRelatedFacts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["factId"]
	if _, ok := h.o.Lore.GetFact(id); !ok {
		respond.WriteNotFound(w, fmt.Sprintf("fact %s not found", id))
		return
	}
	respond.WriteData(w, http.StatusOK, h.o.Lore.GetRelatedFacts(id))
}

func (h *Handler) GetLoreContext(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("worldId")
	if worldID == "" {
		respond.WriteBadRequest(w, "worldId is required")
		return
	}
	maxFacts, err := queryInt(r, "maxFacts", defaultLoreContextFacts)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusOK, h.o.Lore.GetLoreContext(worldID, queryList(r, "tags"), maxFacts))
}

type extractRequest struct {
	Text    string      `json:"text"`
	WorldID string      `json:"worldId"`
	Source  lore.Source `json:"source,omitempty"`
}

// ExtractFacts runs the rule extractor over free text and stores the results.
func (h *Handler) ExtractFacts(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" || req.WorldID == "" {
		respond.WriteBadRequest(w, "Missing required fields: text, worldId")
		return
	}
	if req.Source == "" {
		req.Source = lore.SourceNarrative
	}
	if !req.Source.Valid() {
		respond.WriteBadRequest(w, fmt.Sprintf("Invalid source %q", req.Source))
		return
	}
	facts := h.o.Lore.ExtractFactsFromText(r.Context(), req.Text, req.WorldID, req.Source)
	if facts == nil {
		facts = []lore.Fact{}
	}
	respond.WriteData(w, http.StatusOK, facts)
}

// RecallLore runs a semantic search over the indexed canonical lore.
func (h *Handler) RecallLore(w http.ResponseWriter, r *http.Request) {
	if h.o.LoreIndex == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "lore recall is not configured")
		return
	}
	q := r.URL.Query()
	if q.Get("q") == "" {
		respond.WriteBadRequest(w, "q is required")
		return
	}
	topK, err := queryInt(r, "topK", 0)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	facts, err := h.o.LoreIndex.Recall(r.Context(), q.Get("q"), q.Get("worldId"), topK)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusOK, facts)
}

type indexRequest struct {
	WorldID string `json:"worldId,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

// IndexLore embeds canonical facts into the recall index.
func (h *Handler) IndexLore(w http.ResponseWriter, r *http.Request) {
	if h.o.LoreIndex == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "lore recall is not configured")
		return
	}
	var req indexRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.o.LoreIndex.IndexWorld(r.Context(), req.WorldID, req.Force)
	if err != nil {
		h.writeErr(w, r, fmt.Errorf("index lore: %w", err))
		return
	}
	respond.WriteData(w, http.StatusOK, map[string]interface{}{"indexed": n, "worldId": req.WorldID})
}
