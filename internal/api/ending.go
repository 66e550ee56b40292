package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/gorilla/mux"
)

// CheckHealth reports liveness and which optional services are wired.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	respond.WriteData(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"aiProvider": h.o.Config.AIProvider,
		"storage":    h.o.Config.StorageDriver,
		"loreRecall": h.o.LoreIndex != nil,
	})
}

// GenerateEnding validates the request, generates the ending through the
// narrative store and locks the session.
func (h *Handler) GenerateEnding(w http.ResponseWriter, r *http.Request) {
	var req engine.EndingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"sessionId", req.SessionID},
		{"characterId", req.CharacterID},
		{"worldId", req.WorldID},
		{"endingType", string(req.EndingType)},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		respond.WriteBadRequest(w, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}
	if !req.EndingType.Valid() {
		respond.WriteBadRequest(w, fmt.Sprintf("Invalid endingType %q. Must be one of: %s", req.EndingType, joinValues(engine.EndingTypes)))
		return
	}
	if req.DesiredTone != "" && !req.DesiredTone.Valid() {
		respond.WriteBadRequest(w, fmt.Sprintf("Invalid desiredTone %q. Must be one of: %s", req.DesiredTone, joinValues(engine.EndingTones)))
		return
	}

	ending, err := h.o.Narrative.GenerateEnding(r.Context(), req.EndingType, narrative.EndingParams{
		SessionID:    req.SessionID,
		CharacterID:  req.CharacterID,
		WorldID:      req.WorldID,
		DesiredTone:  req.DesiredTone,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.markSessionCompleted(r.Context(), req.SessionID)

	respond.WriteData(w, http.StatusOK, ending.Result())
}

// markSessionCompleted flips the saved session record, when one exists.
func (h *Handler) markSessionCompleted(ctx context.Context, sessionID string) {
	if _, ok := h.o.Sessions.GetSession(sessionID); !ok {
		return
	}
	if err := h.o.Sessions.SetStatus(ctx, sessionID, engine.SessionCompleted); err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to complete saved session")
	}
}

func (h *Handler) ClearEnding(w http.ResponseWriter, r *http.Request) {
	h.o.Narrative.ClearEnding(r.Context())
	respond.WriteData(w, http.StatusOK, map[string]bool{"cleared": true})
}

// SaveEndingToHistory mirrors the current ending into the segment stream.
func (h *Handler) SaveEndingToHistory(w http.ResponseWriter, r *http.Request) {
	seg, ok := h.o.Narrative.SaveEndingToHistory(r.Context())
	if !ok {
		respond.WriteNotFound(w, "no current ending to save")
		return
	}
	respond.WriteData(w, http.StatusCreated, seg)
}

type endingImageRequest struct {
	SessionID       string             `json:"sessionId"`
	Ending          engine.StoryEnding `json:"ending"`
	World           *engine.World      `json:"world,omitempty"`
	Character       *engine.Character  `json:"character,omitempty"`
	RecentNarrative []string           `json:"recentNarrative,omitempty"`
	PromptOnly      bool               `json:"promptOnly,omitempty"`
}

// GenerateEndingImage illustrates an ending. World and character are looked
// up from the ending when the body leaves them out. Imager failures fall back
// to a placeholder image.
func (h *Handler) GenerateEndingImage(w http.ResponseWriter, r *http.Request) {
	var req endingImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ending := req.Ending
	if ending.Epilogue == "" && req.SessionID != "" {
		if stored, ok := h.o.Narrative.GetEndingForSession(req.SessionID); ok {
			ending = *stored
		}
	}
	if ending.Epilogue == "" && len(req.RecentNarrative) == 0 {
		respond.WriteBadRequest(w, "ending epilogue or recentNarrative is required")
		return
	}

	imgReq := narrative.ImageRequest{Ending: ending, RecentNarrative: req.RecentNarrative, PromptOnly: req.PromptOnly}
	if req.World != nil {
		imgReq.World = *req.World
	} else if world, ok := h.o.Worlds.GetWorld(ending.WorldID); ok {
		imgReq.World = world
	}
	if req.Character != nil {
		imgReq.Character = *req.Character
	} else if character, ok := h.o.Characters.GetCharacter(ending.CharacterID); ok {
		imgReq.Character = character
	}

	prompt := narrative.BuildImagePrompt(imgReq)
	if req.PromptOnly {
		respond.WriteData(w, http.StatusOK, narrative.ImageResult{Prompt: prompt})
		return
	}

	res, err := h.o.Images.GenerateImage(r.Context(), prompt)
	if err != nil {
		h.log.Warn().Err(err).Msg("image generation failed, using placeholder")
		res, _ = narrative.PlaceholderImager{}.GenerateImage(r.Context(), prompt)
	}
	respond.WriteData(w, http.StatusOK, res)
}

func (h *Handler) GetSessionEnding(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	ending, ok := h.o.Narrative.GetEndingForSession(sessionID)
	if !ok {
		respond.WriteNotFound(w, fmt.Sprintf("no ending found for session %s", sessionID))
		return
	}
	respond.WriteData(w, http.StatusOK, ending)
}

type sessionStatus struct {
	SessionID          string `json:"sessionId"`
	Ended              bool   `json:"ended"`
	SegmentCount       int    `json:"segmentCount"`
	IsGeneratingEnding bool   `json:"isGeneratingEnding"`
	EndingError        string `json:"endingError,omitempty"`
	HasEnding          bool   `json:"hasEnding"`
}

func (h *Handler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	_, hasEnding := h.o.Narrative.GetEndingForSession(sessionID)
	respond.WriteData(w, http.StatusOK, sessionStatus{
		SessionID:          sessionID,
		Ended:              h.o.Narrative.IsSessionEnded(sessionID),
		SegmentCount:       len(h.o.Narrative.GetSessionSegments(sessionID)),
		IsGeneratingEnding: h.o.Narrative.IsGeneratingEnding(),
		EndingError:        h.o.Narrative.EndingError(),
		HasEnding:          hasEnding,
	})
}
