package api

import (
	"fmt"
	"net/http"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/gorilla/mux"
)

func (h *Handler) ListWorlds(w http.ResponseWriter, r *http.Request) {
	respond.WriteData(w, http.StatusOK, h.o.Worlds.ListWorlds())
}

func (h *Handler) CreateWorld(w http.ResponseWriter, r *http.Request) {
	var world engine.World
	if !decodeJSON(w, r, &world) {
		return
	}
	created, err := h.o.Worlds.CreateWorld(r.Context(), world)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, created)
}

func (h *Handler) GetWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["worldId"]
	world, ok := h.o.Worlds.GetWorld(id)
	if !ok {
		respond.WriteNotFound(w, fmt.Sprintf("world %s not found", id))
		return
	}
	respond.WriteData(w, http.StatusOK, world)
}

func (h *Handler) DeleteWorld(w http.ResponseWriter, r *http.Request) {
	if err := h.o.Worlds.DeleteWorld(r.Context(), mux.Vars(r)["worldId"]); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	respond.WriteData(w, http.StatusOK, h.o.Characters.ListCharacters(r.URL.Query().Get("worldId")))
}

func (h *Handler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var c engine.Character
	if !decodeJSON(w, r, &c) {
		return
	}
	if c.WorldID != "" {
		if _, ok := h.o.Worlds.GetWorld(c.WorldID); !ok {
			respond.WriteNotFound(w, fmt.Sprintf("world %s not found", c.WorldID))
			return
		}
	}
	created, err := h.o.Characters.CreateCharacter(r.Context(), c)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, created)
}

func (h *Handler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["characterId"]
	c, ok := h.o.Characters.GetCharacter(id)
	if !ok {
		respond.WriteNotFound(w, fmt.Sprintf("character %s not found", id))
		return
	}
	respond.WriteData(w, http.StatusOK, c)
}

func (h *Handler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	if err := h.o.Characters.DeleteCharacter(r.Context(), mux.Vars(r)["characterId"]); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	respond.WriteData(w, http.StatusOK, h.o.Sessions.ListSessions())
}

func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	var sess engine.SavedSession
	if !decodeJSON(w, r, &sess) {
		return
	}
	saved, err := h.o.Sessions.SaveSession(r.Context(), sess)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, saved)
}

func (h *Handler) GetSavedSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	sess, ok := h.o.Sessions.GetSession(id)
	if !ok {
		respond.WriteNotFound(w, fmt.Sprintf("session %s not found", id))
		return
	}
	respond.WriteData(w, http.StatusOK, sess)
}

func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	respond.WriteData(w, http.StatusOK, h.o.Journal.EntriesForSession(mux.Vars(r)["sessionId"]))
}

func (h *Handler) AddJournalEntry(w http.ResponseWriter, r *http.Request) {
	var e engine.JournalEntry
	if !decodeJSON(w, r, &e) {
		return
	}
	e.SessionID = mux.Vars(r)["sessionId"]
	created, err := h.o.Journal.AddEntry(r.Context(), e)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	respond.WriteData(w, http.StatusCreated, created)
}
