// Package api exposes the narrative engine over HTTP.
package api

import (
	"net/http"

	"github.com/Yates-Labs/narraitor/internal/api/recovery"
	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/Yates-Labs/narraitor/internal/orchestrator"
	"github.com/gorilla/mux"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(o *orchestrator.Orchestrator) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware(o.Log))
	router.Use(requestLogger(o.Log))
	router.MethodNotAllowedHandler = http.HandlerFunc(respond.MethodNotAllowed)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.WriteNotFound(w, "route not found")
	})

	h := NewHandler(o)

	// Health
	router.HandleFunc("/api/health", h.CheckHealth).Methods("GET")

	// Ending lifecycle
	router.HandleFunc("/api/narrative/ending", h.GenerateEnding).Methods("POST")
	router.HandleFunc("/api/narrative/ending", h.ClearEnding).Methods("DELETE")
	router.HandleFunc("/api/narrative/ending/history", h.SaveEndingToHistory).Methods("POST")
	router.HandleFunc("/api/generate-ending-image", h.GenerateEndingImage).Methods("POST")

	// Sessions
	router.HandleFunc("/api/narrative/sessions/{sessionId}/ending", h.GetSessionEnding).Methods("GET")
	router.HandleFunc("/api/narrative/sessions/{sessionId}/status", h.GetSessionStatus).Methods("GET")
	router.HandleFunc("/api/narrative/sessions/{sessionId}/segments", h.ListSegments).Methods("GET")
	router.HandleFunc("/api/narrative/sessions/{sessionId}/segments", h.AddSegment).Methods("POST")
	router.HandleFunc("/api/narrative/sessions/{sessionId}/scene", h.GenerateScene).Methods("POST")
	router.HandleFunc("/api/narrative/sessions/{sessionId}/context", h.GetContext).Methods("GET")
	router.HandleFunc("/api/narrative/sessions/{sessionId}/export", h.ExportSession).Methods("GET")
	router.HandleFunc("/api/narrative/segments/{segmentId}", h.UpdateSegment).Methods("PATCH")
	router.HandleFunc("/api/narrative/segments/{segmentId}", h.DeleteSegment).Methods("DELETE")

	// Lore
	router.HandleFunc("/api/lore/facts", h.SearchFacts).Methods("GET")
	router.HandleFunc("/api/lore/facts", h.CreateFact).Methods("POST")
	router.HandleFunc("/api/lore/facts/{factId}", h.GetFact).Methods("GET")
	router.HandleFunc("/api/lore/facts/{factId}", h.UpdateFact).Methods("PUT")
	router.HandleFunc("/api/lore/facts/{factId}", h.DeleteFact).Methods("DELETE")
	router.HandleFunc("/api/lore/facts/{factId}/related", h.GetRelatedFacts).Methods("GET")
	router.HandleFunc("/api/lore/context", h.GetLoreContext).Methods("GET")
	router.HandleFunc("/api/lore/extract", h.ExtractFacts).Methods("POST")
	router.HandleFunc("/api/lore/recall", h.RecallLore).Methods("GET")
	router.HandleFunc("/api/lore/index", h.IndexLore).Methods("POST")

	// Worlds, characters, saved sessions and journals
	router.HandleFunc("/api/worlds", h.ListWorlds).Methods("GET")
	router.HandleFunc("/api/worlds", h.CreateWorld).Methods("POST")
	router.HandleFunc("/api/worlds/{worldId}", h.GetWorld).Methods("GET")
	router.HandleFunc("/api/worlds/{worldId}", h.DeleteWorld).Methods("DELETE")
	router.HandleFunc("/api/characters", h.ListCharacters).Methods("GET")
	router.HandleFunc("/api/characters", h.CreateCharacter).Methods("POST")
	router.HandleFunc("/api/characters/{characterId}", h.GetCharacter).Methods("GET")
	router.HandleFunc("/api/characters/{characterId}", h.DeleteCharacter).Methods("DELETE")
	router.HandleFunc("/api/sessions", h.ListSessions).Methods("GET")
	router.HandleFunc("/api/sessions", h.SaveSession).Methods("POST")
	router.HandleFunc("/api/sessions/{sessionId}", h.GetSavedSession).Methods("GET")
	router.HandleFunc("/api/sessions/{sessionId}/journal", h.ListJournal).Methods("GET")
	router.HandleFunc("/api/sessions/{sessionId}/journal", h.AddJournalEntry).Methods("POST")

	return router
}
