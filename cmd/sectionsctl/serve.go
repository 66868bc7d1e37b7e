package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"sectioncat/internal/config"
	"sectioncat/internal/persist"
)

// apiServer exposes persist.Store's Query/Mutation API as JSON
// endpoints, adapted from the teacher's web-server connection-pooling
// pattern (here the connection pooling itself lives inside
// persist.Store, behind its own mutex).
type apiServer struct {
	ctx   context.Context
	store *persist.Store
	cfg   config.Config
}

func runServe(ctx context.Context, store *persist.Store, cfg config.Config) {
	s := &apiServer{ctx: ctx, store: store, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sections", s.requireAuth(s.handleSections))
	mux.HandleFunc("/api/sections/", s.requireAuth(s.handleSectionByID))
	mux.HandleFunc("/api/activities/", s.requireAuth(s.handleActivityByID))

	addr := ":" + strings.TrimPrefix(cfg.Web.Port, ":")
	if addr == ":" {
		addr = ":8080"
	}
	log.Printf("🌐 Starting section catalog API on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// requireAuth checks the Authorization: Bearer <token> header against
// persist.Store's bcrypt-hashed api_tokens table when at least one
// token has been provisioned; an empty table leaves the surface open,
// matching an "optional auth" posture for local/dev use.
func (s *apiServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		ok, err := s.store.VerifyAPIToken(r.Context(), token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "invalid API token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleSections handles GET /api/sections?sport=running.
func (s *apiServer) handleSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sportType := r.URL.Query().Get("sport")
	if sportType == "" {
		http.Error(w, "missing required query parameter: sport", http.StatusBadRequest)
		return
	}
	summaries, err := s.store.GetSectionSummariesByType(r.Context(), sportType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

// handleSectionByID handles GET/PATCH/DELETE /api/sections/{id}.
func (s *apiServer) handleSectionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sections/")
	if id == "" {
		http.Error(w, "missing section id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sec, ok, err := s.store.GetSection(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "section not found", http.StatusNotFound)
			return
		}
		writeJSON(w, sec)

	case http.MethodPatch:
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ok, err := s.store.RenameSection(r.Context(), id, body.Name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "section not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		ok, err := s.store.DeleteSection(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "section not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleActivityByID handles GET /api/activities/{id}/sections.
func (s *apiServer) handleActivityByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/activities/")
	id, suffix, _ := strings.Cut(rest, "/")
	if id == "" || suffix != "sections" {
		http.Error(w, "expected /api/activities/{id}/sections", http.StatusNotFound)
		return
	}

	secs, err := s.store.GetSectionsForActivity(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, secs)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
