package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veliq/telecall/internal/core/service"
)

type Handler struct {
	Presence    *service.Registry
	Coordinator *service.Coordinator
	Chat        *service.ChatService
	Directory   DirectoryRecorder

	allowedOrigins map[string]bool
}

// NewHandler wires the signaling endpoint. An empty allowedOrigins list
// accepts any origin, for local development.
func NewHandler(presence *service.Registry, coordinator *service.Coordinator, chat *service.ChatService, directory DirectoryRecorder, allowedOrigins []string) *Handler {
	h := &Handler{
		Presence:    presence,
		Coordinator: coordinator,
		Chat:        chat,
		Directory:   directory,
	}
	if len(allowedOrigins) > 0 {
		h.allowedOrigins = make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			h.allowedOrigins[o] = true
		}
	}
	return h
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeWS)
	r.Get("/healthz", h.health)
	r.Get("/presence", h.listOnline)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// listOnline exposes the presence registry for operational inspection.
func (h *Handler) listOnline(w http.ResponseWriter, r *http.Request) {
	type onlineUser struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
		Name string `json:"name"`
	}
	online := h.Presence.Online()
	out := make([]onlineUser, 0, len(online))
	for _, p := range online {
		out = append(out, onlineUser{ID: p.ID.String(), Kind: string(p.Kind), Name: p.Name()})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
