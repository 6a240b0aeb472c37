package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"chatcam/pkg/interfaces"
	"chatcam/pkg/types"
)

// Registry is the listing surface the API needs; keeps the server decoupled
// from the registry implementation.
type Registry interface {
	ListRooms() []types.RoomInfo
	GetStats() map[string]int
}

// Server is the HTTP face of the relay: room listing, attachment upload and
// fetch, health. No business logic, only HTTP handling and JSON shapes.
type Server struct {
	registry    Registry
	attachments interfaces.AttachmentStore
	router      *http.ServeMux
}

// NewServer creates the API server and wires its routes.
func NewServer(registry Registry, attachments interfaces.AttachmentStore) *Server {
	s := &Server{
		registry:    registry,
		attachments: attachments,
		router:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRooms))))
	s.router.Handle("/api/attachments", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleAttachments))))
	s.router.Handle("/api/attachments/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleAttachmentByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/response shapes.
type ListRoomsResponse struct {
	Rooms []types.RoomInfo `json:"rooms"`
}

type UploadAttachmentRequest struct {
	SessionID string `json:"sessionId"`
	ImageData string `json:"imageData"`
}

type UploadAttachmentResponse struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"referenceId,omitempty"`
}

type FetchAttachmentResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData,omitempty"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleRooms answers the room-picker's listing query: raw name, display
// name, member count per room. Clients enumerate rooms without joining one.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(ListRoomsResponse{Rooms: s.registry.ListRooms()})
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAttachments accepts an image upload and returns its reference id.
// Retries are safe: each call mints a fresh id.
func (s *Server) handleAttachments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.uploadAttachment(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	var req UploadAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ImageData == "" {
		s.sendError(w, "Image data is required", http.StatusBadRequest)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		s.sendError(w, "Image data must be base64", http.StatusBadRequest)
		return
	}

	id, err := s.attachments.Put(r.Context(), data)
	if err != nil {
		s.sendError(w, "Failed to store attachment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadAttachmentResponse{Success: true, ReferenceID: id})
}

// handleAttachmentByID resolves a reference id to its payload. Unknown ids
// answer success:false so receivers degrade to an "image unavailable"
// placeholder instead of blocking text rendering.
func (s *Server) handleAttachmentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/attachments/")
	if id == "" || strings.Contains(id, "/") {
		s.sendError(w, "Attachment ID required", http.StatusBadRequest)
		return
	}

	data, err := s.attachments.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrAttachmentNotFound) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(FetchAttachmentResponse{Success: false})
			return
		}
		s.sendError(w, "Failed to fetch attachment", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(FetchAttachmentResponse{
		Success:   true,
		ImageData: base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Connections: s.registry.GetStats(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware lets the browser-based PWA call the relay from another
// origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
