package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/yashnalla/document-service-sub000/document"
	"github.com/yashnalla/document-service-sub000/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type changesRequest struct {
	Version int                  `json:"version"`
	Changes []document.RawChange `json:"changes"`
}

type previewRequest struct {
	Changes []document.RawChange `json:"changes"`
}

type contentRequest struct {
	Version int    `json:"version"`
	Content string `json:"content"`
}

type renameRequest struct {
	Version int    `json:"version"`
	Title   string `json:"title"`
}

// NewHandler creates the HTTP handler with all routes.
func NewHandler(svc *document.Service, hub *Hub) http.Handler {
	h := &handler{svc: svc, hub: hub}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents/{$}", h.createDocument)
	mux.HandleFunc("GET /api/documents/{$}", h.listDocuments)
	mux.HandleFunc("GET /api/documents/{id}/{$}", h.getDocument)
	mux.HandleFunc("PATCH /api/documents/{id}/{$}", h.renameDocument)
	mux.HandleFunc("POST /api/documents/{id}/changes/{$}", h.applyChanges)
	mux.HandleFunc("GET /api/documents/{id}/changes/{$}", h.listChanges)
	mux.HandleFunc("POST /api/documents/{id}/preview/{$}", h.previewChanges)
	mux.HandleFunc("PUT /api/documents/{id}/content/{$}", h.updateContent)

	mux.HandleFunc("GET /health/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		client := newClient(hub, conn, r.URL.Query().Get("token"))
		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}

type handler struct {
	svc *document.Service
	hub *Hub
}

// authToken extracts the token from an "Authorization: Token <value>"
// header. Empty means anonymous.
func authToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(auth, "Token "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// etag derives a cache validator from the version and content so either
// kind of change invalidates it.
func etag(version int, content string) string {
	sum := sha256.Sum256([]byte(strconv.Itoa(version) + "\n" + content))
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

func (h *handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.Create(r.Context(), req.Title, req.Content, authToken(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeDocument(w, http.StatusCreated, doc)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if r.Header.Get("If-None-Match") == etag(doc.Version, doc.Content) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

func (h *handler) renameDocument(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.Rename(r.Context(), r.PathValue("id"), req.Title, authToken(r), req.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

func (h *handler) applyChanges(w http.ResponseWriter, r *http.Request) {
	var req changesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.ApplyChanges(r.Context(), r.PathValue("id"), req.Changes, authToken(r), req.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

func (h *handler) listChanges(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	recs, err := h.svc.History(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handler) previewChanges(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Preview(r.Context(), r.PathValue("id"), req.Changes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) updateContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.svc.UpdateFromFullText(r.Context(), r.PathValue("id"), req.Content, authToken(r), req.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeDocument(w, http.StatusOK, updated)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// writeDocument sends a document snapshot with its entity tag. Every
// response carrying a full document includes the tag so mutating callers
// can revalidate without a follow-up GET.
func writeDocument(w http.ResponseWriter, status int, doc *store.Document) {
	w.Header().Set("ETag", etag(doc.Version, doc.Content))
	writeJSON(w, status, doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps document service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *document.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           err.Error(),
			"current_version": conflict.CurrentVersion,
		})
		return
	}
	var ve *document.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
