package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/yashnalla/document-service-sub000/document"
	"github.com/yashnalla/document-service-sub000/store"
)

type joinRequest struct {
	client *Client
	docID  string
}

// Hub routes clients to per-document sessions. Documents are created
// through the REST API; joining an unknown document is rejected rather
// than creating one implicitly.
type Hub struct {
	svc      *document.Service
	sessions map[string]*Session
	mu       sync.RWMutex

	joinDoc chan joinRequest
}

func NewHub(svc *document.Service) *Hub {
	return &Hub{
		svc:      svc,
		sessions: make(map[string]*Session),
		joinDoc:  make(chan joinRequest, 64),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for req := range h.joinDoc {
		h.handleJoinDoc(req)
	}
}

func (h *Hub) handleJoinDoc(req joinRequest) {
	h.mu.Lock()
	s, ok := h.sessions[req.docID]
	if !ok {
		if _, err := h.svc.Get(context.Background(), req.docID); err != nil {
			h.mu.Unlock()
			if errors.Is(err, store.ErrNotFound) {
				req.client.sendError("document not found")
			} else {
				log.Printf("hub: load doc %q: %v", req.docID, err)
				req.client.sendError("failed to load document")
			}
			return
		}

		s = newSession(req.docID, h.svc)
		h.sessions[req.docID] = s
		go s.Run()
	}
	h.mu.Unlock()

	s.join <- req.client
}

// GetSession returns the session for a document, if active.
func (h *Hub) GetSession(docID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[docID]
}
