package server

import (
	"context"
	"errors"
	"log"

	"github.com/yashnalla/document-service-sub000/document"
)

type clientFrame struct {
	client *Client
	msg    ClientMessage
}

// Session fans a single document's real-time traffic out to its connected
// clients. All frames are serialized through one goroutine; the document
// service remains the only mutation path, so the session never holds
// authoritative text itself.
type Session struct {
	docID   string
	svc     *document.Service
	clients map[*Client]bool

	incoming chan clientFrame
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
}

func newSession(docID string, svc *document.Service) *Session {
	return &Session{
		docID:    docID,
		svc:      svc,
		clients:  make(map[*Client]bool),
		incoming: make(chan clientFrame, 64),
		join:     make(chan *Client, 16),
		leave:    make(chan *Client, 16),
		stop:     make(chan struct{}),
	}
}

// Run is the session's main loop.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case f := <-s.incoming:
			s.handleFrame(f)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleJoin(c *Client) {
	s.clients[c] = true
	c.mu.Lock()
	prev := c.session
	c.session = s
	c.mu.Unlock()

	// A client switching documents must not linger in the old session's
	// client set, or its broadcasts would hit this client's channel after
	// disconnect.
	if prev != nil && prev != s {
		prev.leave <- c
	}

	doc, err := s.svc.Get(context.Background(), s.docID)
	if err != nil {
		log.Printf("session %s: load on join: %v", s.docID, err)
		c.sendError("failed to load document")
		return
	}

	// Current state plus the presence list for the joining client.
	c.sendMsg(ServerMessage{
		Type:    MsgDoc,
		DocID:   s.docID,
		Title:   doc.Title,
		Content: doc.Content,
		Version: doc.Version,
		Clients: s.clientInfos(),
	})

	for other := range s.clients {
		if other != c {
			other.sendMsg(ServerMessage{
				Type:     MsgPresence,
				ClientID: c.ID,
				Name:     c.Name,
				Color:    c.Color,
			})
		}
	}
}

func (s *Session) handleLeave(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)

	// Only a true departure tears the client down. A client that already
	// moved to another session keeps its channel open for that session.
	c.mu.Lock()
	departed := c.session == s
	if departed {
		c.session = nil
	}
	c.mu.Unlock()
	if departed {
		close(c.send)
	}

	for other := range s.clients {
		other.sendMsg(ServerMessage{
			Type:     MsgLeave,
			ClientID: c.ID,
		})
	}
}

func (s *Session) handleFrame(f clientFrame) {
	switch f.msg.Type {
	case MsgChange:
		s.handleChange(f)
	case MsgTyping:
		s.broadcastExcept(f.client, ServerMessage{
			Type:     MsgTyping,
			ClientID: f.client.ID,
			Name:     f.client.Name,
			Typing:   f.msg.Typing,
		})
	case MsgCursor:
		s.broadcastExcept(f.client, ServerMessage{
			Type:     MsgCursor,
			ClientID: f.client.ID,
			Color:    f.client.Color,
			Cursor:   f.msg.Cursor,
		})
	}
}

func (s *Session) handleChange(f clientFrame) {
	doc, err := s.svc.ApplyChanges(context.Background(), s.docID, f.msg.Changes, f.client.token, f.msg.Version)
	if err != nil {
		var conflict *document.ConflictError
		if errors.As(err, &conflict) {
			// The client is behind. Tell it the current version so it can
			// re-fetch and resubmit.
			f.client.sendMsg(ServerMessage{
				Type:           MsgError,
				Message:        err.Error(),
				CurrentVersion: conflict.CurrentVersion,
			})
			return
		}
		var ve *document.ValidationError
		if errors.As(err, &ve) {
			f.client.sendError(err.Error())
			return
		}
		log.Printf("session %s: apply: %v", s.docID, err)
		f.client.sendError("failed to apply changes")
		return
	}

	f.client.sendMsg(ServerMessage{
		Type:    MsgAck,
		DocID:   s.docID,
		Version: doc.Version,
	})
	s.broadcastExcept(f.client, ServerMessage{
		Type:     MsgChange,
		DocID:    s.docID,
		Version:  doc.Version,
		Changes:  f.msg.Changes,
		ClientID: f.client.ID,
	})
}

func (s *Session) broadcastExcept(sender *Client, msg ServerMessage) {
	for c := range s.clients {
		if c != sender {
			c.sendMsg(msg)
		}
	}
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, len(s.clients))
	for c := range s.clients {
		infos = append(infos, c.Info())
	}
	return infos
}
