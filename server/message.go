package server

import (
	"encoding/json"

	"github.com/yashnalla/document-service-sub000/document"
)

// Message types exchanged over WebSocket.
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgDoc      = "doc"
	MsgChange   = "change"
	MsgAck      = "ack"
	MsgTyping   = "typing"
	MsgCursor   = "cursor"
	MsgPresence = "presence"
	MsgError    = "error"
)

// ClientMessage is a message from client to server.
type ClientMessage struct {
	Type    string               `json:"type"`
	DocID   string               `json:"doc_id,omitempty"`
	Version int                  `json:"version"`
	Changes []document.RawChange `json:"changes,omitempty"`
	Typing  bool                 `json:"typing,omitempty"`
	Cursor  int                  `json:"cursor,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type           string               `json:"type"`
	DocID          string               `json:"doc_id,omitempty"`
	Title          string               `json:"title,omitempty"`
	Content        string               `json:"content"`
	Version        int                  `json:"version"`
	Changes        []document.RawChange `json:"changes,omitempty"`
	ClientID       string               `json:"client_id,omitempty"`
	Name           string               `json:"name,omitempty"`
	Color          string               `json:"color,omitempty"`
	Typing         bool                 `json:"typing,omitempty"`
	Cursor         int                  `json:"cursor,omitempty"`
	Message        string               `json:"message,omitempty"`
	CurrentVersion int                  `json:"current_version,omitempty"`
	Clients        []ClientInfo         `json:"clients,omitempty"`
}

// ClientInfo describes a connected user for presence lists.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
