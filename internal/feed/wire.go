package feed

import (
	"net/url"

	"github.com/Makepad-fr/basket/internal/model"
)

// Message types pushed over the room websocket.
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// Message is one websocket frame from server to client.
type Message struct {
	Type      string         `json:"type"`
	Room      string         `json:"room,omitempty"`
	Items     model.Snapshot `json:"items,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// ItemsResponse is the body of GET /api/rooms/:room/items.
type ItemsResponse struct {
	Room  string         `json:"room"`
	Items model.Snapshot `json:"items"`
}

// CreateResponse is the body of POST /api/rooms/:room/items.
type CreateResponse struct {
	ID string `json:"id"`
}

// ErrorBody is the body of every non-2xx API response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ItemsPath is the collection path for a room.
func ItemsPath(room string) string {
	return "/api/rooms/" + url.PathEscape(room) + "/items"
}

// ItemPath is the path of one record.
func ItemPath(room, id string) string {
	return ItemsPath(room) + "/" + url.PathEscape(id)
}

// SocketPath is the websocket endpoint streaming a room's snapshots.
func SocketPath(room string) string {
	return "/api/rooms/" + url.PathEscape(room) + "/ws"
}
