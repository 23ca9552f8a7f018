package ws

import (
	"time"

	"github.com/umeshbist27/notetaking/internal/editor"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeOpen  MessageType = "open"  // Client opens a note, or a blank one
	MessageTypeInput MessageType = "input" // Client reports editor content
	MessageTypeTitle MessageType = "title" // Client reports the title
	MessageTypeUndo  MessageType = "undo"  // Client asks for an undo
	MessageTypeRedo  MessageType = "redo"  // Client asks for a redo
	MessageTypeKey   MessageType = "key"   // Client forwards a key chord
	MessageTypeSync  MessageType = "sync"  // Client requests current state

	// Server to Client messages.
	MessageTypeState   MessageType = "state"   // Server sends full editor state
	MessageTypeAck     MessageType = "ack"     // Server confirms a request
	MessageTypeSaved   MessageType = "saved"   // Server shows or hides the saved indicator
	MessageTypeError   MessageType = "error"   // Server reports an error
	MessageTypeUpdated MessageType = "updated" // Server reports a note changed
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// OpenPayload selects the note to edit. An empty NoteID opens a blank note.
type OpenPayload struct {
	NoteID string `json:"noteId,omitempty"`
}

// InputPayload carries the editor content after a user edit.
type InputPayload struct {
	Content   string           `json:"content"`
	Selection editor.Selection `json:"selection"`
}

// TitlePayload carries the title after a user edit.
type TitlePayload struct {
	Title string `json:"title"`
}

// KeyPayload carries a key chord such as "ctrl+z".
type KeyPayload struct {
	Chord string `json:"chord"`
}

// AckPayload confirms a request. Applied is false for undo, redo or key
// requests that had nothing to do.
type AckPayload struct {
	Type    MessageType `json:"type"`
	Applied bool        `json:"applied"`
}

// StatePayload sends the full editor state.
type StatePayload struct {
	NoteID    string           `json:"noteId"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Selection editor.Selection `json:"selection"`
	CanUndo   bool             `json:"canUndo"`
	CanRedo   bool             `json:"canRedo"`
	Saved     bool             `json:"saved"`
	Dirty     bool             `json:"dirty"`
}

// SavedPayload toggles the saved indicator.
type SavedPayload struct {
	NoteID    string    `json:"noteId"`
	Visible   bool      `json:"visible"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// UpdatedPayload reports that a note was saved or deleted.
type UpdatedPayload struct {
	NoteID    string    `json:"noteId"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// ErrorPayload reports an error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeSaveFailed     = "save_failed"
	ErrorCodeInternalError  = "internal_error"
)
