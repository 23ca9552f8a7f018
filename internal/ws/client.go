package ws

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Conn is the part of a WebSocket connection a Client needs.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Client is one connected editor. Send is safe for concurrent use; Receive
// must only be called from the connection's read loop.
type Client struct {
	ID     string
	UserID string

	writeMu sync.Mutex
	conn    Conn
}

// NewClient wraps conn.
func NewClient(id, userID string, conn Conn) *Client {
	return &Client{ID: id, UserID: userID, conn: conn}
}

// Send writes msg to the connection.
func (c *Client) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(msg)
}

// SendError writes an error message with the given code.
func (c *Client) SendError(code, message string) error {
	return c.Send(Message{Type: MessageTypeError, Payload: ErrorPayload{Code: code, Message: message}})
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// payloadDecoders lists the messages a client may send. A nil decoder
// means the message carries no payload.
var payloadDecoders = map[MessageType]func(json.RawMessage) (any, error){
	MessageTypeOpen:  decodeAs[OpenPayload],
	MessageTypeInput: decodeAs[InputPayload],
	MessageTypeTitle: decodeAs[TitlePayload],
	MessageTypeKey:   decodeAs[KeyPayload],
	MessageTypeUndo:  nil,
	MessageTypeRedo:  nil,
	MessageTypeSync:  nil,
}

// Receive reads the next message. Connection errors are returned as is; an
// unknown type or a malformed payload is an *InvalidMessageError, after
// which the connection is still usable.
func (c *Client) Receive() (Message, error) {
	var envelope struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := c.conn.ReadJSON(&envelope); err != nil {
		return Message{}, err
	}

	decode, known := payloadDecoders[envelope.Type]
	if !known {
		return Message{}, &InvalidMessageError{
			Type: envelope.Type,
			Err:  fmt.Errorf("unknown message type %q", envelope.Type),
		}
	}

	msg := Message{Type: envelope.Type}
	if decode == nil {
		return msg, nil
	}

	payload, err := decode(envelope.Payload)
	if err != nil {
		return Message{}, &InvalidMessageError{Type: envelope.Type, Err: err}
	}

	msg.Payload = payload

	return msg, nil
}

// decodeAs unmarshals raw into a T. A missing payload is the zero T.
func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	return v, nil
}

// InvalidMessageError reports a message that could not be decoded.
type InvalidMessageError struct {
	Type MessageType
	Err  error
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid %q message: %v", e.Type, e.Err)
}

func (e *InvalidMessageError) Unwrap() error {
	return e.Err
}
