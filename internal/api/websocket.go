package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/umeshbist27/notetaking/internal/notes"
	"github.com/umeshbist27/notetaking/internal/schedule"
	"github.com/umeshbist27/notetaking/internal/session"
	"github.com/umeshbist27/notetaking/internal/ws"
)

// closeTimeout bounds the final save of a disconnecting client.
const closeTimeout = 15 * time.Second

// conn is one WebSocket client with its editing session and the loop the
// session runs on.
type conn struct {
	client *ws.Client
	sess   *session.Session
	loop   *schedule.Loop
	logger *slog.Logger
}

// handleWebSocket handles GET /ws?noteId={id}. The noteId parameter is
// optional; without it the client must send an open message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	userID := UserIDFromContext(r.Context())
	logger := loggerFrom(r.Context(), s.logger)

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)

		return
	}

	s.conns.Add(1)
	defer s.conns.Done()

	c, cleanup, err := s.setupConn(wsConn, userID, logger)
	if err != nil {
		logger.Error("failed to start session", "error", err)
		_ = wsConn.Close()

		return
	}

	defer cleanup()

	if noteID := r.URL.Query().Get("noteId"); noteID != "" {
		s.handleOpen(r.Context(), c, noteID)
	}

	s.handleMessages(r.Context(), c)
}

// setupConn registers the client, starts its loop and creates its session.
func (s *Server) setupConn(wsConn ws.Conn, userID string, logger *slog.Logger) (*conn, func(), error) {
	client := ws.NewClient(uuid.New().String(), userID, wsConn)
	logger = logger.With("client", client.ID)

	ctx, stop := context.WithCancel(context.Background())
	loop := schedule.NewLoop(logger)

	go func() { _ = loop.Run(ctx) }()

	c := &conn{client: client, loop: loop, logger: logger}

	sess, err := s.manager.Create(session.Config{
		ID:             client.ID,
		UserID:         userID,
		Scheduler:      loop,
		Saver:          s.notes,
		Keymap:         s.keys,
		Notify:         func(e session.Event) { s.notifyClient(c, e) },
		Logger:         logger,
		CaptureDelay:   s.editor.CaptureDelay,
		GraceDelay:     s.editor.GraceDelay,
		MaxDepth:       s.editor.MaxDepth,
		AutosaveDelay:  s.editor.AutosaveDelay,
		IndicatorDelay: s.editor.IndicatorDelay,
	})
	if err != nil {
		stop()

		return nil, nil, err
	}

	c.sess = sess
	s.hub.Register(client)

	cleanup := func() {
		// Remove posts Close, which saves pending edits; the empty task
		// after it returns once that has run.
		s.manager.Remove(client.ID)

		waitCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := loop.Do(waitCtx, func() {}); err != nil {
			logger.Warn("session did not close cleanly", "error", err)
		}

		cancel()
		stop()
		<-loop.Done()

		s.hub.Unregister(client)
		_ = client.Close()
	}

	return c, cleanup, nil
}

// handleMessages processes incoming messages until the client disconnects.
func (s *Server) handleMessages(ctx context.Context, c *conn) {
	for {
		msg, err := c.client.Receive()
		if err != nil {
			var invalid *ws.InvalidMessageError
			if errors.As(err, &invalid) {
				_ = c.client.SendError(ws.ErrorCodeInvalidMessage, invalid.Error())

				continue
			}

			return
		}

		switch msg.Type {
		case ws.MessageTypeOpen:
			payload, _ := msg.Payload.(ws.OpenPayload)
			s.handleOpen(ctx, c, payload.NoteID)
		case ws.MessageTypeInput:
			payload, _ := msg.Payload.(ws.InputPayload)
			s.handleEdit(ctx, c, msg.Type, func() error {
				return c.sess.Input(payload.Content, payload.Selection)
			})
		case ws.MessageTypeTitle:
			payload, _ := msg.Payload.(ws.TitlePayload)
			s.handleEdit(ctx, c, msg.Type, func() error {
				return c.sess.Title(payload.Title)
			})
		case ws.MessageTypeUndo:
			s.handleHistory(ctx, c, msg.Type, c.sess.Undo)
		case ws.MessageTypeRedo:
			s.handleHistory(ctx, c, msg.Type, c.sess.Redo)
		case ws.MessageTypeKey:
			payload, _ := msg.Payload.(ws.KeyPayload)
			s.handleHistory(ctx, c, msg.Type, func() (bool, error) {
				return c.sess.Key(payload.Chord)
			})
		case ws.MessageTypeSync:
			s.sendState(ctx, c)
		}
	}
}

// handleOpen loads noteID, or a blank note when it is empty or "new", into
// the session and sends the resulting state.
func (s *Server) handleOpen(ctx context.Context, c *conn, noteID string) {
	n := notes.Note{ID: notes.NewNoteID}

	if noteID != "" && noteID != notes.NewNoteID {
		loaded, err := s.notes.Get(ctx, c.client.UserID, noteID)
		if err != nil {
			s.sendNoteError(c, err)

			return
		}

		n = loaded
	}

	var openErr error

	err := c.loop.Do(ctx, func() {
		if openErr = c.sess.Open(n); openErr == nil {
			openErr = c.sess.Mount()
		}
	})
	if err = errors.Join(err, openErr); err != nil {
		s.sendSessionError(c, err)

		return
	}

	// A new note is followed once its first save gives it an ID.
	if n.IsNew() {
		s.hub.Follow(c.client, "")
	} else {
		s.hub.Follow(c.client, n.ID)
	}

	s.sendState(ctx, c)
}

// handleEdit applies a user edit on the session loop and acknowledges it.
func (s *Server) handleEdit(ctx context.Context, c *conn, typ ws.MessageType, edit func() error) {
	var editErr error

	err := c.loop.Do(ctx, func() { editErr = edit() })
	if err = errors.Join(err, editErr); err != nil {
		s.sendSessionError(c, err)

		return
	}

	_ = c.client.Send(ws.Message{
		Type:    ws.MessageTypeAck,
		Payload: ws.AckPayload{Type: typ, Applied: true},
	})
}

// handleHistory runs an undo or redo, then sends the state once the
// selection continuations queued by it have run.
func (s *Server) handleHistory(ctx context.Context, c *conn, typ ws.MessageType, step func() (bool, error)) {
	var (
		applied bool
		stepErr error
	)

	err := c.loop.Do(ctx, func() { applied, stepErr = step() })
	if err = errors.Join(err, stepErr); err != nil {
		s.sendSessionError(c, err)

		return
	}

	_ = c.client.Send(ws.Message{
		Type:    ws.MessageTypeAck,
		Payload: ws.AckPayload{Type: typ, Applied: applied},
	})

	if applied {
		s.sendState(ctx, c)
	}
}

// sendState sends what the session's editor currently shows.
func (s *Server) sendState(ctx context.Context, c *conn) {
	var state session.State
	if err := c.loop.Do(ctx, func() { state = c.sess.State() }); err != nil {
		return
	}

	_ = c.client.Send(stateMessage(state))
}

// notifyClient forwards session events. It runs on the session loop.
func (s *Server) notifyClient(c *conn, e session.Event) {
	switch e.Kind {
	case session.EventSaved:
		s.hub.Follow(c.client, e.Note.ID)

		_ = c.client.Send(ws.Message{
			Type:    ws.MessageTypeSaved,
			Payload: ws.SavedPayload{NoteID: e.Note.ID, Visible: true, UpdatedAt: e.Note.UpdatedAt},
		})
	case session.EventSavedCleared:
		_ = c.client.Send(ws.Message{
			Type:    ws.MessageTypeSaved,
			Payload: ws.SavedPayload{NoteID: c.sess.ActiveID(), Visible: false},
		})
	case session.EventSaveFailed:
		c.logger.Warn("autosave failed", "note", e.Note.ID, "error", e.Err)
		_ = c.client.SendError(ws.ErrorCodeSaveFailed, e.Err.Error())
	case session.EventRefreshed:
		_ = c.client.Send(stateMessage(c.sess.State()))
	case session.EventRemoved:
		s.hub.Follow(c.client, "")
		_ = c.client.Send(stateMessage(c.sess.State()))
	}
}

func (s *Server) sendNoteError(c *conn, err error) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		_ = c.client.SendError(ws.ErrorCodeNotFound, "note not found")
	case errors.Is(err, notes.ErrNoteForbidden):
		_ = c.client.SendError(ws.ErrorCodeAccessDenied, "access denied")
	default:
		c.logger.Error("failed to load note", "error", err)
		_ = c.client.SendError(ws.ErrorCodeInternalError, "failed to load note")
	}
}

func (s *Server) sendSessionError(c *conn, err error) {
	switch {
	case errors.Is(err, session.ErrNotMounted):
		_ = c.client.SendError(ws.ErrorCodeInvalidMessage, "no note is open")
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, schedule.ErrLoopStopped):
		_ = c.client.SendError(ws.ErrorCodeInternalError, "session closed")
	default:
		c.logger.Error("session request failed", "error", err)
		_ = c.client.SendError(ws.ErrorCodeInternalError, err.Error())
	}
}

func stateMessage(st session.State) ws.Message {
	return ws.Message{
		Type: ws.MessageTypeState,
		Payload: ws.StatePayload{
			NoteID:    st.NoteID,
			Title:     st.Title,
			Content:   st.Content,
			Selection: st.Selection,
			CanUndo:   st.CanUndo,
			CanRedo:   st.CanRedo,
			Saved:     st.Saved,
			Dirty:     st.Dirty,
		},
	}
}
