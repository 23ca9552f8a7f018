package ws_test

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/umeshbist27/notetaking/internal/ws"
)

// fakeConn records what is written to it and replays queued messages.
type fakeConn struct {
	mu      sync.Mutex
	written []json.RawMessage
	closed  bool

	incoming chan ws.Message
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan ws.Message, 10)}
}

func (f *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.written = append(f.written, data)

	return nil
}

func (f *fakeConn) ReadJSON(v any) error {
	msg, ok := <-f.incoming
	if !ok {
		return io.EOF
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.written)
}

// payloads decodes the payload of every written message of type typ.
func payloads[T any](t *testing.T, f *fakeConn, typ ws.MessageType) []T {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []T

	for _, raw := range f.written {
		var env struct {
			Type    ws.MessageType  `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &env))

		if env.Type != typ {
			continue
		}

		var p T
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		out = append(out, p)
	}

	return out
}

// editorClient registers a client following noteID.
func editorClient(hub *ws.Hub, id, noteID string) (*ws.Client, *fakeConn) {
	conn := newFakeConn()
	c := ws.NewClient(id, "user1", conn)
	hub.Register(c)
	hub.Follow(c, noteID)

	return c, conn
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()

	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestHub_NoteSavedReachesFollowers(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	_, a := editorClient(hub, "a", "n1")
	_, b := editorClient(hub, "b", "n1")
	_, other := editorClient(hub, "c", "n2")

	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.NoteUpdated(ws.UpdatedPayload{NoteID: "n1", Title: "Groceries", UpdatedAt: savedAt})

	eventually(t, func() bool { return a.count() == 1 && b.count() == 1 })

	want := ws.UpdatedPayload{NoteID: "n1", Title: "Groceries", UpdatedAt: savedAt}
	require.Equal(t, []ws.UpdatedPayload{want}, payloads[ws.UpdatedPayload](t, a, ws.MessageTypeUpdated))
	require.Equal(t, []ws.UpdatedPayload{want}, payloads[ws.UpdatedPayload](t, b, ws.MessageTypeUpdated))

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, other.count())
}

func TestHub_NoteDeletedDropsTitleAndTime(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	_, conn := editorClient(hub, "a", "n1")

	hub.NoteUpdated(ws.UpdatedPayload{
		NoteID:    "n1",
		Title:     "Groceries",
		UpdatedAt: time.Now(),
		Deleted:   true,
	})

	eventually(t, func() bool { return conn.count() == 1 })

	conn.mu.Lock()
	raw := string(conn.written[0])
	conn.mu.Unlock()

	require.JSONEq(t, `{"type":"updated","payload":{"noteId":"n1","deleted":true}}`, raw)
}

func TestHub_OpeningNewNoteStopsUpdates(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	c, conn := editorClient(hub, "a", "n1")
	require.Equal(t, 1, hub.Followers("n1"))

	// A blank note has no ID until its first save.
	hub.Follow(c, "")

	require.Empty(t, hub.Following(c))
	require.Zero(t, hub.Followers("n1"))
	require.Equal(t, 1, hub.Len())

	hub.NoteUpdated(ws.UpdatedPayload{NoteID: "n1", Title: "elsewhere"})

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, conn.count())

	// The first save assigns id-1 and the client starts following it.
	hub.Follow(c, "id-1")
	hub.NoteUpdated(ws.UpdatedPayload{NoteID: "id-1", Title: "saved"})

	eventually(t, func() bool { return conn.count() == 1 })
	require.Equal(t, "id-1", payloads[ws.UpdatedPayload](t, conn, ws.MessageTypeUpdated)[0].NoteID)
}

func TestHub_SwitchingNotesMovesFollower(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	c, _ := editorClient(hub, "a", "n1")
	editorClient(hub, "b", "n1")

	hub.Follow(c, "n2")
	hub.Follow(c, "n2")

	require.Equal(t, "n2", hub.Following(c))
	require.Equal(t, 1, hub.Followers("n1"))
	require.Equal(t, 1, hub.Followers("n2"))
}

func TestHub_UnregisterForgetsClient(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	c, conn := editorClient(hub, "a", "n1")

	hub.Unregister(c)

	require.Zero(t, hub.Len())
	require.Zero(t, hub.Followers("n1"))

	// Events for the connection's last note can race its teardown.
	hub.Follow(c, "n1")
	hub.NoteUpdated(ws.UpdatedPayload{NoteID: "n1"})

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, conn.count())
	require.Zero(t, hub.Followers("n1"))
}

func TestHub_CloseAllKeepsRegistrations(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	_, a := editorClient(hub, "a", "n1")
	_, b := editorClient(hub, "b", "")

	hub.CloseAll()

	require.True(t, a.isClosed())
	require.True(t, b.isClosed())
	require.Equal(t, 2, hub.Len())
}

func TestHub_ConcurrentFollowAndUpdate(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	notes := []string{"n1", "n2", ""}

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			c := ws.NewClient(string(rune('a'+i)), "user1", newFakeConn())
			hub.Register(c)

			for j := range 30 {
				hub.Follow(c, notes[(i+j)%len(notes)])
				hub.NoteUpdated(ws.UpdatedPayload{NoteID: notes[j%2]})
			}

			hub.Unregister(c)
		}()
	}

	wg.Wait()

	require.Zero(t, hub.Len())
	require.Zero(t, hub.Followers("n1"))
	require.Zero(t, hub.Followers("n2"))
}
