package undo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/umeshbist27/notetaking/internal/editor"
	"github.com/umeshbist27/notetaking/internal/schedule"
	"github.com/umeshbist27/notetaking/internal/undo"
)

// fakeEditor records what the controller does to it.
type fakeEditor struct {
	content   string
	sets      []string
	bookmark  string
	restored  []editor.Bookmark
	selectEnd int
}

func newFakeEditor() *fakeEditor {
	return &fakeEditor{bookmark: "cursor"}
}

func (f *fakeEditor) SetContent(content string) {
	f.content = content
	f.sets = append(f.sets, content)
}

func (f *fakeEditor) Bookmark() editor.Bookmark {
	return f.bookmark
}

func (f *fakeEditor) MoveToBookmark(b editor.Bookmark) {
	f.restored = append(f.restored, b)
}

func (f *fakeEditor) SelectEnd() {
	f.selectEnd++
}

func TestController_UndoRedoScenario(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	capture(reg, clock, "n1", "B")
	require.Equal(t, []string{"A", "B"}, mustStack(t, reg, "n1").Undo)

	require.True(t, ctrl.Undo("n1", ed))
	require.Equal(t, "A", ed.content)

	st := mustStack(t, reg, "n1")
	require.Equal(t, []string{"A"}, st.Undo)
	require.Equal(t, []string{"B"}, st.Redo)
	require.Equal(t, "A", st.LastSaved)

	clock.Advance(undo.DefaultGraceDelay)

	require.True(t, ctrl.Redo("n1", ed))
	require.Equal(t, "B", ed.content)

	st = mustStack(t, reg, "n1")
	require.Equal(t, []string{"A", "B"}, st.Undo)
	require.Empty(t, st.Redo)
	require.Equal(t, "B", st.LastSaved)
}

func TestController_UndoNeverPopsSeed(t *testing.T) {
	t.Parallel()

	reg, _ := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")

	require.False(t, ctrl.CanUndo("n1"))
	require.False(t, ctrl.Undo("n1", ed))
	require.Empty(t, ed.sets)
	require.Equal(t, []string{"A"}, mustStack(t, reg, "n1").Undo)

	state, _ := reg.Gate().State()
	require.Equal(t, undo.Idle, state)
}

func TestController_UnknownDocument(t *testing.T) {
	t.Parallel()

	reg, _ := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	require.False(t, ctrl.Undo("missing", ed))
	require.False(t, ctrl.Redo("missing", ed))
	require.False(t, ctrl.CanRedo("missing"))
	require.Empty(t, ed.sets)
}

func TestController_RedoWithEmptyRedoStack(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	capture(reg, clock, "n1", "B")

	require.False(t, ctrl.Redo("n1", ed))
	require.Empty(t, ed.sets)
}

func TestController_GateSuppressesCapture(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	capture(reg, clock, "n1", "B")

	require.True(t, ctrl.Undo("n1", ed))

	state, doc := reg.Gate().State()
	require.Equal(t, undo.ApplyingUndo, state)
	require.Equal(t, "n1", doc)

	// The editor echoing the undo back must not be recorded.
	reg.Capture("n1", ed.content)
	reg.Capture("n1", "C")
	require.False(t, reg.CapturePending("n1"))

	clock.Advance(2 * time.Second)

	st := mustStack(t, reg, "n1")
	require.Equal(t, []string{"A"}, st.Undo)
	require.Equal(t, []string{"B"}, st.Redo)

	state, _ = reg.Gate().State()
	require.Equal(t, undo.Idle, state)
}

func TestController_GateReleasesAfterGrace(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	capture(reg, clock, "n1", "B")
	capture(reg, clock, "n1", "C")

	require.True(t, ctrl.Undo("n1", ed))
	clock.Advance(50 * time.Millisecond)

	// A second undo inside the grace window extends the hold.
	require.True(t, ctrl.Undo("n1", ed))
	clock.Advance(60 * time.Millisecond)
	require.True(t, reg.Gate().Suppresses("n1"))

	clock.Advance(40 * time.Millisecond)
	require.False(t, reg.Gate().Suppresses("n1"))

	capture(reg, clock, "n1", "D")
	require.Equal(t, []string{"A", "D"}, mustStack(t, reg, "n1").Undo)
}

func TestController_GateIsScopedToDocument(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	reg.Init("n2", "X")
	capture(reg, clock, "n1", "B")

	require.True(t, ctrl.Undo("n1", ed))
	require.True(t, reg.Gate().Suppresses("n1"))
	require.False(t, reg.Gate().Suppresses("n2"))
}

func TestController_UndoDropsPendingCapture(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	capture(reg, clock, "n1", "B")
	reg.Capture("n1", "BC")

	require.True(t, ctrl.Undo("n1", ed))
	clock.Advance(2 * time.Second)

	st := mustStack(t, reg, "n1")
	require.Equal(t, []string{"A"}, st.Undo)
	require.Equal(t, "A", ed.content)
}

func TestController_SelectionContinuations(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)
	ctrl := undo.NewController(reg)
	ed := newFakeEditor()

	reg.Init("n1", "A")
	capture(reg, clock, "n1", "B")

	require.True(t, ctrl.Undo("n1", ed))
	require.Empty(t, ed.restored, "selection restore must wait for the next tick")

	clock.Flush()
	require.Equal(t, []editor.Bookmark{"cursor"}, ed.restored)

	require.True(t, ctrl.Redo("n1", ed))
	require.Equal(t, 0, ed.selectEnd)

	clock.Flush()
	require.Equal(t, 1, ed.selectEnd)
}

func TestController_WithBuffer(t *testing.T) {
	t.Parallel()

	clock := schedule.NewManual()
	reg := undo.NewRegistry(undo.Config{Scheduler: clock})
	ctrl := undo.NewController(reg)
	buf := editor.NewBuffer(clock)
	buf.Init("<p>one</p>")

	// Wire the buffer the way an editing session does: every change is
	// offered to the registry.
	buf.OnChange(func(c editor.Change) { reg.Capture("n1", c.Content) })

	reg.Init("n1", buf.Content())
	buf.Input("<p>one two</p>", editor.Selection{Start: 7, End: 7})
	clock.Advance(time.Second)

	require.Equal(t, []string{"<p>one</p>", "<p>one two</p>"}, mustStack(t, reg, "n1").Undo)

	require.True(t, ctrl.Undo("n1", buf))
	clock.Advance(time.Second)

	require.Equal(t, "<p>one</p>", buf.Content())
	require.Equal(t, editor.Selection{Start: 7, End: 7}, buf.Selection())

	st := mustStack(t, reg, "n1")
	require.Equal(t, []string{"<p>one</p>"}, st.Undo)
	require.Equal(t, []string{"<p>one two</p>"}, st.Redo)
}
