package autosave_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/umeshbist27/notetaking/internal/autosave"
	"github.com/umeshbist27/notetaking/internal/notes"
	"github.com/umeshbist27/notetaking/internal/schedule"
)

type recorder struct {
	saves  []notes.Note
	events []autosave.Event
	err    error
	panic  any
}

func (r *recorder) save(n notes.Note) error {
	if r.panic != nil {
		panic(r.panic)
	}

	if r.err != nil {
		return r.err
	}

	r.saves = append(r.saves, n)

	return nil
}

func (r *recorder) kinds() []autosave.EventKind {
	kinds := make([]autosave.EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}

	return kinds
}

func newPipeline(t *testing.T) (*autosave.Pipeline, *schedule.Manual, *recorder) {
	t.Helper()

	clock := schedule.NewManual()
	rec := &recorder{}
	p := autosave.New(autosave.Config{
		Scheduler: clock,
		Save:      rec.save,
		Notify:    func(e autosave.Event) { rec.events = append(rec.events, e) },
	})

	return p, clock, rec
}

type fakeReader struct {
	ready   bool
	content string
}

func (f *fakeReader) Ready() bool     { return f.ready }
func (f *fakeReader) Content() string { return f.content }

var original = notes.Note{ID: "n1", UserID: "alice", Title: "T", Content: "<p>C</p>"}

func TestPipeline_UnchangedInputNeverSaves(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Title("  T ")
	p.Content(`<p data-mce-selected="1" style="color: red">C</p>`)
	p.Content("  <p>C</p>\n")
	clock.Advance(time.Minute)

	require.Empty(t, rec.saves)
	require.Empty(t, rec.events)
	require.False(t, p.Pending())
}

func TestPipeline_SavesOncePerWindow(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	for _, c := range []string{"<p>C1</p>", "<p>C12</p>", "<p>C123</p>"} {
		p.Content(c)
		clock.Advance(400 * time.Millisecond)
	}

	require.Empty(t, rec.saves)

	clock.Advance(100 * time.Millisecond)

	require.Len(t, rec.saves, 1)
	require.Equal(t, "<p>C123</p>", rec.saves[0].Content)

	clock.Advance(time.Minute)
	require.Len(t, rec.saves, 1)
}

func TestPipeline_TitleChangeSaves(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Title("  New title ")
	clock.Advance(autosave.DefaultDelay)

	require.Len(t, rec.saves, 1)

	saved := rec.saves[0]
	require.Equal(t, "New title", saved.Title)
	require.Equal(t, "<p>C</p>", saved.Content)
	require.Equal(t, "n1", saved.ID)
	require.Equal(t, "alice", saved.UserID)
}

func TestPipeline_PayloadCarriesImageURL(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Content(`<p>x</p><img alt="a" src="https://cdn/one.png"><img src="https://cdn/two.png">`)
	clock.Advance(autosave.DefaultDelay)

	require.Len(t, rec.saves, 1)
	require.Equal(t, "https://cdn/one.png", rec.saves[0].ImageURL)
}

func TestPipeline_NeverSavesEmptyNote(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Title("   ")
	p.Content(" \n ")
	clock.Advance(time.Minute)

	require.Empty(t, rec.saves)
	require.Empty(t, rec.events)
}

func TestPipeline_NoSaveWithoutTyping(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	reader := &fakeReader{ready: true, content: "<p>changed by someone else</p>"}
	p.AttachEditor(reader)
	p.Activate(original)

	clock.Advance(time.Minute)

	require.Empty(t, rec.saves)
	require.False(t, p.HasTyped())
}

func TestPipeline_ReadsEditorWhenReady(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	reader := &fakeReader{content: "<p>from editor</p>"}
	p.AttachEditor(reader)
	p.Activate(original)

	// Not ready: the last content state is used.
	p.Content("<p>from state</p>")
	clock.Advance(autosave.DefaultDelay)

	reader.ready = true
	p.Title("T2")
	clock.Advance(autosave.DefaultDelay)

	require.Len(t, rec.saves, 2)
	require.Equal(t, "<p>from state</p>", rec.saves[0].Content)
	require.Equal(t, "<p>from editor</p>", rec.saves[1].Content)
}

func TestPipeline_ActivateCancelsPendingSave(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Content("<p>typed into n1</p>")
	clock.Advance(200 * time.Millisecond)

	p.Activate(notes.Note{ID: "n2", Title: "Other"})
	clock.Advance(time.Minute)

	require.Empty(t, rec.saves)
	require.False(t, p.HasTyped())
	require.Equal(t, "n2", p.Original().ID)
}

func TestPipeline_SavedIndicator(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Content("<p>D</p>")
	clock.Advance(autosave.DefaultDelay)

	require.True(t, p.SavedVisible())
	require.Equal(t, []autosave.EventKind{autosave.EventSaved}, rec.kinds())

	clock.Advance(999 * time.Millisecond)
	require.True(t, p.SavedVisible())

	clock.Advance(time.Millisecond)
	require.False(t, p.SavedVisible())
	require.Equal(t, []autosave.EventKind{autosave.EventSaved, autosave.EventSavedCleared}, rec.kinds())
}

func TestPipeline_SavedIndicatorRestartsOnNextSave(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Content("<p>D</p>")
	clock.Advance(autosave.DefaultDelay)

	p.Content("<p>DE</p>")
	clock.Advance(autosave.DefaultDelay)
	clock.Advance(700 * time.Millisecond)

	require.True(t, p.SavedVisible(), "second save must restart the indicator")

	clock.Advance(300 * time.Millisecond)
	require.False(t, p.SavedVisible())
	require.Equal(t, []autosave.EventKind{
		autosave.EventSaved,
		autosave.EventSaved,
		autosave.EventSavedCleared,
	}, rec.kinds())
}

func TestPipeline_SaveErrorIsReported(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	rec.err = errors.New("network down")
	p.Activate(original)

	p.Content("<p>D</p>")
	clock.Advance(autosave.DefaultDelay)

	require.Equal(t, []autosave.EventKind{autosave.EventSaveFailed}, rec.kinds())
	require.ErrorIs(t, rec.events[0].Err, rec.err)
	require.False(t, p.SavedVisible())

	// The pipeline keeps working after a failure.
	rec.err = nil
	p.Content("<p>DE</p>")
	clock.Advance(autosave.DefaultDelay)
	require.Len(t, rec.saves, 1)
}

func TestPipeline_SavePanicIsReported(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	rec.panic = "boom"
	p.Activate(original)

	p.Content("<p>D</p>")
	require.NotPanics(t, func() { clock.Advance(autosave.DefaultDelay) })

	require.Equal(t, []autosave.EventKind{autosave.EventSaveFailed}, rec.kinds())
	require.ErrorContains(t, rec.events[0].Err, "boom")
}

func TestPipeline_RebaseKeepsPendingSave(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Content("<p>D</p>")
	clock.Advance(autosave.DefaultDelay)
	require.Len(t, rec.saves, 1)

	p.Rebase(rec.saves[0])
	p.Content("<p>D</p> ")
	clock.Advance(autosave.DefaultDelay)

	require.Len(t, rec.saves, 1, "content equal to the rebased note is not saved again")

	p.Content("<p>DE</p>")
	clock.Advance(200 * time.Millisecond)
	p.Rebase(rec.saves[0])
	require.True(t, p.Pending())

	clock.Advance(autosave.DefaultDelay)
	require.Len(t, rec.saves, 2)
}

func TestPipeline_Close(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Content("<p>D</p>")
	clock.Advance(autosave.DefaultDelay)
	p.Content("<p>DE</p>")

	p.Close()
	clock.Advance(time.Minute)

	require.Len(t, rec.saves, 1)
	require.False(t, p.SavedVisible())
	require.Equal(t, 0, clock.Pending())
}

func TestPipeline_Flush(t *testing.T) {
	t.Parallel()

	p, clock, rec := newPipeline(t)
	p.Activate(original)

	p.Flush()
	require.Empty(t, rec.saves)

	p.Title("Flushed")
	p.Flush()

	require.Len(t, rec.saves, 1)
	require.False(t, p.Pending())

	clock.Advance(autosave.DefaultDelay)
	require.Len(t, rec.saves, 1)

	title, content := p.Editing()
	require.Equal(t, "Flushed", title)
	require.Equal(t, "<p>C</p>", content)
}
