package schedule_test

import (
	"testing"
	"time"

	"github.com/umeshbist27/notetaking/internal/schedule"
)

func TestDebouncer_LastTriggerWins(t *testing.T) {
	t.Parallel()

	clock := schedule.NewManual()
	d := schedule.NewDebouncer[string](clock, time.Second)

	var got []string

	for _, v := range []string{"a", "b", "c"} {
		d.Trigger("doc1", func() { got = append(got, v) })
		clock.Advance(500 * time.Millisecond)
	}

	if len(got) != 0 {
		t.Fatalf("expected nothing within the quiet period, got %v", got)
	}

	if !d.Pending("doc1") {
		t.Error("expected doc1 to be pending")
	}

	clock.Advance(500 * time.Millisecond)

	if len(got) != 1 || got[0] != "c" {
		t.Errorf("expected only the last trigger to run, got %v", got)
	}

	if d.Pending("doc1") {
		t.Error("expected slot to be empty after firing")
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	clock := schedule.NewManual()
	d := schedule.NewDebouncer[string](clock, time.Second)
	fired := map[string]int{}

	d.Trigger("a", func() { fired["a"]++ })
	d.Trigger("b", func() { fired["b"]++ })

	if d.Len() != 2 {
		t.Errorf("expected 2 pending keys, got %d", d.Len())
	}

	d.Cancel("a")
	d.Cancel("a")
	clock.Advance(time.Second)

	if fired["a"] != 0 || fired["b"] != 1 {
		t.Errorf("unexpected fire counts %v", fired)
	}
}

func TestDebouncer_CancelAll(t *testing.T) {
	t.Parallel()

	clock := schedule.NewManual()
	d := schedule.NewDebouncer[int](clock, 10*time.Millisecond)
	fired := 0

	for i := range 5 {
		d.Trigger(i, func() { fired++ })
	}

	d.CancelAll()
	clock.Advance(time.Second)

	if fired != 0 {
		t.Errorf("expected no tasks to fire, got %d", fired)
	}

	if d.Len() != 0 {
		t.Errorf("expected no pending keys, got %d", d.Len())
	}
}

func TestDebouncer_RetriggerFromTask(t *testing.T) {
	t.Parallel()

	clock := schedule.NewManual()
	d := schedule.NewDebouncer[string](clock, 100*time.Millisecond)
	fired := 0

	var again func()
	again = func() {
		fired++
		if fired < 3 {
			d.Trigger("k", again)
		}
	}

	d.Trigger("k", again)
	clock.Advance(time.Second)

	if fired != 3 {
		t.Errorf("expected 3 runs, got %d", fired)
	}

	if d.Pending("k") {
		t.Error("expected nothing pending")
	}
}
