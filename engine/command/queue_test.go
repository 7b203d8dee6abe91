package command

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTarget(t *testing.T) (*Target, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	s := component.NewStore()
	idx := scene.NewIndex(s, scene.WithWorkers(1))
	return &Target{
		Store:  s,
		Tree:   transform.NewHierarchy(s, transform.WithSceneTracker(idx)),
		Scenes: idx,
		Active: &Active{},
		Log:    zap.New(core),
	}, logs
}

func record(name string, out *[]string) Command {
	return Func{Name: name, Fn: func(*Target) error {
		*out = append(*out, name)
		return nil
	}}
}

func TestQueueOrdering(t *testing.T) {
	q := NewQueue()
	tgt, _ := newTarget(t)
	var got []string
	q.Push(record("A", &got))
	q.Push(record("B", &got))
	q.Push(record("C", &got))

	if n := q.Drain(tgt); n != 0 {
		t.Errorf("expected nothing drained before swap, got %d", n)
	}
	q.Swap()
	if n := q.Drain(tgt); n != 3 {
		t.Errorf("expected 3 drained, got %d", n)
	}
	if fmt.Sprint(got) != "[A B C]" {
		t.Errorf("expected [A B C], got %v", got)
	}
	if n := q.Drain(tgt); n != 0 {
		t.Errorf("expected empty drain to be a no-op, got %d", n)
	}
}

func TestQueuePushAfterSwapWaits(t *testing.T) {
	q := NewQueue()
	tgt, _ := newTarget(t)
	var got []string
	q.Push(record("first", &got))
	q.Swap()
	q.Push(record("second", &got))
	q.Drain(tgt)
	if fmt.Sprint(got) != "[first]" {
		t.Fatalf("expected [first], got %v", got)
	}
	if q.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", q.Pending())
	}
	q.Swap()
	q.Drain(tgt)
	if fmt.Sprint(got) != "[first second]" {
		t.Errorf("expected [first second], got %v", got)
	}
}

type seqCommand struct {
	id   int
	seen map[int]int
}

func (c seqCommand) Kind() string { return "seq" }

func (c seqCommand) Execute(*Target) error {
	c.seen[c.id]++
	return nil
}

func TestQueueConcurrentPush(t *testing.T) {
	const producers, per = 10, 1000
	q := NewQueue()
	tgt, _ := newTarget(t)
	seen := make(map[int]int, producers*per)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				q.Push(seqCommand{id: p*per + i, seen: seen})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	total := 0
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		q.Swap()
		total += q.Drain(tgt)
	}
	// one more flip picks up whatever landed after the last swap
	q.Swap()
	total += q.Drain(tgt)

	if total != producers*per {
		t.Errorf("expected %d commands, got %d", producers*per, total)
	}
	if len(seen) != producers*per {
		t.Errorf("expected %d distinct commands, got %d", producers*per, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("command %d executed %d times", id, n)
		}
	}
}

func TestDrainClassifiesErrors(t *testing.T) {
	q := NewQueue()
	tgt, logs := newTarget(t)
	a := tgt.Store.Create(component.TypeTransform).Handle()

	q.PushAll(
		SetPosition{Handle: 9999},
		AddChild{Parent: a, Child: a},
		Func{Name: "external", Fn: func(*Target) error { return errors.New("disk on fire") }},
	)
	q.Swap()
	if n := q.Drain(tgt); n != 3 {
		t.Fatalf("expected 3 drained, got %d", n)
	}

	want := []zapcore.Level{zapcore.DebugLevel, zapcore.ErrorLevel, zapcore.WarnLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("expected %d log entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d: expected %s, got %s (%s)", i, want[i], e.Level, e.Message)
		}
	}
}

func TestDrainPanicsOnStructuralInDebug(t *testing.T) {
	q := NewQueue()
	tgt, _ := newTarget(t)
	tgt.Debug = true
	if _, err := tgt.Store.CreateWith(5, component.TypeMesh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Push(Create{Handle: 5, Type: component.TypeMesh})
	q.Swap()

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate create to panic in debug")
		}
	}()
	q.Drain(tgt)
}
