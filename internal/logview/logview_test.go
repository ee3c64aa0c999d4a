package logview

import (
	"bytes"
	"reflect"
	"testing"
)

func TestBufferAppendAndClear(t *testing.T) {
	b := NewBuffer()

	b.AppendLine("a")
	b.AppendLine("b")

	if got := b.Lines(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("unexpected lines %v", got)
	}

	b.Clear()
	if got := b.Lines(); len(got) != 0 {
		t.Errorf("expected empty after clear, got %v", got)
	}
}

func TestBufferSubscribe(t *testing.T) {
	b := NewBuffer()

	var events []Event
	b.Subscribe(func(ev Event) { events = append(events, ev) })

	b.AppendLine("x")
	b.Show()
	b.Clear()

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != EventLine || events[0].Line != "x" {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].Kind != EventShow {
		t.Errorf("unexpected second event %+v", events[1])
	}
	if events[2].Kind != EventClear {
		t.Errorf("unexpected third event %+v", events[2])
	}
	if b.ShowCount() != 1 {
		t.Errorf("expected 1 show, got %d", b.ShowCount())
	}
}

func TestWriterPrefixesLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter("serial", &buf)

	w.AppendLine("hello")

	if buf.String() != "serial: hello\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewBuffer(), NewBuffer()
	m := Multi(a, b)

	m.AppendLine("x")
	m.Show()

	for i, buf := range []*Buffer{a, b} {
		if got := buf.Lines(); len(got) != 1 || got[0] != "x" {
			t.Errorf("buffer %d: unexpected lines %v", i, got)
		}
		if buf.ShowCount() != 1 {
			t.Errorf("buffer %d: expected 1 show", i)
		}
	}
}
