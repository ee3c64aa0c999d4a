// Package logview provides the persistent log surface the panel
// controller appends simulator output to. It is the output-channel
// abstraction: serve mirrors it to stderr and streams it to attached
// pages, tests inspect it in memory.
package logview

import (
	"fmt"
	"io"
	"sync"
)

// Channel is an appendable log surface.
type Channel interface {
	// Clear discards all content.
	Clear()
	// AppendLine appends one line.
	AppendLine(line string)
	// Show surfaces the log to the user.
	Show()
}

// EventKind identifies a Buffer event.
type EventKind int

const (
	EventClear EventKind = iota
	EventLine
	EventShow
)

// Event is a Buffer change notification.
type Event struct {
	Kind EventKind
	Line string
}

// Buffer is an in-memory Channel that records lines and notifies
// subscribers of changes.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	shows int
	subs  []func(Event)
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Subscribe registers a change callback. Callbacks run synchronously
// on the mutating goroutine.
func (b *Buffer) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *Buffer) notify(ev Event) {
	for _, fn := range b.subs {
		fn(ev)
	}
}

// Clear discards all content.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
	b.notify(Event{Kind: EventClear})
}

// AppendLine appends one line.
func (b *Buffer) AppendLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	b.notify(Event{Kind: EventLine, Line: line})
}

// Show surfaces the log.
func (b *Buffer) Show() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shows++
	b.notify(Event{Kind: EventShow})
}

// Lines returns a copy of the buffered lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// ShowCount returns how many times Show was called since creation.
func (b *Buffer) ShowCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shows
}

// Writer is a Channel that writes prefixed lines to an io.Writer.
// Clear and Show are no-ops beyond a marker line.
type Writer struct {
	mu   sync.Mutex
	name string
	w    io.Writer
}

// NewWriter creates a Writer channel with the given prefix name.
func NewWriter(name string, w io.Writer) *Writer {
	return &Writer{name: name, w: w}
}

func (w *Writer) Clear() {}

func (w *Writer) AppendLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.w, "%s: %s\n", w.name, line)
}

func (w *Writer) Show() {}

// Multi fans every operation out to all given channels.
func Multi(channels ...Channel) Channel {
	return multi(channels)
}

type multi []Channel

func (m multi) Clear() {
	for _, c := range m {
		c.Clear()
	}
}

func (m multi) AppendLine(line string) {
	for _, c := range m {
		c.AppendLine(line)
	}
}

func (m multi) Show() {
	for _, c := range m {
		c.Show()
	}
}
