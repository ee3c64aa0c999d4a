package server

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/simview/simview/internal/panel"
)

// Surface is the browser-backed webview surface. It implements both
// panel.Host and panel.Panel: the registry asks it for a panel, and
// the panel it hands out is the surface itself, publishing its
// document over HTTP and its message channel over websocket.
//
// A page reload drops and re-establishes the websocket without
// disposing the panel; only an explicit Dispose tears the instance
// down.
type Surface struct {
	mu         sync.Mutex
	html       string
	conns      map[*websocket.Conn]bool
	disposeFns []func()
	disposed   bool
}

// NewSurface creates an empty surface.
func NewSurface() *Surface {
	return &Surface{conns: make(map[*websocket.Conn]bool)}
}

// CreatePanel resets the surface for a fresh instance and hands it
// out as the panel handle.
func (s *Surface) CreatePanel(ctx context.Context) (panel.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = ""
	s.disposeFns = nil
	s.disposed = false
	return s, nil
}

// Reveal is a no-op for a browser surface; the page is wherever the
// user put the tab.
func (s *Surface) Reveal(preserveFocus bool) {}

// SetHTML replaces the document served at the panel root.
func (s *Surface) SetHTML(html string) {
	s.mu.Lock()
	s.html = html
	s.mu.Unlock()
}

// HTML returns the current panel document.
func (s *Surface) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html
}

// PostMessage fans the frame out to every attached page. A surface
// with no attached page is not an error.
func (s *Surface) PostMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("server: websocket write: %v", err)
		}
	}
	return nil
}

// OnDidDispose registers a dispose callback.
func (s *Surface) OnDidDispose(fn func()) {
	s.mu.Lock()
	s.disposeFns = append(s.disposeFns, fn)
	s.mu.Unlock()
}

// Dispose closes all attached pages and runs dispose callbacks once.
func (s *Surface) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	fns := s.disposeFns
	s.disposeFns = nil
	conns := s.conns
	s.conns = make(map[*websocket.Conn]bool)
	s.html = ""
	s.mu.Unlock()

	for conn := range conns {
		conn.Close()
	}
	for _, fn := range fns {
		fn()
	}
}

// Connections returns the number of attached pages.
func (s *Surface) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Surface) attach(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()
}

func (s *Surface) detach(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
