// Package panel owns the lifecycle of the embedded simulator surface
// and routes messages between the host side and the embedded page.
package panel

import "context"

// Panel is the host webview handle the controller drives. The concrete
// implementation is supplied by the embedding surface (the HTTP/
// websocket surface in this binary, a fake in tests).
type Panel interface {
	// Reveal brings the panel to front. When preserveFocus is true the
	// user's focus stays where it is.
	Reveal(preserveFocus bool)
	// SetHTML replaces the panel's document.
	SetHTML(html string)
	// PostMessage delivers one frame to the embedded page. Best
	// effort: a surface with no attached page is not an error.
	PostMessage(data []byte) error
	// OnDidDispose registers a callback for when the host closes the
	// panel.
	OnDidDispose(fn func())
	// Dispose closes the panel.
	Dispose()
}

// Host creates panels on demand.
type Host interface {
	CreatePanel(ctx context.Context) (Panel, error)
}

// Instance is the live panel state. At most one exists per Registry.
type Instance struct {
	ID string

	panel        Panel
	programText  string
	simDoc       string
	pendingState []byte
	disposeFns   []func()
	disposed     bool
}

// Status is a snapshot of the registry for inspection endpoints.
type Status struct {
	Live         bool   `json:"live"`
	ID           string `json:"id,omitempty"`
	HasProgram   bool   `json:"has_program"`
	StatePending bool   `json:"state_pending"`
}
