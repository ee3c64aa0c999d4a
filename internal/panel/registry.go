package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/simview/simview/internal/assemble"
	"github.com/simview/simview/internal/bundle"
	"github.com/simview/simview/internal/config"
	"github.com/simview/simview/internal/logview"
	"github.com/simview/simview/internal/message"
	"github.com/simview/simview/internal/state"
	"github.com/simview/simview/internal/workspace"
)

// Options tunes a Registry. Zero values fall back to defaults.
type Options struct {
	// OverridePaths are the custom-script override candidates, checked
	// in order.
	OverridePaths []string
	// SimURL is the host-addressable URL of the simulator frame bundle.
	SimURL string
}

// Registry is the process-wide owner of the panel lifecycle. It holds
// at most one live Instance; Show reveals an existing instance instead
// of creating a second one.
type Registry struct {
	mu sync.Mutex

	host    Host
	ws      *workspace.Workspace
	bundle  *bundle.Bundle
	store   *state.Store
	log     logview.Channel
	opts    Options
	current *Instance
}

// New creates a Registry. Every collaborator is explicit so tests can
// build a fresh registry per case.
func New(host Host, ws *workspace.Workspace, b *bundle.Bundle, store *state.Store, logCh logview.Channel, opts Options) *Registry {
	if len(opts.OverridePaths) == 0 {
		opts.OverridePaths = config.DefaultOverridePaths
	}
	if opts.SimURL == "" {
		opts.SimURL = bundle.ResolveURL(bundle.ResSimulatorJS)
	}
	return &Registry{
		host:   host,
		ws:     ws,
		bundle: b,
		store:  store,
		log:    logCh,
		opts:   opts,
	}
}

// Show reveals the live panel, or creates one when none exists. Either
// way the log surface is cleared for the new run. On reveal the
// instance's pending simulator state is cleared so the next Load
// re-reads the persisted slot.
func (r *Registry) Show(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Clear()

	if r.current != nil {
		r.current.pendingState = nil
		r.current.panel.Reveal(true)
		return nil
	}

	p, err := r.host.CreatePanel(ctx)
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}
	r.adoptLocked(p)
	return nil
}

// Revive reconstructs an instance around a panel handle the host
// supplies after a restart, without running Show logic.
func (r *Registry) Revive(p Panel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adoptLocked(p)
}

func (r *Registry) adoptLocked(p Panel) {
	inst := &Instance{ID: uuid.New().String(), panel: p}
	r.current = inst
	p.OnDidDispose(func() { r.teardown(inst) })
}

// OnDispose registers a callback to run when the live instance is
// disposed. Without a live instance the callback is dropped.
func (r *Registry) OnDispose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.disposeFns = append(r.current.disposeFns, fn)
	}
}

// teardown runs an instance's disposal callbacks exactly once and
// clears the current reference.
func (r *Registry) teardown(inst *Instance) {
	r.mu.Lock()
	if inst.disposed {
		r.mu.Unlock()
		return
	}
	inst.disposed = true
	fns := inst.disposeFns
	inst.disposeFns = nil
	if r.current == inst {
		r.current = nil
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Load stores the compiled program, restores persisted simulator state
// if none is pending, assembles the panel document and publishes it.
// Collaborator failures propagate to the caller.
func (r *Registry) Load(ctx context.Context, programText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst := r.current
	if inst == nil {
		return fmt.Errorf("no live panel")
	}

	inst.programText = programText

	simDoc, err := r.ws.SimHTML(ctx)
	if err != nil {
		return err
	}
	inst.simDoc = simDoc

	if inst.pendingState == nil {
		blob, err := r.store.GetSlot(ctx, state.SlotSimState)
		if err != nil {
			return err
		}
		inst.pendingState = blob
	}

	html, err := r.assembleLocked()
	if err != nil {
		return err
	}
	inst.panel.SetHTML(html)
	return nil
}

func (r *Registry) assembleLocked() (string, error) {
	tmpl, err := r.bundle.Resource(bundle.ResIndexHTML)
	if err != nil {
		return "", err
	}
	loaderJS, err := r.bundle.Resource(bundle.ResLoaderJS)
	if err != nil {
		return "", err
	}
	customJS, err := r.bundle.Resource(bundle.ResCustomJS)
	if err != nil {
		return "", err
	}

	if body, ok, err := r.ws.FindOverride(r.opts.OverridePaths); err != nil {
		return "", err
	} else if ok {
		customJS = string(body)
	}

	return assemble.Assemble(assemble.Input{
		Template: tmpl,
		LoaderJS: loaderJS,
		CustomJS: customJS,
		SimURL:   r.opts.SimURL,
	}), nil
}

// Stop asks the embedded page to stop the running simulator.
func (r *Registry) Stop() error {
	return r.Send(map[string]any{"type": message.TypeStopSim})
}

// Send pushes a host-originated message, marked with the origin
// marker, to the embedded page. Without a live panel it is a no-op.
func (r *Registry) Send(payload map[string]any) error {
	data, err := message.Push(payload)
	if err != nil {
		return err
	}
	p := r.livePanel()
	if p == nil {
		return nil
	}
	return p.PostMessage(data)
}

func (r *Registry) livePanel() Panel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	return r.current.panel
}

// Status reports the registry's current state.
func (r *Registry) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Status{}
	}
	return Status{
		Live:         true,
		ID:           r.current.ID,
		HasProgram:   r.current.programText != "",
		StatePending: r.current.pendingState != nil,
	}
}

// Dispatch routes one inbound frame from the embedded page. Unknown
// message types and extension actions are ignored without error.
func (r *Registry) Dispatch(ctx context.Context, raw []byte) error {
	m, err := message.Decode(raw)
	if err != nil {
		return err
	}

	switch msg := m.(type) {
	case message.FetchJS:
		return r.handleFetchJS(raw)
	case message.BulkSerial:
		return r.handleBulkSerial(ctx, msg)
	case message.Debugger:
		return r.handleDebugger(msg)
	case message.Extension:
		return r.handleExtension(ctx, raw, msg)
	case message.SaveState:
		return r.handleSaveState(ctx, msg)
	default:
		return nil
	}
}

// handleFetchJS replies with the stored program and simulator frame
// document merged into the original message.
func (r *Registry) handleFetchJS(envelope []byte) error {
	r.mu.Lock()
	var text, srcDoc string
	var p Panel
	if r.current != nil {
		text = r.current.programText
		srcDoc = r.current.simDoc
		p = r.current.panel
	}
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	reply, err := message.Reply(envelope, map[string]any{"text": text, "srcDoc": srcDoc})
	if err != nil {
		return err
	}
	return p.PostMessage(reply)
}

// handleBulkSerial appends each entry as a line to the log surface, in
// order, and records the batch in the serial history.
func (r *Registry) handleBulkSerial(ctx context.Context, msg message.BulkSerial) error {
	lines := make([]state.SerialLine, 0, len(msg.Entries))
	for _, e := range msg.Entries {
		r.log.AppendLine(e.Data)
		lines = append(lines, state.SerialLine{Line: e.Data, SimTime: e.Time})
	}
	if err := r.store.AppendSerial(ctx, lines); err != nil {
		log.Printf("panel: recording serial history: %v", err)
	}
	return nil
}

// handleDebugger surfaces uncaught exceptions. Frames arrive with
// 0-based line and column numbers and are displayed 1-based.
func (r *Registry) handleDebugger(msg message.Debugger) error {
	if msg.Subtype != message.SubtypeBreakpoint || msg.ExceptionMessage == "" {
		return nil
	}

	r.log.AppendLine("Uncaught " + msg.ExceptionMessage)
	for _, frame := range msg.Stackframes {
		fi := frame.FuncInfo
		r.log.AppendLine(fmt.Sprintf("   at %s (%s:%d:%d)", fi.FunctionName, fi.FileName, fi.Line+1, fi.Column+1))
	}
	r.log.Show()
	return r.Stop()
}

func (r *Registry) handleExtension(ctx context.Context, envelope []byte, msg message.Extension) error {
	switch msg.Action {
	case message.ActionTargetConfig:
		return r.handleTargetConfig(ctx, envelope)
	default:
		return nil
	}
}

// handleTargetConfig fetches the target and web configuration and
// replies with both. Any fetch failure degrades to a success:false
// reply with no detail.
func (r *Registry) handleTargetConfig(ctx context.Context, envelope []byte) error {
	p := r.livePanel()
	if p == nil {
		return nil
	}

	extra := map[string]any{"success": false}
	cfg, err := r.ws.TargetConfig(ctx)
	if err == nil {
		var webCfg json.RawMessage
		if webCfg, err = r.ws.WebConfig(ctx); err == nil {
			extra = map[string]any{"success": true, "config": cfg, "webConfig": webCfg}
		}
	}

	reply, err := message.Reply(envelope, extra)
	if err != nil {
		return err
	}
	return p.PostMessage(reply)
}

// handleSaveState persists the page's opaque state blob and keeps it
// pending so a reload within this instance restores it.
func (r *Registry) handleSaveState(ctx context.Context, msg message.SaveState) error {
	r.mu.Lock()
	if r.current != nil {
		r.current.pendingState = msg.State
	}
	r.mu.Unlock()

	return r.store.SetSlot(ctx, state.SlotSimState, msg.State)
}
