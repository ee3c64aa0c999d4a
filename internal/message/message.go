// Package message defines the wire schema spoken between the host side
// and the embedded simulator page. Inbound messages are a tagged union
// keyed on a "type" string; each variant is decoded into its own Go
// type at the boundary so handlers never see raw maps.
package message

import (
	"encoding/json"
	"fmt"
)

// Wire type tags.
const (
	TypeFetchJS    = "fetch-js"
	TypeBulkSerial = "bulkserial"
	TypeDebugger   = "debugger"
	TypeExtension  = "simulator-extension"
	TypeSaveState  = "save-state"
	TypeStopSim    = "stop-sim"
)

// Extension actions.
const (
	ActionTargetConfig = "targetConfig"
)

// SubtypeBreakpoint is the only debugger subtype the host acts on.
const SubtypeBreakpoint = "breakpoint"

// OriginMarker identifies host-originated pushes so the embedded page
// can tell them apart from its own messages. The simulator bundle
// checks for this exact key; it is a wire-contract constant.
const OriginMarker = "_fromVscode"

// Inbound is implemented by every decoded inbound message variant.
type Inbound interface {
	isInbound()
}

// FetchJS asks the host for the compiled program and the simulator
// frame document.
type FetchJS struct{}

// SerialEntry is one line of simulator serial output with its
// simulator-time timestamp.
type SerialEntry struct {
	Data string  `json:"data"`
	Time float64 `json:"time"`
}

// BulkSerial carries a batch of serial output lines.
type BulkSerial struct {
	Entries []SerialEntry `json:"data"`
}

// FuncInfo locates a stack frame. Line and Column are 0-based on the
// wire and converted to 1-based for display.
type FuncInfo struct {
	FunctionName string `json:"functionName"`
	FileName     string `json:"fileName"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
}

// Stackframe is one frame of a simulator stack trace.
type Stackframe struct {
	FuncInfo FuncInfo `json:"funcInfo"`
}

// Debugger reports a debugger event from the embedded runtime.
type Debugger struct {
	Subtype          string       `json:"subtype"`
	ExceptionMessage string       `json:"exceptionMessage"`
	Stackframes      []Stackframe `json:"stackframes"`
}

// Extension is a simulator-extension request with a nested action tag.
type Extension struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// SaveState asks the host to persist the simulator's opaque state blob.
type SaveState struct {
	State json.RawMessage `json:"state"`
}

// Unknown is returned for any unrecognized type tag. The controller
// ignores it silently.
type Unknown struct {
	Type string
}

func (FetchJS) isInbound()    {}
func (BulkSerial) isInbound() {}
func (Debugger) isInbound()   {}
func (Extension) isInbound()  {}
func (SaveState) isInbound()  {}
func (Unknown) isInbound()    {}

// Decode parses one inbound frame into its typed variant. The raw
// envelope is kept by the caller for echo-style replies.
func Decode(data []byte) (Inbound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding message envelope: %w", err)
	}

	switch head.Type {
	case TypeFetchJS:
		return FetchJS{}, nil
	case TypeBulkSerial:
		var m BulkSerial
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding bulkserial: %w", err)
		}
		return m, nil
	case TypeDebugger:
		var m Debugger
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding debugger: %w", err)
		}
		return m, nil
	case TypeExtension:
		var m Extension
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding simulator-extension: %w", err)
		}
		return m, nil
	case TypeSaveState:
		var m SaveState
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding save-state: %w", err)
		}
		return m, nil
	default:
		return Unknown{Type: head.Type}, nil
	}
}

// Reply merges extra fields over the fields of the original envelope,
// producing a direct response frame. Replies do not carry the origin
// marker; only host-initiated pushes do.
func Reply(envelope []byte, extra map[string]any) ([]byte, error) {
	fields := map[string]any{}
	if len(envelope) > 0 {
		if err := json.Unmarshal(envelope, &fields); err != nil {
			return nil, fmt.Errorf("decoding reply envelope: %w", err)
		}
	}
	for k, v := range extra {
		fields[k] = v
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding reply: %w", err)
	}
	return out, nil
}

// Push encodes a host-initiated message with the origin marker set.
func Push(payload map[string]any) ([]byte, error) {
	fields := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		fields[k] = v
	}
	fields[OriginMarker] = true
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding push: %w", err)
	}
	return out, nil
}
