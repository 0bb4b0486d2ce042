package uds

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/modoterra/fxswitch/pkg/core"
)

var reqCounter atomic.Uint64

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func newMessage(typ MsgType, id, method string, data any) (Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s: %w", method, err)
		}
		raw = b
	}
	return Message{Type: typ, ID: id, Method: method, Data: raw}, nil
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	return newMessage(MsgTypeReq, fmt.Sprintf("req-%d", reqCounter.Add(1)), method, data)
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	return newMessage(MsgTypeRes, reqID, method, data)
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{Type: MsgTypeRes, ID: reqID, Method: method, Error: errMsg}
}

// NewEvent creates a server-pushed event.
func NewEvent(method string, data any) (Message, error) {
	return newMessage(MsgTypeEvt, fmt.Sprintf("evt-%d", reqCounter.Add(1)), method, data)
}

// Methods
const (
	MethodPing      = "Ping"
	MethodStatus    = "Status"
	MethodToggle    = "Toggle"
	MethodSetOutput = "SetOutput"
	MethodBoot      = "Boot"

	EventRouteChanged = "route.changed"
	EventBootState    = "boot.state"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong    bool   `json:"pong"`
	Version string `json:"version,omitempty"`
}

// SetOutputRequest is the payload for SetOutput.
type SetOutputRequest struct {
	Description string `json:"description"`
}

// SinkResponse names the sink a switch landed on.
type SinkResponse struct {
	Sink core.Sink `json:"sink"`
}

// BootStatus mirrors the boot sequencer milestones.
type BootStatus struct {
	Running          bool   `json:"running"`
	OutputConfigured bool   `json:"output_configured"`
	InputConfigured  bool   `json:"input_configured"`
	Attempts         int    `json:"attempts"`
	LastError        string `json:"last_error,omitempty"`
}

// BootResponse is the response to a Boot request.
type BootResponse struct {
	Started bool       `json:"started"` // false when a sequence was already running
	State   BootStatus `json:"state"`
}

// UnitStatus is the systemd state of a related user unit.
type UnitStatus struct {
	Name        string `json:"name"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
}

// StatusResponse is the response to a Status request.
type StatusResponse struct {
	Sinks          []core.Sink     `json:"sinks"`
	Output         *core.SinkInput `json:"output,omitempty"`
	Current        int             `json:"current"`
	RouteError     string          `json:"route_error,omitempty"`
	Boot           BootStatus      `json:"boot"`
	EffectsProcess string          `json:"effects_process"`
	EffectsPIDs    []int           `json:"effects_pids,omitempty"`
	EffectsState   string          `json:"effects_state,omitempty"` // set when fxswitchd launches the processor
	Units          []UnitStatus    `json:"units,omitempty"`
}

// CurrentSink returns the sink the managed output plays on, if it is valid.
func (s StatusResponse) CurrentSink() (core.Sink, bool) {
	for _, sink := range s.Sinks {
		if sink.Index == s.Current {
			return sink, true
		}
	}
	return core.Sink{}, false
}

// RouteEvent is broadcast when the managed output moves or the valid sinks change.
type RouteEvent struct {
	Sinks   []core.Sink `json:"sinks"`
	Current int         `json:"current"`
}
