package core

import "fmt"

// State is the run state of a sink as reported by the audio server.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// ParseState maps a single-character state code to a State.
func ParseState(code string) (State, bool) {
	switch code {
	case "I":
		return StateIdle, true
	case "R":
		return StateRunning, true
	default:
		return "", false
	}
}

// Code returns the single-character code for s.
func (s State) Code() string {
	switch s {
	case StateRunning:
		return "R"
	default:
		return "I"
	}
}

// Sink is an audio output endpoint known to the audio server.
type Sink struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       State  `json:"state"`
}

// NoSink marks a sink input whose sink has not been reported.
const NoSink = -1

// SinkInput is one playback stream currently routed to a sink.
type SinkInput struct {
	Index     int    `json:"index"`
	AppName   string `json:"app_name"`
	AppID     string `json:"app_id"`
	MediaName string `json:"media_name"`
	Sink      int    `json:"sink"`
}

// Role names which managed stream an operation is about.
type Role string

const (
	RoleOutput Role = "output"
	RoleInput  Role = "mic-input"
)

// StreamIdentity is the (application name, media name, application id) triple
// that identifies a managed stream.
type StreamIdentity struct {
	AppName   string `yaml:"app_name"   json:"app_name"`
	MediaName string `yaml:"media_name" json:"media_name"`
	AppID     string `yaml:"app_id"     json:"app_id"`
}

// IsZero reports whether no field of the identity is set.
func (id StreamIdentity) IsZero() bool {
	return id.AppName == "" && id.MediaName == "" && id.AppID == ""
}

// Matches reports whether in carries exactly this identity.
func (id StreamIdentity) Matches(in SinkInput) bool {
	return in.MediaName == id.MediaName && in.AppName == id.AppName && in.AppID == id.AppID
}

func (id StreamIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", id.AppName, id.MediaName, id.AppID)
}
