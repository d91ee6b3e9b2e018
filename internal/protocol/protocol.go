// Package protocol is the JSON wire format spoken with a game gateway: a
// headless game client that owns the real server connection and forwards
// telemetry, events and command results over a websocket.
package protocol

import "encoding/json"

const Version = "1.0"

var supportedVersions = map[string]struct{}{
	"1.0": {},
}

func IsSupportedVersion(v string) bool {
	_, ok := supportedVersions[v]
	return ok
}

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeState   = "STATE"
	TypeEvent   = "EVENT"
	TypeCmd     = "CMD"
	TypeResult  = "RESULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
