package domain

import "fmt"

// HeartbeatAction is the control action published to a device's heartbeat
// command subject.
type HeartbeatAction string

const (
	HeartbeatStart  HeartbeatAction = "START_HEARTBEAT"
	HeartbeatReload HeartbeatAction = "RELOAD_HEARTBEAT"
	HeartbeatStop   HeartbeatAction = "STOP_HEARTBEAT"
)

// HeartbeatControlSubject returns the bus subject a heartbeat control
// message for deviceID is published on.
func HeartbeatControlSubject(deviceID string) string {
	return fmt.Sprintf("device_communication.%s.command.heartbeat", deviceID)
}

// HeartbeatControlPayload is the JSON body of a heartbeat control publish.
type HeartbeatControlPayload struct {
	EventType string          `json:"event_type"`
	Action    HeartbeatAction `json:"action"`
	Data      map[string]any  `json:"data"`
}

// NewHeartbeatControlPayload builds the payload for a START/RELOAD/STOP
// control publish.
func NewHeartbeatControlPayload(action HeartbeatAction) HeartbeatControlPayload {
	return HeartbeatControlPayload{
		EventType: "HEARTBEAT_CONTROL",
		Action:    action,
		Data:      map[string]any{},
	}
}

// SubscribeRequest is the decoded payload of a WebSocket "subscribe" action.
type SubscribeRequest struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
	UUID    string `json:"uuid"`
	Event   string `json:"event"`
}

// IsHeartbeatFlavored reports whether a subscribe request carries both a
// device id and the configured heartbeat event marker.
func (r SubscribeRequest) IsHeartbeatFlavored(heartbeatEventName string) bool {
	return r.UUID != "" && r.Event != "" && r.Event == heartbeatEventName
}
