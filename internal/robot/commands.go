package robot

import (
	"encoding/json"
	"fmt"
	"time"
)

// Actions the bridge accepts. They map onto the command names the robot's
// local broker understands.
const (
	ActionStart     = "start"
	ActionStop      = "stop"
	ActionPause     = "pause"
	ActionResume    = "resume"
	ActionDock      = "dock"
	ActionFind      = "find"
	ActionCleanRoom = "cleanRoom"
	ActionSetPrefs  = "setPreferences"
)

const (
	topicCommand = "cmd"
	topicDelta   = "delta"
)

// KnownAction reports whether the bridge can translate the action into a
// robot command.
func KnownAction(action string) bool {
	switch action {
	case ActionStart, ActionStop, ActionPause, ActionResume, ActionDock, ActionFind, ActionCleanRoom, ActionSetPrefs:
		return true
	}
	return false
}

// Actions returns the closed set of accepted action names.
func Actions() []string {
	return []string{ActionStart, ActionStop, ActionPause, ActionResume, ActionDock, ActionFind, ActionCleanRoom, ActionSetPrefs}
}

// buildCommand translates an action plus optional payload into the MQTT
// topic and message the robot expects.
//
// Plain commands publish {"command":<name>,"time":<unix>,"initiator":"localApp"}
// on "cmd". Targeted cleaning is a "start" command with the room selection
// merged in. Preference changes go to "delta" wrapped in {"state":...}.
func buildCommand(action string, payload json.RawMessage, at time.Time) (topic string, message []byte, err error) {
	if !KnownAction(action) {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}

	if action == ActionSetPrefs {
		if len(payload) == 0 {
			return "", nil, fmt.Errorf("action %q requires a payload", action)
		}
		message, err = json.Marshal(map[string]json.RawMessage{"state": payload})
		if err != nil {
			return "", nil, fmt.Errorf("encode preference delta: %w", err)
		}
		return topicDelta, message, nil
	}

	body := map[string]any{
		"command":   action,
		"time":      at.Unix(),
		"initiator": "localApp",
	}
	if action == ActionCleanRoom {
		if len(payload) == 0 {
			return "", nil, fmt.Errorf("action %q requires a payload with region ids", action)
		}
		var regions map[string]json.RawMessage
		if err := json.Unmarshal(payload, &regions); err != nil {
			return "", nil, fmt.Errorf("decode cleanRoom payload: %w", err)
		}
		body["command"] = ActionStart
		body["ordered"] = 1
		for key, value := range regions {
			body[key] = value
		}
	}
	message, err = json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode command: %w", err)
	}
	return topicCommand, message, nil
}
