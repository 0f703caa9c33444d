package robot

import (
	"encoding/json"
	"time"
)

// State is the merged view of the robot's reported shadow document. The
// robot pushes partial updates; fields absent from an update keep their
// previous value.
type State struct {
	Name           string    `json:"name,omitempty"`
	BatteryPercent int       `json:"batteryPercent"`
	Phase          string    `json:"phase,omitempty"`
	Cycle          string    `json:"cycle,omitempty"`
	ErrorCode      int       `json:"errorCode"`
	BinPresent     bool      `json:"binPresent"`
	BinFull        bool      `json:"binFull"`
	DockKnown      bool      `json:"dockKnown"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Cleaning reports whether the robot is actively running a mission.
func (s State) Cleaning() bool {
	return s.Phase == "run"
}

// shadowMessage mirrors the AWS-shadow-shaped JSON the robot publishes on
// its local broker. Every field is optional.
type shadowMessage struct {
	State struct {
		Reported reportedState `json:"reported"`
	} `json:"state"`
}

type reportedState struct {
	Name   *string `json:"name"`
	BatPct *int    `json:"batPct"`
	Bin    *struct {
		Present *bool `json:"present"`
		Full    *bool `json:"full"`
	} `json:"bin"`
	CleanMissionStatus *struct {
		Cycle *string `json:"cycle"`
		Phase *string `json:"phase"`
		Error *int    `json:"error"`
	} `json:"cleanMissionStatus"`
	Dock *struct {
		Known *bool `json:"known"`
	} `json:"dock"`
}

// merge applies a partial shadow payload to the state. Returns false when
// the payload carried nothing the state tracks or nothing changed.
func (s *State) merge(payload []byte, at time.Time) bool {
	var msg shadowMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return false
	}
	r := msg.State.Reported
	changed := false
	if r.Name != nil && *r.Name != s.Name {
		s.Name = *r.Name
		changed = true
	}
	if r.BatPct != nil && *r.BatPct != s.BatteryPercent {
		s.BatteryPercent = *r.BatPct
		changed = true
	}
	if r.Bin != nil {
		if r.Bin.Present != nil && *r.Bin.Present != s.BinPresent {
			s.BinPresent = *r.Bin.Present
			changed = true
		}
		if r.Bin.Full != nil && *r.Bin.Full != s.BinFull {
			s.BinFull = *r.Bin.Full
			changed = true
		}
	}
	if m := r.CleanMissionStatus; m != nil {
		if m.Cycle != nil && *m.Cycle != s.Cycle {
			s.Cycle = *m.Cycle
			changed = true
		}
		if m.Phase != nil && *m.Phase != s.Phase {
			s.Phase = *m.Phase
			changed = true
		}
		if m.Error != nil && *m.Error != s.ErrorCode {
			s.ErrorCode = *m.Error
			changed = true
		}
	}
	if r.Dock != nil && r.Dock.Known != nil && *r.Dock.Known != s.DockKnown {
		s.DockKnown = *r.Dock.Known
		changed = true
	}
	if changed {
		s.UpdatedAt = at
	}
	return changed
}
