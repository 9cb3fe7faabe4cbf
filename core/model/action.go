package model

// ActionType is the kind of corrective action proposed for a conflict.
type ActionType string

const (
	ActionDelay       ActionType = "delay"
	ActionReroute     ActionType = "reroute"
	ActionSpeedAdjust ActionType = "speed_adjust"
	ActionReorder     ActionType = "reorder"
)

// Action is one atomic corrective step. Only the fields relevant to Type are
// populated: DelayMinutes for delay, RouteID for reroute, SpeedKmh for
// speed_adjust and SectionID plus Order for reorder.
type Action struct {
	Type         ActionType `json:"type"`
	TrainID      string     `json:"train_id,omitempty"`
	SectionID    string     `json:"section_id,omitempty"`
	DelayMinutes float64    `json:"delay_minutes,omitempty"`
	RouteID      string     `json:"route_id,omitempty"`
	SpeedKmh     float64    `json:"speed_kmh,omitempty"`
	Order        []string   `json:"order,omitempty"`
}

// Trains returns every train id referenced by the action.
func (a Action) Trains() []string {
	var ids []string
	if a.TrainID != "" {
		ids = append(ids, a.TrainID)
	}
	return append(ids, a.Order...)
}

// Sections returns every section id referenced by the action.
func (a Action) Sections() []string {
	if a.SectionID == "" {
		return nil
	}
	return []string{a.SectionID}
}

// DomainActionSet is the list of actions to execute for a conflict.
type DomainActionSet struct {
	ConflictID string   `json:"conflict_id"`
	Actions    []Action `json:"actions"`
}

// Empty reports whether there is nothing to execute.
func (s DomainActionSet) Empty() bool { return len(s.Actions) == 0 }
