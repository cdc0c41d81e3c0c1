package event

import "time"

const (
	EventNavigationStart = "navigation.start"
	EventNavigationStop  = "navigation.stop"
	EventWanderStart     = "wander.start"
	EventWanderStop      = "wander.stop"

	EventActionEngaged   = "action.engaged"
	EventActionTriggered = "action.triggered"
	EventActionCancelled = "action.cancelled"
	EventActionReleased  = "action.released"
	EventActionFailed    = "action.failed"
)

// All lists every event name, for subscribers that record everything.
var All = []string{
	EventNavigationStart,
	EventNavigationStop,
	EventWanderStart,
	EventWanderStop,
	EventActionEngaged,
	EventActionTriggered,
	EventActionCancelled,
	EventActionReleased,
	EventActionFailed,
}

type NavigationEvent struct {
	SessionID string    `json:"session_id"`
	TargetX   float64   `json:"target_x"`
	TargetZ   float64   `json:"target_z"`
	Wander    bool      `json:"wander,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type WanderEvent struct {
	SessionID   string        `json:"session_id"`
	Interval    time.Duration `json:"interval,omitempty"`
	MaxDistance float64       `json:"max_distance,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	At          time.Time     `json:"at"`
}

type ActionEvent struct {
	RunID    string    `json:"run_id"`
	EntityID string    `json:"entity_id"`
	PlayerID string    `json:"player_id,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}
