package world

type EventKind string

const (
	EventSpawned     EventKind = "spawned"
	EventError       EventKind = "error"
	EventEnded       EventKind = "ended"
	EventKicked      EventKind = "kicked"
	EventGoalReached EventKind = "goal_reached"
	EventPathStopped EventKind = "path_stopped"
	EventHealth      EventKind = "health"
	EventChat        EventKind = "chat"
)

// Event is something the world reports without being asked.
type Event struct {
	Kind     EventKind `json:"kind"`
	Reason   string    `json:"reason,omitempty"`
	Username string    `json:"username,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Terminal reports whether the event ends the session.
func (e Event) Terminal() bool {
	return e.Kind == EventEnded || e.Kind == EventKicked
}
