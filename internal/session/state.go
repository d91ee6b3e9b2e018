package session

import (
	"time"

	"minepilot.ai/internal/world"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// State is a point-in-time copy of avatar telemetry.
type State struct {
	Status          Status      `json:"status"`
	Username        string      `json:"username,omitempty"`
	Health          float64     `json:"health"`
	Food            float64     `json:"food"`
	Position        *world.Vec3 `json:"position"`
	Dimension       *string     `json:"dimension"`
	ExperienceLevel int         `json:"experience_level"`
	GameMode        string      `json:"game_mode"`
	HeldItem        string      `json:"held_item,omitempty"`
	TimeOfDay       int         `json:"time_of_day"`
	Weather         string      `json:"weather,omitempty"`
	ConnectedAt     *time.Time  `json:"connected_at,omitempty"`
}

func disconnectedState(status Status) State {
	return State{Status: status, GameMode: "unknown"}
}

func stateFromTelemetry(t world.Telemetry, connectedAt time.Time) State {
	st := State{
		Status:          StatusConnected,
		Username:        t.Username,
		Health:          t.Health,
		Food:            t.Food,
		ExperienceLevel: t.ExperienceLevel,
		GameMode:        t.GameMode,
		HeldItem:        t.HeldItem,
		TimeOfDay:       t.TimeOfDay,
		Weather:         t.Weather,
	}
	if st.GameMode == "" {
		st.GameMode = "unknown"
	}
	if t.Position != nil {
		p := *t.Position
		st.Position = &p
	}
	if t.Dimension != "" {
		d := t.Dimension
		st.Dimension = &d
	}
	if !connectedAt.IsZero() {
		at := connectedAt
		st.ConnectedAt = &at
	}
	return st
}
