package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a region or widget does not exist
var ErrNotFound = errors.New("not found")

// Region represents the layout area hosting a widget
type Region struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Widget is a configured instance of a module placed in a region.
// Options holds the module specific configuration as JSON.
type Widget struct {
	ID        string          `json:"id"`
	RegionID  string          `json:"region_id"`
	Type      string          `json:"type"`
	Duration  int             `json:"duration"`
	Options   json.RawMessage `json:"options"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WidgetEvent is published to players when a widget configuration changes
type WidgetEvent struct {
	Type      string    `json:"type"`
	WidgetID  string    `json:"widget_id"`
	RegionID  string    `json:"region_id"`
	Module    string    `json:"module"`
	ChangedAt time.Time `json:"changed_at"`
}

// Validity reports whether a widget is known to play correctly
type Validity int

const (
	ValidityInvalid Validity = 0
	ValidityValid   Validity = 1
	// ValidityUnknown is used when only the player can tell, e.g. external pages
	ValidityUnknown Validity = 2
)

func (v Validity) String() string {
	switch v {
	case ValidityInvalid:
		return "invalid"
	case ValidityValid:
		return "valid"
	case ValidityUnknown:
		return "unknown"
	default:
		return "unrecognized"
	}
}
