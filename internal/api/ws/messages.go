package ws

import (
	"time"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/domain"
)

// Server message types.
const (
	MessageZones         = "zones"
	MessageClientChanged = dashboard.EventClientChanged
	MessageError         = "error"
)

// Client message types.
const (
	CommandFilter  = "filter"  // replace the whole filter
	CommandStage   = "stage"   // set the stage, keep the house
	CommandHouse   = "house"   // set the house, keep the stage
	CommandClear   = "clear"   // drop all filters
	CommandRefresh = "refresh" // resend zones
)

// ServerMessage is pushed to dashboard subscribers.
type ServerMessage struct {
	Type     string            `json:"type"`
	Scope    *alerts.Scope     `json:"scope,omitempty"`
	Filter   *dashboard.Filter `json:"filter,omitempty"`
	Zones    *domain.Zones     `json:"zones,omitempty"`
	ClientID string            `json:"client_id,omitempty"`
	Error    string            `json:"error,omitempty"`
	At       time.Time         `json:"at"`
}

// ClientMessage is a filter command sent by a dashboard subscriber.
type ClientMessage struct {
	Type  string `json:"type"`
	Stage string `json:"stage,omitempty"`
	House string `json:"house,omitempty"`
}
