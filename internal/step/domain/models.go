package domain

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Flow names the multi-step conversation a user is in.
type Flow string

const (
	FlowIdle          Flow = "idle"
	FlowSearchByCode  Flow = "search_by_code"
	FlowSearchByName  Flow = "search_by_name"
	FlowSearchByGenre Flow = "search_by_genre"
	FlowAddTitle      Flow = "add_title"
	FlowAddEpisode    Flow = "add_episode"
	FlowBroadcast     Flow = "broadcast"
	FlowManageUser    Flow = "manage_user"
	FlowAddAdmin      Flow = "add_admin"
)

var knownFlows = map[Flow]struct{}{
	FlowIdle:          {},
	FlowSearchByCode:  {},
	FlowSearchByName:  {},
	FlowSearchByGenre: {},
	FlowAddTitle:      {},
	FlowAddEpisode:    {},
	FlowBroadcast:     {},
	FlowManageUser:    {},
	FlowAddAdmin:      {},
}

func (f Flow) Valid() bool {
	_, ok := knownFlows[f]
	return ok
}

// AdminOnly reports whether the flow belongs to the admin panel.
func (f Flow) AdminOnly() bool {
	switch f {
	case FlowAddTitle, FlowAddEpisode, FlowBroadcast, FlowManageUser, FlowAddAdmin:
		return true
	default:
		return false
	}
}

// Step is the full conversational state of one user.
type Step struct {
	Flow   Flow
	Stage  int
	Fields map[string]string
}

// Idle is the empty state.
func Idle() Step {
	return Step{Flow: FlowIdle}
}

// Start begins a flow at stage zero with no collected fields.
func Start(flow Flow) Step {
	return Step{Flow: flow, Fields: map[string]string{}}
}

func (s Step) IsIdle() bool {
	return s.Flow == "" || s.Flow == FlowIdle
}

// Advance returns a copy moved to the next stage with key set to value.
func (s Step) Advance(key, value string) Step {
	fields := make(map[string]string, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	if key != "" {
		fields[key] = value
	}
	return Step{Flow: s.Flow, Stage: s.Stage + 1, Fields: fields}
}

// Field returns a collected value or "".
func (s Step) Field(key string) string {
	if s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

// Int64Field parses a collected numeric value.
func (s Step) Int64Field(key string) (int64, error) {
	raw := s.Field(key)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("step field %s: %w", key, err)
	}
	return value, nil
}

// Record is the stored form of a Step.
type Record struct {
	UserID    int64             `gorm:"primaryKey;autoIncrement:false"`
	Flow      Flow              `gorm:"type:text;not null"`
	Stage     int               `gorm:"not null;default:0"`
	Fields    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Record) TableName() string { return "user_steps" }

func (r Record) Step() Step {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		switch cast := v.(type) {
		case string:
			fields[k] = cast
		case nil:
		default:
			fields[k] = fmt.Sprint(cast)
		}
	}
	return Step{Flow: r.Flow, Stage: r.Stage, Fields: fields}
}
