package models

import (
	"fmt"
	"time"
)

// ErrInvalidUID is returned when an employee or attendance document carries
// an empty or malformed uid.
type ErrInvalidUID string

func (e ErrInvalidUID) Error() string { return string(e) }

// ErrInvalidWorkingArea is returned when an employee's working area payload
// cannot be parsed as a multi-polygon.
type ErrInvalidWorkingArea string

func (e ErrInvalidWorkingArea) Error() string { return string(e) }

// DefaultTimezone is used whenever an employee record omits one or carries
// one the time package can't load.
const DefaultTimezone = "Africa/Nairobi"

// LocationSource distinguishes a one-shot share from a live-sharing update.
type LocationSource string

const (
	SourceTelegram     LocationSource = "telegram"
	SourceTelegramLive LocationSource = "telegram_live"
)

// CurrentLocation is the single most-recent location known for an employee.
type CurrentLocation struct {
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	Accuracy      *float64       `json:"accuracy,omitempty"`
	Heading       *float64       `json:"heading,omitempty"`
	Speed         *float64       `json:"speed,omitempty"`
	Source        LocationSource `json:"source"`
	IsLive        bool           `json:"isLive"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LiveMessageID int64          `json:"liveMessageId,omitempty"`
	LiveChatID    int64          `json:"liveChatId,omitempty"`
	LiveUntil     *time.Time     `json:"liveUntil,omitempty"`
	EndedAt       *time.Time     `json:"endedAt,omitempty"`
}

// Validate enforces the invariants a CurrentLocation must satisfy regardless
// of where it came from.
func (c *CurrentLocation) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("models: latitude %f out of range", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("models: longitude %f out of range", c.Longitude)
	}
	if c.IsLive && c.EndedAt != nil {
		return fmt.Errorf("models: location cannot be live and ended at the same time")
	}
	if c.LiveUntil != nil && c.LiveUntil.Before(c.UpdatedAt) {
		return fmt.Errorf("models: liveUntil precedes updatedAt")
	}
	return nil
}

// Employee is the document backing a single tracked worker.
type Employee struct {
	UID                  string           `json:"uid"`
	ID                   string           `json:"id"`
	TelegramChatID       *int64           `json:"telegramChatID,omitempty"`
	WorkingArea          string           `json:"workingArea,omitempty"`
	Timezone             string           `json:"timezone,omitempty"`
	ReportingLineManager string           `json:"reportingLineManager,omitempty"`
	CurrentLocation      *CurrentLocation `json:"currentLocation,omitempty"`
	LastChanged          time.Time        `json:"lastChanged,omitempty"`
}

// EffectiveTimezone returns the employee's timezone, or DefaultTimezone if
// none is set.
func (e *Employee) EffectiveTimezone() string {
	if e.Timezone == "" {
		return DefaultTimezone
	}
	return e.Timezone
}

// Validate checks the minimal shape an Employee document must have to be
// usable by the core (a valid uid; a parseable currentLocation if present).
func (e *Employee) Validate() error {
	if e.UID == "" {
		return ErrInvalidUID("models: employee uid must not be empty")
	}
	if e.CurrentLocation != nil {
		if err := e.CurrentLocation.Validate(); err != nil {
			return fmt.Errorf("models: employee %s: %w", e.UID, err)
		}
	}
	return nil
}
