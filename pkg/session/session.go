// Package session implements the Session & Alert Core: the in-memory
// liveness map and the DB-backed alert lifecycle, both driven by events
// handed off from the Message Fabric.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HeartbeatTimeout is the default duration after which a device with no
// status message is marked offline.
const HeartbeatTimeout = 15 * time.Minute

// StatusReport is the normalized content of a device status message.
type StatusReport struct {
	Online            bool
	Triggered         bool
	FirmwareVersion   string
	FilesystemVersion string
	ReportedAt        *time.Time
}

// AlertTrigger is the normalized content of a device alert message.
type AlertTrigger struct {
	Severity   string // defaults to "medium" when empty
	SensorData json.RawMessage
}

// Alert mirrors db.Alert in the shape callers of this package need.
type Alert struct {
	ID                  uuid.UUID
	DeviceID            uuid.UUID
	TenantID            uuid.UUID
	Severity            string
	Status              string
	TriggeredAt         time.Time
	SensorData          json.RawMessage
	ClassificationLabel *string
}

func normalizeSeverity(s string) string {
	switch s {
	case "low", "medium", "high", "critical":
		return s
	default:
		return "medium"
	}
}
