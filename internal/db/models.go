package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Device struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	MAC                string
	DisplayName        string
	FirmwareVersion    string
	FilesystemVersion  string
	LastSeenAt         *time.Time
	Online             bool
	UnclaimedAt        *time.Time
	ClaimEpoch         int64
	PasswordHash       string
	PasswordPlain      *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type ClaimingWindow struct {
	MAC        string
	TenantHint *uuid.UUID
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

type ClaimCode struct {
	ID               uuid.UUID
	Code             string
	TenantID         uuid.UUID
	TargetDeviceName string
	Status           string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	ClaimedAt        *time.Time
}

type RevocationToken struct {
	Token     string
	DeviceID  uuid.UUID
	MAC       string
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}

type Alert struct {
	ID                        uuid.UUID
	DeviceID                  uuid.UUID
	TenantID                  uuid.UUID
	Severity                  string
	Status                    string
	TriggeredAt               time.Time
	ResolvedAt                *time.Time
	ResolvedBy                *string
	SensorData                json.RawMessage
	ClassificationLabel       *string
	ClassificationConfidence  *float64
	CreatedAt                 time.Time
}

type EscalationState struct {
	AlertID             uuid.UUID
	CurrentLevel        int
	LastNotificationAt  *time.Time
	NextNotificationAt  time.Time
	NotificationCount   int
	ContactsNotified    json.RawMessage
	DNDOverridden       bool
	Preset              string
	UpdatedAt           time.Time
}

type NotificationPreference struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	UserID              uuid.UUID
	Preset              string
	CustomLevels        json.RawMessage
	CriticalOverrideDND bool
	CreatedAt           time.Time
}

type EmergencyContact struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	Channel         string
	Address         string
	EscalationLevel int
	Enabled         bool
	CreatedAt       time.Time
}

type ImageClassification struct {
	ID                  uuid.UUID
	DeviceID            uuid.UUID
	TenantID            uuid.UUID
	ImageHash           string
	Label               string
	Confidence          float64
	Predictions         json.RawMessage
	ModelVersion        *string
	InferenceLatencyMs  *int
	CreatedAt           time.Time
}

// AlertWithEscalation joins an alert with its escalation state, used by
// the escalation tick query. That query uses an inner join, so alerts
// without an escalation-state row are not returned.
type AlertWithEscalation struct {
	Alert
	EscalationState *EscalationState
}
