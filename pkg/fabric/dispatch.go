package fabric

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/pkg/classify"
	"github.com/devicefabric/fabric/pkg/session"
)

// secondsVsMillisThreshold is the magnitude below which a device
// timestamp is assumed to be seconds rather than milliseconds.
const secondsVsMillisThreshold = 10_000_000_000

// normalizeTimestamp converts a device-reported timestamp (seconds or
// milliseconds, the device's choice) into a time.Time. A zero input
// means the device didn't report one.
func normalizeTimestamp(raw int64) *time.Time {
	if raw == 0 {
		return nil
	}
	ms := raw
	if raw < secondsVsMillisThreshold {
		ms = raw * 1000
	}
	t := time.UnixMilli(ms)
	return &t
}

// DeviceResolver is the subset of internal/db the Fabric needs to map a
// MAC or device id to the device row it belongs to.
type DeviceResolver interface {
	GetActiveDeviceByMAC(ctx context.Context, mac string) (db.Device, error)
	GetDeviceByID(ctx context.Context, id uuid.UUID) (db.Device, error)
}

// SessionHandler is the subset of pkg/session.Store the Fabric forwards
// parsed device events to.
type SessionHandler interface {
	ApplyStatus(ctx context.Context, deviceID uuid.UUID, report session.StatusReport) error
	ReconcileOnReconnect(ctx context.Context, deviceID, tenantID uuid.UUID, report session.StatusReport)
	CreateFromTrigger(ctx context.Context, deviceID, tenantID uuid.UUID, trig session.AlertTrigger) (session.Alert, error)
	ResolveFromDevice(ctx context.Context, deviceID uuid.UUID) error
	ApplyClassification(ctx context.Context, deviceID, tenantID uuid.UUID, imageHash string, result classify.Result) (*session.Alert, error)
}

// Classifier is the subset of pkg/classify.Client the Fabric needs.
type Classifier interface {
	Enabled() bool
	Classify(ctx context.Context, req classify.Request) (classify.Result, error)
}

type statusPayload struct {
	Online            bool   `json:"online"`
	Triggered         bool   `json:"triggered"`
	FirmwareVersion   string `json:"firmwareVersion"`
	FilesystemVersion string `json:"filesystemVersion"`
	Timestamp         int64  `json:"ts"`
}

type alertPayload struct {
	Severity   string          `json:"severity"`
	SensorData json.RawMessage `json:"sensorData"`
}

type rotationAckPayload struct {
	RotationID string `json:"rotationId"`
}

type motionPayload struct {
	SensorData json.RawMessage `json:"sensorData"`
	Image      string          `json:"image"`
}

// handleMessage is the single entry point for every inbound MQTT
// message. Parse errors and unrecognized topics/kinds are logged and
// dropped, never propagated, since MQTT delivery has no caller to
// return an error to.
func (s *Store) handleMessage(topic string, payload []byte) {
	pt, ok := parseTopic(topic)
	if !ok {
		s.logger.Warn("fabric: unrecognized topic, dropping", "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch pt.Kind {
	case kindStatus:
		s.handleStatus(ctx, pt, payload)
	case kindAlert:
		s.handleAlert(ctx, pt, payload)
	case kindAlertCleared:
		s.handleAlertCleared(ctx, pt)
	case kindRotationAck:
		s.handleRotationAckMessage(ctx, pt, payload)
	case kindMotion:
		s.handleMotion(ctx, pt, payload)
	case kindOTAProgress, kindSnapshot:
		s.logger.Debug("fabric: received informational device event", "kind", pt.Kind, "mac", pt.MAC)
	default:
		s.logger.Warn("fabric: unrecognized message kind, dropping", "kind", pt.Kind, "topic", topic)
	}
}

func (s *Store) resolveDevice(ctx context.Context, mac string) (db.Device, bool) {
	device, err := s.devices.GetActiveDeviceByMAC(ctx, mac)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("fabric: message from unknown or unclaimed device, dropping", "mac", mac)
		return db.Device{}, false
	}
	if err != nil {
		s.logger.Error("fabric: resolving device by MAC failed", "mac", mac, "error", err)
		return db.Device{}, false
	}
	return device, true
}

func (s *Store) handleStatus(ctx context.Context, pt parsedTopic, payload []byte) {
	var p statusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("fabric: malformed status payload, dropping", "mac", pt.MAC, "error", err)
		return
	}
	device, ok := s.resolveDevice(ctx, pt.MAC)
	if !ok {
		return
	}

	report := session.StatusReport{
		Online:            p.Online,
		Triggered:         p.Triggered,
		FirmwareVersion:   p.FirmwareVersion,
		FilesystemVersion: p.FilesystemVersion,
		ReportedAt:        normalizeTimestamp(p.Timestamp),
	}
	if err := s.session.ApplyStatus(ctx, device.ID, report); err != nil {
		s.logger.Error("fabric: applying status", "device_id", device.ID, "error", err)
		return
	}
	s.session.ReconcileOnReconnect(ctx, device.ID, device.TenantID, report)

	if p.Online {
		if err := s.ClearRetainedRevoke(ctx, device.TenantID, device.MAC); err != nil {
			s.logger.Error("fabric: clearing retained revoke on online status", "device_id", device.ID, "error", err)
		}
	}
}

func (s *Store) handleAlert(ctx context.Context, pt parsedTopic, payload []byte) {
	var p alertPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("fabric: malformed alert payload, dropping", "mac", pt.MAC, "error", err)
		return
	}
	device, ok := s.resolveDevice(ctx, pt.MAC)
	if !ok {
		return
	}

	_, err := s.session.CreateFromTrigger(ctx, device.ID, device.TenantID, session.AlertTrigger{
		Severity:   p.Severity,
		SensorData: p.SensorData,
	})
	if err != nil && !errors.Is(err, session.ErrAlertSuppressed) {
		s.logger.Error("fabric: creating alert from device trigger", "device_id", device.ID, "error", err)
	}
}

func (s *Store) handleAlertCleared(ctx context.Context, pt parsedTopic) {
	device, ok := s.resolveDevice(ctx, pt.MAC)
	if !ok {
		return
	}
	if err := s.session.ResolveFromDevice(ctx, device.ID); err != nil {
		s.logger.Error("fabric: resolving alert from device clear", "device_id", device.ID, "error", err)
	}
}

func (s *Store) handleRotationAckMessage(_ context.Context, pt parsedTopic, payload []byte) {
	var p rotationAckPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("fabric: malformed rotation_ack payload, dropping", "mac", pt.MAC, "error", err)
		return
	}
	if p.RotationID == "" {
		return
	}
	s.handleRotationAck(p.RotationID, pt.MAC)
}

func (s *Store) handleMotion(ctx context.Context, pt parsedTopic, payload []byte) {
	var p motionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("fabric: malformed motion payload, dropping", "mac", pt.MAC, "error", err)
		return
	}
	if !s.classifier.Enabled() {
		return
	}
	device, ok := s.resolveDevice(ctx, pt.MAC)
	if !ok {
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		s.logger.Warn("fabric: malformed motion image, dropping", "device_id", device.ID, "error", err)
		return
	}
	sum := sha256.Sum256(imageBytes)
	imageHash := hex.EncodeToString(sum[:])

	result, err := s.classifier.Classify(ctx, classify.Request{
		TenantID:   device.TenantID.String(),
		DeviceID:   device.ID.String(),
		MAC:        device.MAC,
		SensorData: p.SensorData,
		Image:      p.Image,
	})
	if err != nil {
		s.logger.Error("fabric: classifying motion snapshot", "device_id", device.ID, "error", err)
		return
	}
	if result.Label == "" {
		return
	}
	if _, err := s.session.ApplyClassification(ctx, device.ID, device.TenantID, imageHash, result); err != nil {
		s.logger.Error("fabric: applying classification result", "device_id", device.ID, "error", err)
	}
}
