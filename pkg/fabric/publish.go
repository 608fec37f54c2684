package fabric

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/devicefabric/fabric/pkg/escalation"
)

// PublishCommand publishes a recognized device command (reboot, status,
// alert_reset, test_trigger, capture_snapshot, escalation,
// rotate_credentials, update_tenant) at QoS 1, not retained.
func (s *Store) PublishCommand(ctx context.Context, tenantID, mac, command string, payload map[string]any) error {
	return s.publishJSON(ctx, commandTopic(tenantID, mac, command), 1, false, payload)
}

// PublishRevoke publishes a revoke message carrying the one-shot
// revocation token. QoS 1, not retained: a retained revoke would keep
// re-revoking a MAC that is later re-claimed under a fresh identity.
func (s *Store) PublishRevoke(ctx context.Context, tenantID, mac, token string) error {
	return s.publishJSON(ctx, revokeTopic(tenantID, mac), 1, false, map[string]any{"token": token})
}

// ClearRetainedRevoke clears any retained revoke message left under a
// MAC from a previous identity, by publishing an empty retained message
// to the same topic (the MQTT-standard way to delete a retained
// message).
func (s *Store) ClearRetainedRevoke(ctx context.Context, tenantID uuid.UUID, mac string) error {
	return s.publishRaw(ctx, revokeTopic(tenantID.String(), mac), 1, true, nil)
}

// PublishEscalation implements pkg/escalation.DeviceCommander: it
// resolves the device id to its MAC and publishes an escalation command
// carrying the buzzer/LED signal for the level.
func (s *Store) PublishEscalation(ctx context.Context, tenantID, deviceID string, signal escalation.DeviceSignal) error {
	devID, err := uuid.Parse(deviceID)
	if err != nil {
		return fmt.Errorf("parsing device id: %w", err)
	}
	device, err := s.devices.GetDeviceByID(ctx, devID)
	if err != nil {
		return fmt.Errorf("resolving device for escalation signal: %w", err)
	}
	return s.PublishCommand(ctx, tenantID, device.MAC, "escalation", map[string]any{
		"level":  signal.Level,
		"buzzer": signal.Buzzer,
		"led":    signal.LED,
	})
}

// Manifest describes a firmware or filesystem image devices can fetch
// and verify before applying (§4.B).
type Manifest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
	Hash    string `json:"hash"`
}

// PublishManifest publishes a retained manifest notice for kind
// ("firmware" or "filesystem") so connected devices pick it up
// immediately and reconnecting devices discover it on subscribe. An
// empty tenantID publishes the global fallback manifest.
func (s *Store) PublishManifest(ctx context.Context, tenantID, kind string, manifest Manifest) error {
	return s.publishJSON(ctx, latestManifestTopic(tenantID, kind), 1, true, map[string]any{
		"version": manifest.Version,
		"url":     manifest.URL,
		"hash":    manifest.Hash,
	})
}

func (s *Store) publishJSON(ctx context.Context, topic string, qos byte, retain bool, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling publish payload for %s: %w", topic, err)
	}
	return s.publishRaw(ctx, topic, qos, retain, body)
}

// publishRaw fails fast when the broker connection hasn't been
// established: callers are responsible for deciding whether to retry
// or persist the intent, per the Fabric's failure semantics.
func (s *Store) publishRaw(ctx context.Context, topic string, qos byte, retain bool, body []byte) error {
	s.mu.Lock()
	cm := s.cm
	s.mu.Unlock()
	if cm == nil {
		return fmt.Errorf("fabric: not connected to broker")
	}

	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: body,
		QoS:     qos,
		Retain:  retain,
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
