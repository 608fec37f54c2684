package fabric

import (
	"fmt"
	"strings"
)

const (
	kindStatus       = "status"
	kindOTAProgress  = "ota/progress"
	kindSnapshot     = "camera/snapshot"
	kindAlert        = "alert"
	kindAlertCleared = "alert_cleared"
	kindRotationAck  = "rotation_ack"
	kindMotion       = "motion"
)

// subscription describes one entry in the fixed subscription set.
type subscription struct {
	filter string
	qos    byte
}

// subscriptions is the fixed set of wildcard filters the Fabric
// subscribes to on every (re-)connect.
var subscriptions = []subscription{
	{"tenant/+/device/+/status", 1},
	{"tenant/+/device/+/ota/progress", 0},
	{"tenant/+/device/+/camera/snapshot", 0},
	{"tenant/+/device/+/alert", 0},
	{"tenant/+/device/+/alert_cleared", 0},
	{"tenant/+/device/+/rotation_ack", 1},
	{"tenant/+/device/+/motion", 0},
}

const serverStatusTopic = "server/status"

// commandTopic builds a device command topic. The path segment is the
// literal "cmd", not "command" — a historical bug elsewhere chose the
// wrong segment and this is the canonical spelling.
func commandTopic(tenantID, mac, command string) string {
	return fmt.Sprintf("tenant/%s/device/%s/cmd/%s", tenantID, mac, command)
}

func revokeTopic(tenantID, mac string) string {
	return fmt.Sprintf("tenant/%s/device/%s/revoke", tenantID, mac)
}

// latestManifestTopic builds the retained manifest-notice topic for kind
// ("firmware" or "filesystem"). An empty tenantID builds the global
// counterpart new/reconnecting devices fall back to when the tenant has
// not published its own manifest.
func latestManifestTopic(tenantID, kind string) string {
	if tenantID == "" {
		return fmt.Sprintf("global/%s/latest", kind)
	}
	return fmt.Sprintf("tenant/%s/%s/latest", tenantID, kind)
}

// parsedTopic is a device-bound inbound message's topic, decomposed.
type parsedTopic struct {
	TenantID string
	MAC      string
	Kind     string
}

// parseTopic decomposes an inbound "tenant/{tenant}/device/{mac}/{kind...}"
// topic. ok is false for anything that doesn't match the grammar
// (including the retained firmware/server-status topics, which this
// Fabric only publishes, never subscribes to).
func parseTopic(topic string) (parsedTopic, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 5 || parts[0] != "tenant" || parts[2] != "device" {
		return parsedTopic{}, false
	}
	return parsedTopic{
		TenantID: parts[1],
		MAC:      parts[3],
		Kind:     strings.Join(parts[4:], "/"),
	}, true
}
