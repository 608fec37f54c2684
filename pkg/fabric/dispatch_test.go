package fabric

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/pkg/classify"
	"github.com/devicefabric/fabric/pkg/session"
)

type fakeDevices struct {
	byMAC map[string]db.Device
	byID  map[uuid.UUID]db.Device
}

func (f *fakeDevices) GetActiveDeviceByMAC(_ context.Context, mac string) (db.Device, error) {
	d, ok := f.byMAC[mac]
	if !ok {
		return db.Device{}, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeDevices) GetDeviceByID(_ context.Context, id uuid.UUID) (db.Device, error) {
	d, ok := f.byID[id]
	if !ok {
		return db.Device{}, pgx.ErrNoRows
	}
	return d, nil
}

type fakeSession struct {
	statusCalls int
	alertCalls  int
	resolveCalls int
	classifyCalls int
}

func (f *fakeSession) ApplyStatus(context.Context, uuid.UUID, session.StatusReport) error {
	f.statusCalls++
	return nil
}

func (f *fakeSession) ReconcileOnReconnect(context.Context, uuid.UUID, uuid.UUID, session.StatusReport) {
}

func (f *fakeSession) CreateFromTrigger(context.Context, uuid.UUID, uuid.UUID, session.AlertTrigger) (session.Alert, error) {
	f.alertCalls++
	return session.Alert{}, nil
}

func (f *fakeSession) ResolveFromDevice(context.Context, uuid.UUID) error {
	f.resolveCalls++
	return nil
}

func (f *fakeSession) ApplyClassification(context.Context, uuid.UUID, uuid.UUID, string, classify.Result) (*session.Alert, error) {
	f.classifyCalls++
	return nil, nil
}

type fakeClassifier struct {
	enabled bool
	result  classify.Result
}

func (f *fakeClassifier) Enabled() bool { return f.enabled }
func (f *fakeClassifier) Classify(context.Context, classify.Request) (classify.Result, error) {
	return f.result, nil
}

func newTestStore(devices *fakeDevices, sess *fakeSession, clf *fakeClassifier) *Store {
	return &Store{
		logger:     slog.Default(),
		devices:    devices,
		session:    sess,
		classifier: clf,
		pending:    make(map[string]*pendingRotation),
	}
}

func TestHandleMessageStatusUpdatesSession(t *testing.T) {
	deviceID := uuid.New()
	tenantID := uuid.New()
	devices := &fakeDevices{byMAC: map[string]db.Device{
		"AA:BB:CC:DD:EE:FF": {ID: deviceID, TenantID: tenantID, MAC: "AA:BB:CC:DD:EE:FF"},
	}}
	sess := &fakeSession{}
	s := newTestStore(devices, sess, &fakeClassifier{})

	s.handleMessage("tenant/t1/device/AA:BB:CC:DD:EE:FF/status", []byte(`{"online":true,"ts":1700000000}`))

	if sess.statusCalls != 1 {
		t.Errorf("statusCalls = %d, want 1", sess.statusCalls)
	}
}

func TestHandleMessageUnknownDeviceDropsSilently(t *testing.T) {
	devices := &fakeDevices{byMAC: map[string]db.Device{}}
	sess := &fakeSession{}
	s := newTestStore(devices, sess, &fakeClassifier{})

	s.handleMessage("tenant/t1/device/AA:BB:CC:DD:EE:FF/status", []byte(`{"online":true}`))

	if sess.statusCalls != 0 {
		t.Errorf("statusCalls = %d, want 0 for unknown device", sess.statusCalls)
	}
}

func TestHandleMessageMalformedPayloadDropsSilently(t *testing.T) {
	devices := &fakeDevices{byMAC: map[string]db.Device{
		"AA:BB:CC:DD:EE:FF": {ID: uuid.New(), MAC: "AA:BB:CC:DD:EE:FF"},
	}}
	sess := &fakeSession{}
	s := newTestStore(devices, sess, &fakeClassifier{})

	s.handleMessage("tenant/t1/device/AA:BB:CC:DD:EE:FF/alert", []byte(`not json`))

	if sess.alertCalls != 0 {
		t.Errorf("alertCalls = %d, want 0 for malformed payload", sess.alertCalls)
	}
}

func TestHandleMessageAlertClearedResolvesAlert(t *testing.T) {
	deviceID := uuid.New()
	devices := &fakeDevices{byMAC: map[string]db.Device{
		"AA:BB:CC:DD:EE:FF": {ID: deviceID, MAC: "AA:BB:CC:DD:EE:FF"},
	}}
	sess := &fakeSession{}
	s := newTestStore(devices, sess, &fakeClassifier{})

	s.handleMessage("tenant/t1/device/AA:BB:CC:DD:EE:FF/alert_cleared", nil)

	if sess.resolveCalls != 1 {
		t.Errorf("resolveCalls = %d, want 1", sess.resolveCalls)
	}
}

func TestHandleMessageMotionSkippedWhenClassifierDisabled(t *testing.T) {
	devices := &fakeDevices{byMAC: map[string]db.Device{
		"AA:BB:CC:DD:EE:FF": {ID: uuid.New(), MAC: "AA:BB:CC:DD:EE:FF"},
	}}
	sess := &fakeSession{}
	s := newTestStore(devices, sess, &fakeClassifier{enabled: false})

	s.handleMessage("tenant/t1/device/AA:BB:CC:DD:EE:FF/motion", []byte(`{"sensorData":{}}`))

	if sess.classifyCalls != 0 {
		t.Errorf("classifyCalls = %d, want 0 when classifier disabled", sess.classifyCalls)
	}
}

func TestHandleMessageMotionAppliesClassificationWhenEnabled(t *testing.T) {
	devices := &fakeDevices{byMAC: map[string]db.Device{
		"AA:BB:CC:DD:EE:FF": {ID: uuid.New(), MAC: "AA:BB:CC:DD:EE:FF"},
	}}
	sess := &fakeSession{}
	s := newTestStore(devices, sess, &fakeClassifier{enabled: true, result: classify.Result{Label: "rodent", Confidence: 0.9}})

	s.handleMessage("tenant/t1/device/AA:BB:CC:DD:EE:FF/motion", []byte(`{"sensorData":{}}`))

	if sess.classifyCalls != 1 {
		t.Errorf("classifyCalls = %d, want 1", sess.classifyCalls)
	}
}

func TestHandleMessageUnrecognizedTopicDropsSilently(t *testing.T) {
	s := newTestStore(&fakeDevices{}, &fakeSession{}, &fakeClassifier{})
	s.handleMessage("server/status", []byte(`{}`))
}

func TestNormalizeTimestampDetectsSecondsVsMillis(t *testing.T) {
	if normalizeTimestamp(0) != nil {
		t.Error("expected nil for zero timestamp")
	}
	seconds := normalizeTimestamp(1700000000)
	millis := normalizeTimestamp(1700000000000)
	if seconds == nil || millis == nil {
		t.Fatal("expected non-nil timestamps")
	}
	if !seconds.Equal(*millis) {
		t.Errorf("seconds-form %v and millis-form %v should normalize to the same instant", *seconds, *millis)
	}
}
