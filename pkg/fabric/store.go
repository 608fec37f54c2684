// Package fabric is the Message Fabric: the single long-lived MQTT
// connection that parses and dispatches tenant/device topics, publishes
// commands with delivery guarantees, and tracks pending credential
// rotation acknowledgments.
package fabric

import (
	"log/slog"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"

	"github.com/devicefabric/fabric/internal/config"
)

// pendingRotation tracks one in-flight credential rotation awaiting a
// rotation_ack from the device it was sent to.
type pendingRotation struct {
	mac    string
	result chan bool
	once   sync.Once
}

// Store is the Message Fabric. It implements pkg/registry.CommandPublisher
// and pkg/escalation.DeviceCommander.
type Store struct {
	cfg        config.MQTTConfig
	logger     *slog.Logger
	devices    DeviceResolver
	session    SessionHandler
	classifier Classifier

	mu      sync.Mutex
	cm      *autopaho.ConnectionManager
	pending map[string]*pendingRotation
}

// NewStore creates a Message Fabric store. Run must be called to
// actually connect to the broker.
func NewStore(cfg config.MQTTConfig, devices DeviceResolver, sessionHandler SessionHandler, classifier Classifier, logger *slog.Logger) *Store {
	return &Store{
		cfg:        cfg,
		logger:     logger,
		devices:    devices,
		session:    sessionHandler,
		classifier: classifier,
		pending:    make(map[string]*pendingRotation),
	}
}

// Connected reports whether the Fabric currently has a live connection
// manager. It does not guarantee the broker connection itself is up
// (autopaho reconnects transparently) — only that Run has started.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cm != nil
}
