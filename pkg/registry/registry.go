// Package registry is the Device Registry: the authoritative keeper of
// device lifecycle state (enrollment, rotation, migration, revocation).
// Every state transition is committed in a single database transaction;
// in-memory state elsewhere in the process is advisory only.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devicefabric/fabric/internal/audit"
	"github.com/devicefabric/fabric/internal/db"
)

// BrokerAuthority is the subset of pkg/brokerauth.Authority the registry
// needs: writing and removing broker credentials, plus forcing the
// normally-debounced broker reload so a credential rotation can push its
// new password before asking the device to use it.
type BrokerAuthority interface {
	UpsertCredential(ctx context.Context, username, passwordPlain string) error
	DeleteCredential(ctx context.Context, username string) error
	ForceReload() error
}

// CommandPublisher is the subset of pkg/fabric the registry needs to
// push device-bound commands outside of escalation.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, tenantID, mac, command string, payload map[string]any) error
	PublishRevoke(ctx context.Context, tenantID, mac, token string) error
	ClearRetainedRevoke(ctx context.Context, tenantID uuid.UUID, mac string) error
	RequestRotation(ctx context.Context, tenantID, mac, newPasswordPlain string, timeout time.Duration) (acked bool, err error)
}

// rotationAckTimeout bounds how long a credential rotation waits for the
// device to acknowledge before rolling back.
const rotationAckTimeout = 30 * time.Second

// claimingWindowTTL is how long a claiming window stays open after
// OpenClaimingWindow or a refresh.
const claimingWindowTTL = 10 * time.Minute

// revocationTokenTTL is how long a revocation token remains presentable.
const revocationTokenTTL = 5 * time.Minute

// purgeAfter is the soft-delete retention period before a device row is
// permanently removed.
const purgeAfter = 6 * 30 * 24 * time.Hour

// Store is the Device Registry.
type Store struct {
	pool      *pgxpool.Pool
	q         *db.Queries
	logger    *slog.Logger
	authority BrokerAuthority
	fabric    CommandPublisher
	audit     *audit.Writer
	brokerURL string
}

// NewStore creates a Device Registry store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger, authority BrokerAuthority, fabric CommandPublisher, auditWriter *audit.Writer, brokerURL string) *Store {
	return &Store{
		pool:      pool,
		q:         db.New(pool),
		logger:    logger,
		authority: authority,
		fabric:    fabric,
		audit:     auditWriter,
		brokerURL: brokerURL,
	}
}

// logAudit writes a claim-lifecycle audit entry if an audit writer was
// configured. detail may be nil.
func (s *Store) logAudit(mac, source string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	var payload json.RawMessage
	if detail != nil {
		encoded, err := json.Marshal(detail)
		if err != nil {
			s.logger.Error("marshaling audit detail", "error", err)
			return
		}
		payload = encoded
	}
	s.audit.Log(audit.Entry{DeviceMAC: mac, Source: source, Detail: payload})
}
