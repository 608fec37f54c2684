package fabric

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestRotation publishes a rotate_credentials command with a fresh
// rotation-id and waits up to timeout for a matching rotation_ack. The
// resolver is single-shot: whichever of the ack or the deadline fires
// first wins, and the other is a no-op.
func (s *Store) RequestRotation(ctx context.Context, tenantID, mac, newPasswordPlain string, timeout time.Duration) (bool, error) {
	rotationID := uuid.New().String()
	pr := &pendingRotation{mac: mac, result: make(chan bool, 1)}

	s.mu.Lock()
	s.pending[rotationID] = pr
	s.mu.Unlock()

	timer := time.AfterFunc(timeout, func() {
		s.resolveRotation(rotationID, false)
	})
	defer timer.Stop()

	if err := s.PublishCommand(ctx, tenantID, mac, "rotate_credentials", map[string]any{
		"password":   newPasswordPlain,
		"rotationId": rotationID,
	}); err != nil {
		s.mu.Lock()
		delete(s.pending, rotationID)
		s.mu.Unlock()
		return false, fmt.Errorf("publishing rotate_credentials command: %w", err)
	}

	select {
	case acked := <-pr.result:
		return acked, nil
	case <-ctx.Done():
		s.resolveRotation(rotationID, false)
		return false, ctx.Err()
	}
}

// handleRotationAck resolves a pending rotation if mac matches the
// device the rotation was sent to. A mismatched MAC is logged and
// ignored rather than resolving the wrong rotation.
func (s *Store) handleRotationAck(rotationID, mac string) {
	s.mu.Lock()
	pr, ok := s.pending[rotationID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if pr.mac != mac {
		s.logger.Warn("fabric: rotation ack MAC mismatch, ignoring", "rotation_id", rotationID, "expected_mac", pr.mac, "got_mac", mac)
		return
	}
	s.resolveRotation(rotationID, true)
}

func (s *Store) resolveRotation(rotationID string, acked bool) {
	s.mu.Lock()
	pr, ok := s.pending[rotationID]
	if ok {
		delete(s.pending, rotationID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	pr.once.Do(func() {
		pr.result <- acked
	})
}
