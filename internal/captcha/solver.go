package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/courtlens/courtlens/pkg/logger"
)

// Solver recovers the text of an image challenge.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// ManualSolver parks image challenges in the session store and waits for a
// human to answer them through the API. Useful for local runs without a
// vision service.
type ManualSolver struct {
	sessions *SessionStore
	interval time.Duration
	log      *logger.Logger
}

// NewManualSolver builds a solver backed by store. The caller keeps using the
// same store to accept answers.
func NewManualSolver(store *SessionStore, log *logger.Logger) *ManualSolver {
	return &ManualSolver{
		sessions: store,
		interval: 2 * time.Second,
		log:      log,
	}
}

// Solve publishes the image as a session and polls until an operator answers
// it, the session expires, or ctx is done.
func (m *ManualSolver) Solve(ctx context.Context, image []byte) (string, error) {
	sess := m.sessions.IssueImage(image)
	m.log.Info("challenge waiting for manual answer",
		"session_id", sess.ID,
		"expires_at", sess.ExpiresAt.Format(time.RFC3339))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("manual solve aborted: %w", ctx.Err())
		case <-ticker.C:
			if answer, ok := m.sessions.Solution(sess.ID); ok {
				m.log.Debug("manual answer received", "session_id", sess.ID)
				return answer, nil
			}
			if _, ok := m.sessions.Get(sess.ID); !ok {
				return "", fmt.Errorf("challenge session %s expired before it was answered", sess.ID)
			}
		}
	}
}
