package notify

import (
	"context"

	"github.com/platinummonkey/idsync/pkg/contextkeys"
	"github.com/sirupsen/logrus"
)

// FlashQueue stores notices against a browser session until the next page
// render pops them.
type FlashQueue interface {
	PushFlash(ctx context.Context, sessionID string, notice Notice) error
}

// FlashNotifier surfaces notices to the user as one-shot toasts
type FlashNotifier struct {
	queue FlashQueue
	log   *logrus.Logger
}

// NewFlashNotifier creates a toast sink over queue
func NewFlashNotifier(queue FlashQueue, log *logrus.Logger) *FlashNotifier {
	if log == nil {
		log = logrus.New()
	}
	return &FlashNotifier{queue: queue, log: log}
}

// Notify queues the notice for the session carried by ctx. Notices without
// a session are dropped; the operator log still has them.
func (n *FlashNotifier) Notify(ctx context.Context, notice Notice) {
	sessionID := contextkeys.GetSessionID(ctx)
	if sessionID == "" {
		n.log.WithField("title", notice.Title).Debug("no session for flash notice, dropping")
		return
	}

	if err := n.queue.PushFlash(ctx, sessionID, notice); err != nil {
		n.log.WithError(err).WithField("title", notice.Title).Warn("failed to queue flash notice")
	}
}
