package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes notices to the operator log
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a log sink. A nil logger falls back to logrus.New().
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	if log == nil {
		log = logrus.New()
	}
	return &LogNotifier{log: log}
}

// Notify logs the notice at a level matching its severity
func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	entry := n.log.WithContext(ctx).WithFields(logrus.Fields{
		"title":      notice.Title,
		"subject_id": notice.SubjectID,
	})
	if notice.RequestID != "" {
		entry = entry.WithField("request_id", notice.RequestID)
	}
	if notice.Err != nil {
		entry = entry.WithError(notice.Err)
	}

	switch notice.Level {
	case LevelError:
		entry.Error(notice.Message)
	case LevelWarning:
		entry.Warn(notice.Message)
	default:
		entry.Info(notice.Message)
	}
}
