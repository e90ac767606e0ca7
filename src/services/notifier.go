package services

import (
	"github.com/username/tradevault/backend/src/logger"
)

type logNotifier struct{}

// NewLogNotifier returns a Notifier that records notifications through the
// structured logger. The delivery channel to the client is the JSON response
// body; this surface exists for operators and for tests.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) Notify(kind, message, description string) {
	if logger.L == nil {
		return
	}
	switch kind {
	case "error":
		logger.L.Warn("User notification", "kind", kind, "message", message, "description", description)
	default:
		logger.L.Info("User notification", "kind", kind, "message", message, "description", description)
	}
}
