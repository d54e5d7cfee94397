package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	notifyws "github.com/skilltrade-app/SkillTradeBack/internal/websocket"
)

// Session lifecycle events pushed to participants.
const (
	EventSessionScheduled = "session.scheduled"
	EventSessionStarted   = "session.started"
	EventSessionCompleted = "session.completed"
	EventSessionCancelled = "session.cancelled"
)

// Notifier is the fire-and-forget notification collaborator. Implementations
// must never block a state transition; failures are logged, not returned.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event string, payload any)
}

// HubNotifier delivers events over the websocket hub.
type HubNotifier struct {
	hub    *notifyws.Hub
	logger *logrus.Logger
}

func NewHubNotifier(hub *notifyws.Hub, logger *logrus.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) Notify(_ context.Context, userID int64, event string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).WithField("event", event).Warn("notification payload encode failed")
		return
	}

	delivered := n.hub.Publish(&notifyws.Event{
		Type:      event,
		UserID:    strconv.FormatInt(userID, 10),
		Payload:   encoded,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if !delivered {
		n.logger.WithFields(logrus.Fields{
			"event":   event,
			"user_id": userID,
		}).Warn("notification dropped: hub buffer full")
	}
}

// LogNotifier is used when no hub is wired (tests, one-off tools).
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n *LogNotifier) Notify(_ context.Context, userID int64, event string, _ any) {
	n.Logger.WithFields(logrus.Fields{
		"event":   event,
		"user_id": userID,
	}).Info("notification")
}
