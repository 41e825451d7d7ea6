package service

import (
	"context"
	"strings"

	"ai-finagent-be/internal/pkg/logger"
	"ai-finagent-be/internal/websocket"
	"ai-finagent-be/pkg/events"
	pktNats "ai-finagent-be/pkg/nats" // Renamed to avoid collision

	"github.com/google/uuid"
)

// ProgressDelivery defines how to push real-time pipeline updates.
// Typically implemented by the WebSocket Hub.
type ProgressDelivery interface {
	Send(sessionID uuid.UUID, update websocket.ProgressUpdate)
}

// ProgressService bridges JetStream pipeline events to connected
// WebSocket clients so they can watch a query move through the stages.
type ProgressService struct {
	subscriber *pktNats.Subscriber
	delivery   ProgressDelivery
	logger     logger.ILogger
}

func NewProgressService(sub *pktNats.Subscriber, delivery ProgressDelivery, log logger.ILogger) *ProgressService {
	return &ProgressService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *ProgressService) Start() {
	err := s.subscriber.Subscribe("events.>", "progress-service-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("ProgressService", "Failed to start progress subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("ProgressService", "Progress service started, listening to events.>", nil)
}

func (s *ProgressService) handleEvent(ctx context.Context, event events.Event) error {
	// Strip "events." prefix from type if present (NATS subject includes stream name)
	typeCode := strings.TrimPrefix(event.EventType(), "events.")
	if typeCode != events.TypeStageCompleted && typeCode != events.TypePipelineFinalized {
		return nil
	}

	payload := event.Payload()
	sidRaw, _ := payload["session_id"].(string)
	sessionID, err := uuid.Parse(sidRaw)
	if err != nil {
		s.logger.Warn("ProgressService", "Event carries no valid session_id", map[string]interface{}{"type": typeCode})
		return nil
	}

	update := websocket.ProgressUpdate{
		SessionId: sessionID.String(),
		Event:     typeCode,
		Status:    asString(payload["status"]),
		Stage:     asString(payload["stage"]),
	}
	if cached, ok := payload["cached"].(bool); ok {
		update.Cached = cached
	}
	// JSON numbers decode as float64
	if latency, ok := payload["latency_ms"].(float64); ok {
		update.LatencyMs = int64(latency)
	}

	s.delivery.Send(sessionID, update)
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
