package api

import (
	"reviewguard/app"
)

// SSEEventBroadcaster adapts the SSEHub to app.EventSink
type SSEEventBroadcaster struct {
	sseHub *SSEHub
}

// NewSSEEventBroadcaster creates a new SSE event broadcaster
func NewSSEEventBroadcaster(sseHub *SSEHub) *SSEEventBroadcaster {
	return &SSEEventBroadcaster{sseHub: sseHub}
}

// Publish converts a run event and queues it on the hub
func (seb *SSEEventBroadcaster) Publish(event app.RunEvent) {
	streamEvent := StreamEvent{
		StreamID:  event.StreamID,
		EventType: event.Type,
		RunID:     event.RunID.String(),
		Algorithm: event.Algorithm,
		Timestamp: event.Timestamp,
	}

	if it := event.Iteration; it != nil {
		streamEvent.Data = map[string]interface{}{
			"iteration":       it.Iteration,
			"training_size":   it.TrainingSize,
			"held_out_size":   it.HeldOutSize,
			"promoted":        it.Promoted,
			"mean_confidence": it.MeanConfidence,
		}
	}
	if event.Error != "" {
		streamEvent.Data = map[string]interface{}{"error": event.Error}
	}

	seb.sseHub.Broadcast(streamEvent)
}
