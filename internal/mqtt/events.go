package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jvaltonen/facewatch-go/internal/ledger"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// MarkEvent is the JSON payload published when attendance is marked.
type MarkEvent struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// MarkListener returns an attendance mark listener that publishes each new
// mark to the configured topic. Publish failures are logged and dropped; the
// ledger row is already durable by the time the listener runs.
func MarkListener(client Client, topic string) func(rec ledger.Record) {
	log := logging.ForService("mqtt")
	return func(rec ledger.Record) {
		payload, err := json.Marshal(MarkEvent{
			Name:   rec.Name,
			Date:   rec.Date,
			Time:   rec.Time,
			Status: rec.Status,
		})
		if err != nil {
			log.Error("encoding mark event failed", "name", rec.Name, "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := client.Publish(ctx, topic, string(payload)); err != nil {
			log.Warn("publishing mark event failed", "topic", topic, "error", err)
		}
	}
}
