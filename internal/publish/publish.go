package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/kingrea/modgraph/internal/logging"
	"github.com/kingrea/modgraph/internal/workflow/engine"
	"github.com/kingrea/modgraph/internal/workflow/view"
)

// Publisher is the minimal event-publishing seam.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Message is the payload sent for one thread of a snapshot.
type Message struct {
	Generation   uint64             `json:"generation"`
	ResolutionID string             `json:"resolution_id"`
	ResolvedAt   time.Time          `json:"resolved_at"`
	View         view.ExecutionView `json:"view"`
}

// Subject returns the subject a thread's view is published on. Characters
// that carry meaning in subjects are replaced.
func Subject(prefix, thread string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, thread)
	return prefix + "." + token
}

// Snapshot publishes every thread view of snap under prefix. It stops at the
// first failure.
func Snapshot(ctx context.Context, pub Publisher, prefix string, snap *view.Snapshot) error {
	if snap == nil {
		return nil
	}
	for _, v := range snap.Threads {
		payload, err := json.Marshal(Message{
			Generation:   snap.Generation,
			ResolutionID: snap.ResolutionID,
			ResolvedAt:   snap.ResolvedAt,
			View:         v,
		})
		if err != nil {
			return fmt.Errorf("publish: encode %s: %w", v.Thread, err)
		}
		subject := Subject(prefix, v.Thread)
		if err := pub.Publish(ctx, subject, payload); err != nil {
			return fmt.Errorf("publish: %s: %w", subject, err)
		}
	}
	return nil
}

// Listener adapts a Publisher to engine snapshots. Failures are logged; the
// snapshot stays published locally either way.
func Listener(ctx context.Context, pub Publisher, prefix string, log logr.Logger) engine.Listener {
	log = log.WithName("publish")
	return func(snap *view.Snapshot) {
		if err := Snapshot(ctx, pub, prefix, snap); err != nil {
			log.Error(err, "failed to publish snapshot", "generation", snap.Generation)
			return
		}
		log.V(logging.VERBOSE).Info("published snapshot", "generation", snap.Generation, "threads", len(snap.Threads))
	}
}
