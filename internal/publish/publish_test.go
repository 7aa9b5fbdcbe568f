package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/modgraph/internal/logging"
	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/view"
)

type sent struct {
	subject string
	payload []byte
}

type memoryPublisher struct {
	sent   []sent
	failOn string
}

func (m *memoryPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	if subject == m.failOn {
		return errors.New("no responders")
	}
	m.sent = append(m.sent, sent{subject: subject, payload: payload})
	return nil
}

func (m *memoryPublisher) Close() error { return nil }

func testSnapshot() *view.Snapshot {
	return &view.Snapshot{
		Generation:   3,
		ResolutionID: "res-3",
		ResolvedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Reset:        []string{"BallPercept"},
		Threads: []view.ExecutionView{
			{Thread: "Upper", Providers: []workflow.Provider{{Module: "CameraProvider", Representation: "CameraImage", Thread: "Upper"}}},
			{Thread: "Cognition", Reset: []string{"BallPercept"}},
		},
	}
}

func TestSnapshotPublishesEveryThread(t *testing.T) {
	pub := &memoryPublisher{}
	require.NoError(t, Snapshot(context.Background(), pub, "modgraph.views", testSnapshot()))
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "modgraph.views.Upper", pub.sent[0].subject)
	assert.Equal(t, "modgraph.views.Cognition", pub.sent[1].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.sent[1].payload, &msg))
	assert.Equal(t, uint64(3), msg.Generation)
	assert.Equal(t, "res-3", msg.ResolutionID)
	assert.Equal(t, []string{"BallPercept"}, msg.View.Reset)
}

func TestSnapshotStopsAtFirstFailure(t *testing.T) {
	pub := &memoryPublisher{failOn: "modgraph.views.Upper"}
	err := Snapshot(context.Background(), pub, "modgraph.views", testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modgraph.views.Upper")
	assert.Empty(t, pub.sent)
	assert.NoError(t, Snapshot(context.Background(), pub, "x", nil))
}

func TestSubjectSanitizesThreadNames(t *testing.T) {
	assert.Equal(t, "views.Motion", Subject("views", "Motion"))
	assert.Equal(t, "views.Upper_Cam_", Subject("views", "Upper.Cam*"))
	assert.Equal(t, "views.a_b", Subject("views", "a b"))
}

func TestListenerPublishes(t *testing.T) {
	pub := &memoryPublisher{}
	listener := Listener(context.Background(), pub, "robot", logging.NewTestLogger())
	listener(testSnapshot())
	require.Len(t, pub.sent, 2)

	failing := &memoryPublisher{failOn: "robot.Upper"}
	Listener(context.Background(), failing, "robot", logging.NewTestLogger())(testSnapshot())
	assert.Empty(t, failing.sent)
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewNATSPublisher(ctx, "nats://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect nats")
}
