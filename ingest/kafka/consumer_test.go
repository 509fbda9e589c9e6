package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/ingest/kafka"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/store/memory"
	"github.com/warp/attendance-engine/workcode"
)

var day = core.NewDate(2025, time.March, 12)

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafkago.Message
	committed []int64
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

type failingIngester struct{ err error }

func (f failingIngester) Ingest(context.Context, []biometric.Event) (attendance.IngestResult, error) {
	return attendance.IngestResult{}, f.err
}

func message(t *testing.T, offset int64, m kafka.PunchMessage) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return kafkago.Message{Offset: offset, Value: b}
}

func punch(id string, code workcode.Code, hour int) kafka.PunchMessage {
	return kafka.PunchMessage{
		ID:               id,
		EmployeeID:       "emp-1",
		DeviceID:         "gate-1",
		Timestamp:        day.At(time.UTC, hour, 0),
		WorkCode:         code,
		VerificationType: "FACE",
		ConfidenceScore:  95,
	}
}

func newService(t *testing.T) (*attendance.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.SaveProfile(context.Background(), policy.Profile{EmployeeID: "emp-1", Type: policy.TypeRegular}))
	return attendance.NewService(store, attendance.NewReconciler(nil, nil, time.UTC, nil), nil), store
}

func TestConsumer_RunIngestsAndCommits(t *testing.T) {
	// GIVEN: a day of punches on the topic, one of them delivered twice
	svc, store := newService(t)
	reader := &fakeReader{queue: []kafkago.Message{
		message(t, 1, punch("p1", workcode.Entry, 8)),
		message(t, 2, punch("p2", workcode.Exit, 17)),
		message(t, 3, punch("p2", workcode.Exit, 17)),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// WHEN: the consumer drains the queue
	go func() { done <- kafka.NewConsumer(reader, svc, nil).Run(ctx) }()
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// THEN: the day is complete and every offset is committed
	rec, err := store.GetRecord(context.Background(), "emp-1", day)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusComplete, rec.Status)
	assert.Equal(t, core.HoursOf(9), rec.Hours.Worked)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumer_CommitsPoisonMessages(t *testing.T) {
	svc, _ := newService(t)
	reader := &fakeReader{}
	c := kafka.NewConsumer(reader, svc, nil)
	ctx := context.Background()

	c.Handle(ctx, kafkago.Message{Offset: 1, Value: []byte("{not json")})

	bad := punch("p1", workcode.Entry, 8)
	bad.ConfidenceScore = 300
	c.Handle(ctx, message(t, 2, bad))

	ghost := punch("p2", workcode.Entry, 8)
	ghost.EmployeeID = "ghost"
	c.Handle(ctx, message(t, 3, ghost))

	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumer_LeavesTransientFailuresUncommitted(t *testing.T) {
	reader := &fakeReader{}
	c := kafka.NewConsumer(reader, failingIngester{err: errors.New("connection reset")}, nil)

	c.Handle(context.Background(), message(t, 7, punch("p1", workcode.Entry, 8)))

	assert.Empty(t, reader.committed)
}

func TestPunchMessage_Event(t *testing.T) {
	var m kafka.PunchMessage
	require.NoError(t, json.Unmarshal([]byte(`{
		"employee_id": "emp-1",
		"device_id": "gate-1",
		"timestamp": "2025-03-12T08:00:00Z",
		"work_code": 4,
		"confidence_score": 90
	}`), &m))

	e, err := m.Event()
	require.NoError(t, err)
	assert.Equal(t, workcode.LunchStart, e.WorkCode)
	assert.Equal(t, biometric.VerifyFingerprint, e.Verification)
	assert.NotEmpty(t, e.ID)

	again, err := m.Event()
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID, "derived IDs are stable across redeliveries")

	m.VerificationType = "RETINA"
	_, err = m.Event()
	assert.ErrorIs(t, err, core.ErrValidation)
}
