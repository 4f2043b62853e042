package changelog

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-cdc/internal/models"
)

// fakeFetcher serves queued messages, then cancels the run context to
// simulate shutdown once the queue is drained.
type fakeFetcher struct {
	mu       sync.Mutex
	queue    []kafka.Message
	commits  []kafka.Message
	shutdown context.CancelFunc
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		f.shutdown()
		return kafka.Message{}, context.Canceled
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeFetcher) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, msgs...)
	return nil
}

func (f *fakeFetcher) committed() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.commits...)
}

func changeMessage(t *testing.T, offset int64, event models.ChangeEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{
		Topic:  models.TopicDatabaseChanges,
		Offset: offset,
		Key:    []byte(event.Key()),
		Value:  value,
	}
}

func runConsumer(t *testing.T, msgs []kafka.Message) (*fakeFetcher, *test.Hook) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{queue: msgs, shutdown: cancel}
	logger, hook := test.NewNullLogger()
	consumer := NewConsumer(fetcher, logger)

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after draining the queue")
	}
	return fetcher, hook
}

func entriesWithMessage(hook *test.Hook, msg string) []*logrus.Entry {
	var out []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == msg {
			out = append(out, entry)
		}
	}
	return out
}

func TestUserChangeProducesStructuredRecord(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)
	_, hook := runConsumer(t, []kafka.Message{
		changeMessage(t, 0, models.ChangeEvent{
			Operation: models.OpInsert,
			Table:     models.TableUsers,
			Data:      map[string]interface{}{"email": "a@test.com"},
			Timestamp: ts,
		}),
	})

	entries := entriesWithMessage(hook, "User change detected")
	require.Len(t, entries, 1)
	assert.Equal(t, "user_management", entries[0].Data["type"])
	assert.Equal(t, "INSERT", entries[0].Data["operation"])
	assert.Equal(t, "users", entries[0].Data["table"])
	assert.Equal(t, "a@test.com", entries[0].Data["subject"])
	assert.NotNil(t, entries[0].Data["data"])
}

func TestDispatchPerTable(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)
	_, hook := runConsumer(t, []kafka.Message{
		changeMessage(t, 0, models.ChangeEvent{
			Operation: models.OpInsert, Table: models.TableUserActivities,
			Data:      map[string]interface{}{"email": "a@test.com", "activity_type": "login_success"},
			Timestamp: ts,
		}),
		changeMessage(t, 1, models.ChangeEvent{
			Operation: models.OpInsert, Table: models.TableAuditLogs,
			Data:      map[string]interface{}{"email": "a@test.com", "action": "login", "success": true},
			Timestamp: ts,
		}),
		changeMessage(t, 2, models.ChangeEvent{
			Operation: models.OpUpdate, Table: "sessions",
			Data:      map[string]interface{}{"id": 7},
			Timestamp: ts,
		}),
	})

	activity := entriesWithMessage(hook, "Activity change detected")
	require.Len(t, activity, 1)
	assert.Equal(t, "user_activity", activity[0].Data["type"])
	assert.Equal(t, "login_success", activity[0].Data["activity"])

	audit := entriesWithMessage(hook, "Audit log change detected")
	require.Len(t, audit, 1)
	assert.Equal(t, "audit_event", audit[0].Data["type"])
	assert.Equal(t, "login", audit[0].Data["action"])
	assert.Equal(t, true, audit[0].Data["success"])

	// Unrecognized table still produces a generic record
	unknown := entriesWithMessage(hook, "Unknown table change")
	require.Len(t, unknown, 1)
	assert.Equal(t, "UPDATE", unknown[0].Data["operation"])
	assert.Equal(t, "", unknown[0].Data["subject"])
}

func TestMalformedMessageIsDroppedAndOrderingPreserved(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)
	garbage := kafka.Message{
		Topic:  models.TopicDatabaseChanges,
		Offset: 0,
		Value:  []byte("{not json"),
	}
	valid := changeMessage(t, 1, models.ChangeEvent{
		Operation: models.OpInsert,
		Table:     models.TableUsers,
		Data:      map[string]interface{}{"email": "b@test.com"},
		Timestamp: ts,
	})

	fetcher, hook := runConsumer(t, []kafka.Message{garbage, valid})

	var dropped bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && strings.HasPrefix(entry.Message, "Dropping unparsable") {
			dropped = true
			assert.Equal(t, "{not json", entry.Data["payload"])
		}
	}
	assert.True(t, dropped, "drop must be logged at error level")

	// The next valid message on the partition was still processed
	users := entriesWithMessage(hook, "User change detected")
	require.Len(t, users, 1)
	assert.Equal(t, "b@test.com", users[0].Data["subject"])

	// Both messages were committed: dropped ones are not redelivered
	committed := fetcher.committed()
	require.Len(t, committed, 2)
	assert.Equal(t, int64(0), committed[0].Offset)
	assert.Equal(t, int64(1), committed[1].Offset)
}

func TestEveryMessageIsCommitted(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)
	var msgs []kafka.Message
	for i := 0; i < 4; i++ {
		msgs = append(msgs, changeMessage(t, int64(i), models.ChangeEvent{
			Operation: models.OpInsert,
			Table:     models.TableUsers,
			Data:      map[string]interface{}{"email": "a@test.com"},
			Timestamp: ts.Add(time.Duration(i) * time.Second),
		}))
	}

	fetcher, _ := runConsumer(t, msgs)
	assert.Len(t, fetcher.committed(), 4, "commit after each message keeps the group session alive")
}
