package broker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-cdc/internal/models"
)

func newTestPublisher(sink Sink) *Publisher {
	logger, _ := test.NewNullLogger()
	p := NewPublisher(sink, logger)
	p.connected.Store(true)
	p.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestPublishDatabaseChangeKeyAndPayload(t *testing.T) {
	sink := &MockSink{}
	p := newTestPublisher(sink)

	sourceTS := time.Date(2024, 2, 29, 8, 30, 0, 0, time.UTC)
	err := p.PublishDatabaseChange(models.ChangeEvent{
		Operation: models.OpInsert,
		Table:     models.TableUsers,
		Data:      map[string]interface{}{"email": "a@test.com"},
		Timestamp: sourceTS,
	})
	require.NoError(t, err)

	msgs := sink.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.TopicDatabaseChanges, msgs[0].Topic)
	assert.Equal(t, "users-INSERT", msgs[0].Key)

	var decoded models.ChangeEvent
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, "INSERT", decoded.Operation)
	assert.Equal(t, "users", decoded.Table)
	assert.Equal(t, "a@test.com", decoded.Data["email"])
	assert.True(t, decoded.Timestamp.Equal(sourceTS))
	assert.False(t, decoded.PublishedAt.IsZero(), "publish timestamp must be attached")
}

func TestPublishUserActivityRoundTrip(t *testing.T) {
	sink := &MockSink{}
	p := newTestPublisher(sink)

	err := p.PublishUserActivity("a@test.com", "login_success", map[string]interface{}{"method": "password"})
	require.NoError(t, err)

	msgs := sink.MessagesFor(models.TopicUserActivities)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@test.com", msgs[0].Key)

	var decoded models.UserActivity
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, "a@test.com", decoded.Email)
	assert.Equal(t, "login_success", decoded.ActivityType)
	assert.Equal(t, "password", decoded.ActivityData["method"])
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestPublishAuditLogAnonymousKey(t *testing.T) {
	sink := &MockSink{}
	p := newTestPublisher(sink)

	err := p.PublishAuditLog("", "login", "10.0.0.1", "curl/8.0", false, "invalid credentials")
	require.NoError(t, err)

	msgs := sink.MessagesFor(models.TopicAuditLogs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "anonymous", msgs[0].Key)

	var decoded models.AuditLog
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, "login", decoded.Action)
	assert.False(t, decoded.Success)
	assert.Equal(t, "invalid credentials", decoded.ErrorMessage)
}

func TestPublishWhileDisconnectedIsDroppedNoOp(t *testing.T) {
	sink := &MockSink{}
	logger, _ := test.NewNullLogger()
	p := NewPublisher(sink, logger) // never connected

	err := p.PublishUserActivity("a@test.com", "login_success", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, sink.Messages(), "nothing must reach the sink while disconnected")
	assert.False(t, p.IsConnected())
}

func TestPublishSurfacesSinkFailure(t *testing.T) {
	sink := &MockSink{PublishErr: errors.New("broker unavailable")}
	p := newTestPublisher(sink)

	err := p.PublishDatabaseChange(models.ChangeEvent{
		Operation: models.OpInsert,
		Table:     models.TableUsers,
		Data:      map[string]interface{}{"email": "a@test.com"},
		Timestamp: time.Now(),
	})
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestCloseDisconnects(t *testing.T) {
	sink := &MockSink{}
	p := newTestPublisher(sink)
	require.True(t, p.IsConnected())

	require.NoError(t, p.Close())
	assert.False(t, p.IsConnected())
	assert.ErrorIs(t, p.PublishUserActivity("a@test.com", "logout", nil), ErrNotConnected)
}

func TestSameKeyMessagesKeepRelativeOrder(t *testing.T) {
	sink := &MockSink{}
	p := newTestPublisher(sink)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.PublishUserActivity("a@test.com", "login_success",
			map[string]interface{}{"seq": i}))
	}

	msgs := sink.MessagesFor(models.TopicUserActivities)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		var decoded models.UserActivity
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, float64(i), decoded.ActivityData["seq"])
	}
}
