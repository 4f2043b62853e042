package broker

import "sync"

// MockSink records published messages for inspection in tests
type MockSink struct {
	PublishErr error // returned by every Publish when set

	mu       sync.Mutex
	messages []MockMessage
}

// MockMessage is one recorded publish
type MockMessage struct {
	Topic string
	Key   string
	Value []byte
}

// Publish records the message, or fails with PublishErr
func (m *MockSink) Publish(topic, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.messages = append(m.messages, MockMessage{Topic: topic, Key: key, Value: value})
	return nil
}

// Close is a no-op
func (m *MockSink) Close() error {
	return nil
}

// Messages returns a copy of everything recorded so far
func (m *MockSink) Messages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.messages...)
}

// MessagesFor returns the recorded messages for one topic
func (m *MockSink) MessagesFor(topic string) []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MockMessage
	for _, msg := range m.messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}
