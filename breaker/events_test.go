package breaker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fusebox/testkit"
)

// TestTransitionEventShape 测试事件的 JSON 编码
func TestTransitionEventShape(t *testing.T) {
	event := TransitionEvent{
		ID:         "0b06cbc2-5a4d-4f86-a0f4-13a7d0cbb1a1",
		Service:    "llm-analysis",
		From:       StateClosed,
		To:         StateOpen,
		Failures:   3,
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "llm-analysis", decoded["service"])
	assert.Equal(t, "closed", decoded["from"])
	assert.Equal(t, "open", decoded["to"])
	assert.Equal(t, float64(3), decoded["failures"])
	assert.NotEmpty(t, decoded["id"])
	assert.NotEmpty(t, decoded["occurred_at"])
}

// TestNATSEventPublishing 测试状态变更事件发布
// 需要本地 NATS (localhost:4222)，-short 时跳过
func TestNATSEventPublishing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping nats integration test in short mode")
	}

	ctx := context.Background()
	conn := testkit.GetNATSConnector(t)

	subject := "fusebox.test.transitions." + testkit.NewID()
	received := make(chan *nats.Msg, 8)
	sub, err := conn.GetClient().ChanSubscribe(subject, received)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	brk, err := New(&Config{Name: "evented-svc", FailureThreshold: 1},
		WithNATSConnector(conn),
		WithEventSubject(subject),
	)
	require.NoError(t, err)

	// 触发 closed -> open
	_, _ = brk.Execute(ctx, func() (any, error) { return nil, assert.AnError })

	select {
	case msg := <-received:
		var event TransitionEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "evented-svc", event.Service)
		assert.Equal(t, StateClosed, event.From)
		assert.Equal(t, StateOpen, event.To)
		assert.Equal(t, 1, event.Failures)
		assert.NotEmpty(t, event.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("未收到状态变更事件")
	}
}
