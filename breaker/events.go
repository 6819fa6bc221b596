package breaker

import (
	"encoding/json"
	"time"

	"github.com/ceyewan/fusebox/clog"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultEventSubject 状态变更事件的默认 NATS 主题
const DefaultEventSubject = "fusebox.breaker.transitions"

// StateChangeHook 进程内状态变更回调
// 在状态转换的调用路径上同步执行
type StateChangeHook func(service string, from, to State)

// TransitionEvent 状态变更事件，以 JSON 发布到 NATS
type TransitionEvent struct {
	// ID 事件唯一标识 (uuid)
	ID string `json:"id"`

	// Service 服务名
	Service string `json:"service"`

	// From 源状态
	From State `json:"from"`

	// To 目标状态
	To State `json:"to"`

	// Failures 转换时刻的失败计数
	Failures int `json:"failures"`

	// OccurredAt 转换发生时间
	OccurredAt time.Time `json:"occurred_at"`
}

// eventPublisher 将状态变更事件发布到 NATS
// 发布是尽力而为的：任何错误只记录日志，绝不影响受保护的调用
type eventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  clog.Logger
}

// newEventPublisher 创建事件发布器
func newEventPublisher(conn *nats.Conn, subject string, logger clog.Logger) *eventPublisher {
	return &eventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

// publish 发布一次状态变更
func (p *eventPublisher) publish(service string, from, to State, failures int) {
	event := TransitionEvent{
		ID:         uuid.NewString(),
		Service:    service,
		From:       from,
		To:         to,
		Failures:   failures,
		OccurredAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode transition event",
			clog.String("service", service),
			clog.Error(err))
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("failed to publish transition event",
			clog.String("service", service),
			clog.String("subject", p.subject),
			clog.Error(err))
	}
}
