package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fusebox/clog"
	"github.com/ceyewan/fusebox/metrics"
)

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	cfg    *Config
	store  Store
	logger clog.Logger
	meter  metrics.Meter
	hook   StateChangeHook
	events *eventPublisher

	// 可替换时钟，测试中用于控制窗口与恢复时间
	clock func() time.Time

	requestsTotal    metrics.Counter
	transitionsTotal metrics.Counter
	stateGauge       metrics.Gauge
}

// newBreaker 创建熔断器实例（内部函数）
// cfg 已完成校验与默认值填充，store 已构建完毕
func newBreaker(cfg *Config, store Store, opt *options) *circuitBreaker {
	logger := opt.logger.With(clog.String("service", cfg.Name))

	cb := &circuitBreaker{
		cfg:    cfg,
		store:  store,
		logger: logger,
		meter:  opt.meter,
		hook:   opt.hook,
		clock:  time.Now,
	}

	if opt.natsConn != nil {
		cb.events = newEventPublisher(opt.natsConn.GetClient(), opt.eventSubject, logger)
	}

	// 指标在构造时创建一次，调用路径上只做记录
	cb.requestsTotal, _ = opt.meter.Counter(MetricRequestsTotal, "Total guarded calls by outcome")
	cb.transitionsTotal, _ = opt.meter.Counter(MetricStateTransitionsTotal, "Total state transitions")
	cb.stateGauge, _ = opt.meter.Gauge(MetricState, "Current breaker state (0=closed, 1=half_open, 2=open)")

	return cb
}

// Name 返回受保护服务的名称
func (cb *circuitBreaker) Name() string {
	return cb.cfg.Name
}

// callResult fn 的执行结果，经缓冲通道传出
type callResult struct {
	val any
	err error
}

// Execute 执行受熔断保护的函数
func (cb *circuitBreaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	now := cb.clock()
	rec := cb.loadRecord(ctx)

	// 打开状态：未到探测时间则快速失败，fn 不会被调用
	if rec.State == StateOpen {
		if epochMillis(now) < rec.NextAttemptTime {
			cb.countRequest(ctx, OutcomeRejected)
			cb.logger.Warn("call rejected, circuit is open",
				clog.Int("failures", rec.Failures),
				clog.Time("next_attempt", time.UnixMilli(rec.NextAttemptTime)))
			return nil, &OpenError{
				Service:     cb.cfg.Name,
				NextAttempt: time.UnixMilli(rec.NextAttemptTime),
			}
		}

		// 恢复超时已过，惰性转入半开探测（没有任何后台定时器）
		rec.State = StateHalfOpen
		rec.Successes = 0
		cb.persist(ctx, rec)
		cb.transition(ctx, StateOpen, StateHalfOpen, rec.Failures)
	}

	val, err, outcome := cb.invoke(ctx, fn)

	switch outcome {
	case outcomeCanceled:
		// 调用方取消：原样返回，不触碰计数器
		return nil, err
	case OutcomeSuccess:
		cb.countRequest(ctx, OutcomeSuccess)
		cb.recordSuccess(ctx, rec)
		return val, nil
	default:
		cb.countRequest(ctx, outcome)
		cb.recordFailure(ctx, rec, cb.clock())
		return nil, err
	}
}

// outcomeCanceled 调用方上下文取消（不计入任何指标标签）
const outcomeCanceled = "canceled"

// invoke 将 fn 与超时竞速
//
// fn 在独立的 goroutine 上执行；超时先到时返回超时错误，fn 最终的结果被丢弃
// （缓冲通道保证 goroutine 不泄漏）。底层工作的取消是协作式的：fn 忽略取消时
// 会在后台继续执行直到完成。调用方上下文的取消同样结束竞速，错误原样返回。
func (cb *circuitBreaker) invoke(ctx context.Context, fn func() (any, error)) (any, error, string) {
	done := make(chan callResult, 1)
	go func() {
		val, err := fn()
		done <- callResult{val: val, err: err}
	}()

	timer := time.NewTimer(cb.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err, OutcomeFailure
		}
		return res.val, nil, OutcomeSuccess
	case <-timer.C:
		return nil, &TimeoutError{Service: cb.cfg.Name, Timeout: cb.cfg.Timeout}, OutcomeTimeout
	case <-ctx.Done():
		return nil, ctx.Err(), outcomeCanceled
	}
}

// recordSuccess 成功记账
func (cb *circuitBreaker) recordSuccess(ctx context.Context, rec *Record) {
	switch {
	case rec.State == StateHalfOpen:
		rec.Successes++
		if rec.Successes >= cb.cfg.SuccessThreshold {
			// 探测通过，写回全零的闭合记录
			cb.persist(ctx, newClosedRecord())
			cb.transition(ctx, StateHalfOpen, StateClosed, 0)
			return
		}
		cb.persist(ctx, rec)
		cb.logger.Debug("half-open probe succeeded",
			clog.Int("successes", rec.Successes),
			clog.Int("success_threshold", cb.cfg.SuccessThreshold))

	case rec.Failures > 0:
		// 闭合状态下的成功将失败计数整体归零（非滑动窗口）
		rec.Failures = 0
		rec.Successes = 0
		cb.persist(ctx, rec)

	default:
		// 闭合且无失败：不产生任何存储写入
	}
}

// recordFailure 失败记账
func (cb *circuitBreaker) recordFailure(ctx context.Context, rec *Record, now time.Time) {
	nowMs := epochMillis(now)

	// 距最近一次失败超过统计窗口，计数从零重新累计
	if rec.LastFailureTime > 0 && nowMs-rec.LastFailureTime > cb.cfg.FailureWindow.Milliseconds() {
		rec.Failures = 0
	}

	rec.Failures++
	rec.LastFailureTime = nowMs

	switch {
	case rec.State == StateHalfOpen:
		// 半开状态下任何失败立即重新打开
		cb.open(ctx, rec, StateHalfOpen, nowMs)
	case rec.Failures >= cb.cfg.FailureThreshold:
		cb.open(ctx, rec, StateClosed, nowMs)
	default:
		cb.persist(ctx, rec)
		cb.logger.Debug("failure recorded",
			clog.Int("failures", rec.Failures),
			clog.Int("failure_threshold", cb.cfg.FailureThreshold))
	}
}

// open 转入打开状态
func (cb *circuitBreaker) open(ctx context.Context, rec *Record, from State, nowMs int64) {
	rec.State = StateOpen
	rec.Successes = 0
	rec.NextAttemptTime = nowMs + cb.cfg.RecoveryTimeout.Milliseconds()
	cb.persist(ctx, rec)
	cb.transition(ctx, from, StateOpen, rec.Failures)
}

// State 返回当前状态（只读，不触发惰性转换）
func (cb *circuitBreaker) State(ctx context.Context) (State, error) {
	return cb.loadRecord(ctx).State, nil
}

// Snapshot 返回当前状态记录的副本（只读，不触发惰性转换）
// 打开状态下即使恢复超时已过，返回的仍是存储中的原始记录
func (cb *circuitBreaker) Snapshot(ctx context.Context) (*Record, error) {
	return cb.loadRecord(ctx), nil
}

// Reset 手动复位：无条件写回闭合默认记录
func (cb *circuitBreaker) Reset(ctx context.Context) error {
	prev := cb.loadRecord(ctx)

	if err := cb.store.Set(ctx, cb.cfg.Name, newClosedRecord(), stateTTL); err != nil {
		return err
	}

	cb.logger.Info("circuit breaker manually reset",
		clog.String("previous_state", prev.State.String()),
		clog.Int("failures", prev.Failures))

	if prev.State != StateClosed {
		cb.transition(ctx, prev.State, StateClosed, 0)
	}
	return nil
}

// loadRecord 读取状态记录
// 记录不存在时返回闭合默认值（不写回）；存储故障绝不让调用失败，
// 读失败时按闭合默认值处理
func (cb *circuitBreaker) loadRecord(ctx context.Context) *Record {
	rec, err := cb.store.Get(ctx, cb.cfg.Name)
	if err != nil {
		return newClosedRecord()
	}
	return rec
}

// persist 写回状态记录，失败只记录日志
func (cb *circuitBreaker) persist(ctx context.Context, rec *Record) {
	if err := cb.store.Set(ctx, cb.cfg.Name, rec, stateTTL); err != nil {
		cb.logger.Warn("failed to persist breaker state", clog.Error(err))
	}
}

// transition 状态转换的统一出口：日志、指标、回调、事件
func (cb *circuitBreaker) transition(ctx context.Context, from, to State, failures int) {
	cb.logger.Info("circuit breaker state changed",
		clog.String("from", from.String()),
		clog.String("to", to.String()),
		clog.Int("failures", failures))

	if cb.transitionsTotal != nil {
		cb.transitionsTotal.Inc(ctx,
			metrics.L(LabelService, cb.cfg.Name),
			metrics.L(LabelFromState, from.String()),
			metrics.L(LabelToState, to.String()))
	}
	if cb.stateGauge != nil {
		cb.stateGauge.Set(ctx, float64(to), metrics.L(LabelService, cb.cfg.Name))
	}

	if cb.hook != nil {
		cb.hook(cb.cfg.Name, from, to)
	}
	if cb.events != nil {
		cb.events.publish(cb.cfg.Name, from, to, failures)
	}
}

// countRequest 记录一次调用结果
func (cb *circuitBreaker) countRequest(ctx context.Context, outcome string) {
	if cb.requestsTotal != nil {
		cb.requestsTotal.Inc(ctx,
			metrics.L(LabelService, cb.cfg.Name),
			metrics.L(LabelOutcome, outcome))
	}
}
