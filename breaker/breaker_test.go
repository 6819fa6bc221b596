package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可控时钟，用于确定性地驱动窗口与恢复超时
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestBreaker 创建基于内存存储与可控时钟的熔断器
func newTestBreaker(t *testing.T, cfg *Config, opts ...Option) (*circuitBreaker, *fakeClock) {
	t.Helper()

	store, err := newMemoryStore()
	require.NoError(t, err)

	opts = append(opts, WithStore(store))
	brk, err := New(cfg, opts...)
	require.NoError(t, err)

	cb := brk.(*circuitBreaker)
	clock := newFakeClock()
	cb.clock = clock.Now
	return cb, clock
}

func succeed() (any, error) { return "ok", nil }

func failWith(err error) func() (any, error) {
	return func() (any, error) { return nil, err }
}

// TestNewBreaker 测试熔断器创建与配置校验
func TestNewBreaker(t *testing.T) {
	t.Run("正常创建", func(t *testing.T) {
		brk, err := New(&Config{Name: "svc", FailureThreshold: 3})
		require.NoError(t, err)
		require.NotNil(t, brk)
		assert.Equal(t, "svc", brk.Name())
	})

	t.Run("nil配置", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrConfigNil)
	})

	t.Run("服务名为空", func(t *testing.T) {
		_, err := New(&Config{FailureThreshold: 3})
		assert.ErrorIs(t, err, ErrNameEmpty)
	})

	t.Run("失败阈值非法", func(t *testing.T) {
		_, err := New(&Config{Name: "svc"})
		assert.Error(t, err)

		_, err = New(&Config{Name: "svc", FailureThreshold: -1})
		assert.Error(t, err)
	})

	t.Run("默认值填充", func(t *testing.T) {
		cfg := &Config{Name: "svc", FailureThreshold: 3}
		_, err := New(cfg)
		require.NoError(t, err)

		assert.Equal(t, DefaultFailureWindow, cfg.FailureWindow)
		assert.Equal(t, DefaultRecoveryTimeout, cfg.RecoveryTimeout)
		assert.Equal(t, DefaultSuccessThreshold, cfg.SuccessThreshold)
		assert.Equal(t, DefaultCallTimeout, cfg.Timeout)
	})
}

// TestExecuteClosed 测试闭合状态下的执行
func TestExecuteClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("成功调用透传结果", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		result, err := cb.Execute(ctx, succeed)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)

		state, err := cb.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateClosed, state)
	})

	t.Run("操作错误原样透传", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		opErr := errors.New("backend exploded")
		_, err := cb.Execute(ctx, failWith(opErr))
		// 必须是同一个错误对象，不允许包装
		assert.Same(t, opErr, err)
	})

	t.Run("闭合空闲成功不产生存储写入", func(t *testing.T) {
		store, err := newMemoryStore()
		require.NoError(t, err)

		brk, err := New(&Config{Name: "svc", FailureThreshold: 3}, WithStore(store))
		require.NoError(t, err)

		_, err = brk.Execute(ctx, succeed)
		require.NoError(t, err)

		// 从未写入：记录不存在
		_, err = store.Get(ctx, "svc")
		assert.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("成功将失败计数归零", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		_, _ = cb.Execute(ctx, failWith(errors.New("boom")))
		_, _ = cb.Execute(ctx, failWith(errors.New("boom")))

		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, rec.Failures)

		_, err = cb.Execute(ctx, succeed)
		require.NoError(t, err)

		rec, err = cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Failures)
		assert.Equal(t, StateClosed, rec.State)
	})
}

// TestThresholdOpens 测试失败阈值触发熔断
func TestThresholdOpens(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("第N次失败打开熔断器", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		for i := 0; i < 2; i++ {
			_, _ = cb.Execute(ctx, failWith(boom))
			state, _ := cb.State(ctx)
			assert.Equal(t, StateClosed, state, "第 %d 次失败后应保持闭合", i+1)
		}

		_, _ = cb.Execute(ctx, failWith(boom))
		state, _ := cb.State(ctx)
		assert.Equal(t, StateOpen, state)
	})

	t.Run("打开后快速失败且fn不被调用", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 2})

		_, _ = cb.Execute(ctx, failWith(boom))
		_, _ = cb.Execute(ctx, failWith(boom))

		invoked := false
		_, err := cb.Execute(ctx, func() (any, error) {
			invoked = true
			return nil, nil
		})

		assert.False(t, invoked, "打开状态下 fn 不应被调用")
		assert.ErrorIs(t, err, ErrCircuitOpen)

		var openErr *OpenError
		require.ErrorAs(t, err, &openErr)
		assert.Equal(t, "svc", openErr.Service)
		assert.False(t, openErr.NextAttempt.IsZero())
	})

	t.Run("快速失败不修改状态", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 2})

		_, _ = cb.Execute(ctx, failWith(boom))
		_, _ = cb.Execute(ctx, failWith(boom))

		before, err := cb.Snapshot(ctx)
		require.NoError(t, err)

		_, _ = cb.Execute(ctx, succeed)
		_, _ = cb.Execute(ctx, succeed)

		after, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

// TestWindowReset 测试失败统计窗口
func TestWindowReset(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("窗口过期后失败计数清零", func(t *testing.T) {
		cb, clock := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 2,
			FailureWindow:    60 * time.Second,
		})

		_, _ = cb.Execute(ctx, failWith(boom))

		// 超过窗口后再失败：计数从零重新累计，不会打开
		clock.Advance(61 * time.Second)
		_, _ = cb.Execute(ctx, failWith(boom))

		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateClosed, rec.State)
		assert.Equal(t, 1, rec.Failures)
	})

	t.Run("窗口内连续失败正常累计", func(t *testing.T) {
		cb, clock := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 2,
			FailureWindow:    60 * time.Second,
		})

		_, _ = cb.Execute(ctx, failWith(boom))
		clock.Advance(30 * time.Second)
		_, _ = cb.Execute(ctx, failWith(boom))

		state, _ := cb.State(ctx)
		assert.Equal(t, StateOpen, state)
	})
}

// TestRecovery 测试恢复超时与半开探测
func TestRecovery(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	open := func(t *testing.T) (*circuitBreaker, *fakeClock) {
		cb, clock := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 2,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
		})
		_, _ = cb.Execute(ctx, failWith(boom))
		_, _ = cb.Execute(ctx, failWith(boom))

		state, _ := cb.State(ctx)
		require.Equal(t, StateOpen, state)
		return cb, clock
	}

	t.Run("恢复超时前快速失败", func(t *testing.T) {
		cb, clock := open(t)

		clock.Advance(29 * time.Second)
		_, err := cb.Execute(ctx, succeed)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("恢复超时后转入半开并放行探测", func(t *testing.T) {
		cb, clock := open(t)

		clock.Advance(31 * time.Second)
		result, err := cb.Execute(ctx, succeed)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)

		// 半开状态已持久化（SuccessThreshold = 2，还差一次成功）
		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateHalfOpen, rec.State)
		assert.Equal(t, 1, rec.Successes)
	})

	t.Run("半开转换是惰性的只读接口不触发", func(t *testing.T) {
		cb, clock := open(t)

		clock.Advance(31 * time.Second)

		// Snapshot/State 不触发惰性转换，仍返回存储中的打开记录
		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateOpen, rec.State)

		state, err := cb.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateOpen, state)
	})
}

// TestHalfOpen 测试半开状态的关闭与重新打开
func TestHalfOpen(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	halfOpen := func(t *testing.T) (*circuitBreaker, *fakeClock) {
		cb, clock := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 2,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
		})
		_, _ = cb.Execute(ctx, failWith(boom))
		_, _ = cb.Execute(ctx, failWith(boom))
		clock.Advance(31 * time.Second)
		return cb, clock
	}

	t.Run("连续成功达到阈值后关闭并清零计数", func(t *testing.T) {
		cb, _ := halfOpen(t)

		_, err := cb.Execute(ctx, succeed)
		require.NoError(t, err)
		_, err = cb.Execute(ctx, succeed)
		require.NoError(t, err)

		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateClosed, rec.State)
		assert.Equal(t, 0, rec.Failures)
		assert.Equal(t, 0, rec.Successes)
		assert.Equal(t, int64(0), rec.LastFailureTime)
		assert.Equal(t, int64(0), rec.NextAttemptTime)
	})

	t.Run("任何失败立即重新打开", func(t *testing.T) {
		cb, clock := halfOpen(t)

		// 一次成功进入半开
		_, err := cb.Execute(ctx, succeed)
		require.NoError(t, err)

		before := epochMillis(clock.Now())
		_, _ = cb.Execute(ctx, failWith(boom))

		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateOpen, rec.State)
		assert.Equal(t, 0, rec.Successes, "重新打开后成功计数应被丢弃")
		assert.GreaterOrEqual(t, rec.NextAttemptTime, before+(30*time.Second).Milliseconds(),
			"NextAttemptTime 应从重新打开时刻重新计算")
	})
}

// TestTimeout 测试调用超时竞速
func TestTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("超时计为失败并返回超时错误", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 3,
			Timeout:          30 * time.Millisecond,
		})

		done := make(chan struct{})
		_, err := cb.Execute(ctx, func() (any, error) {
			defer close(done)
			time.Sleep(150 * time.Millisecond)
			return "late", nil
		})

		assert.ErrorIs(t, err, ErrTimeout)

		var timeoutErr *TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Equal(t, "svc", timeoutErr.Service)
		assert.Equal(t, 30*time.Millisecond, timeoutErr.Timeout)

		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Failures)

		// fn 最终完成，其结果被丢弃且 goroutine 不泄漏
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("fn goroutine 未完成")
		}
	})

	t.Run("超时内完成正常返回", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 3,
			Timeout:          time.Second,
		})

		result, err := cb.Execute(ctx, succeed)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})

	t.Run("连续超时打开熔断器", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 2,
			Timeout:          10 * time.Millisecond,
		})

		slow := func() (any, error) {
			time.Sleep(100 * time.Millisecond)
			return nil, nil
		}
		_, _ = cb.Execute(ctx, slow)
		_, _ = cb.Execute(ctx, slow)

		state, _ := cb.State(ctx)
		assert.Equal(t, StateOpen, state)
	})
}

// TestContextCancellation 测试调用方上下文取消
func TestContextCancellation(t *testing.T) {
	t.Run("取消原样返回且不触碰计数器", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{
			Name:             "svc",
			FailureThreshold: 3,
			Timeout:          time.Second,
		})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := cb.Execute(ctx, func() (any, error) {
			time.Sleep(500 * time.Millisecond)
			return nil, nil
		})
		assert.ErrorIs(t, err, context.Canceled)

		// 不计失败，也不写存储
		rec, err := cb.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Failures)
	})
}

// TestReset 测试手动复位
func TestReset(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("复位后下一次调用立即放行", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 2})

		_, _ = cb.Execute(ctx, failWith(boom))
		_, _ = cb.Execute(ctx, failWith(boom))

		state, _ := cb.State(ctx)
		require.Equal(t, StateOpen, state)

		require.NoError(t, cb.Reset(ctx))

		rec, err := cb.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, newClosedRecord(), rec)

		result, err := cb.Execute(ctx, succeed)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})

	t.Run("闭合状态下复位幂等", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 2})

		require.NoError(t, cb.Reset(ctx))
		require.NoError(t, cb.Reset(ctx))

		state, _ := cb.State(ctx)
		assert.Equal(t, StateClosed, state)
	})
}

// TestEndToEndScenario 测试完整的状态机走查
// 阈值 3 / 恢复 30s / 半开成功阈值 2，时间用可控时钟驱动
func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down")

	cb, clock := newTestBreaker(t, &Config{
		Name:             "llm-analysis",
		FailureThreshold: 3,
		FailureWindow:    60 * time.Second,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	})

	// 三次失败打开熔断器
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(ctx, failWith(boom))
		assert.Same(t, boom, err)
	}
	state, _ := cb.State(ctx)
	require.Equal(t, StateOpen, state)

	// 熔断期间快速失败
	_, err := cb.Execute(ctx, succeed)
	require.ErrorIs(t, err, ErrCircuitOpen)

	// 恢复超时过后进入半开，第一次探测成功
	clock.Advance(31 * time.Second)
	_, err = cb.Execute(ctx, succeed)
	require.NoError(t, err)

	state, _ = cb.State(ctx)
	require.Equal(t, StateHalfOpen, state)

	// 第二次探测成功，关闭
	_, err = cb.Execute(ctx, succeed)
	require.NoError(t, err)

	rec, err := cb.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, rec.State)
	assert.Equal(t, 0, rec.Failures)
	assert.Equal(t, 0, rec.Successes)
}

// TestStateChangeHook 测试状态变更回调
func TestStateChangeHook(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	type change struct {
		service  string
		from, to State
	}
	var changes []change

	store, err := newMemoryStore()
	require.NoError(t, err)

	brk, err := New(&Config{
		Name:             "svc",
		FailureThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	},
		WithStore(store),
		WithStateChangeHook(func(service string, from, to State) {
			changes = append(changes, change{service, from, to})
		}),
	)
	require.NoError(t, err)

	cb := brk.(*circuitBreaker)
	clock := newFakeClock()
	cb.clock = clock.Now

	_, _ = cb.Execute(ctx, failWith(boom))
	_, _ = cb.Execute(ctx, failWith(boom)) // closed -> open
	clock.Advance(31 * time.Second)
	_, _ = cb.Execute(ctx, succeed) // open -> half_open -> closed

	require.Len(t, changes, 3)
	assert.Equal(t, change{"svc", StateClosed, StateOpen}, changes[0])
	assert.Equal(t, change{"svc", StateOpen, StateHalfOpen}, changes[1])
	assert.Equal(t, change{"svc", StateHalfOpen, StateClosed}, changes[2])
}
