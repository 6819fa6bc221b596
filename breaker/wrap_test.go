package breaker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int
	Name string
}

// TestDo 测试泛型执行助手
func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("保留返回值类型", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		got, err := Do(ctx, cb, func() (*user, error) {
			return &user{ID: 1, Name: "alice"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, &user{ID: 1, Name: "alice"}, got)
	})

	t.Run("错误时返回零值", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		got, err := Do(ctx, cb, func() (*user, error) {
			return nil, assert.AnError
		})
		assert.Same(t, assert.AnError, err)
		assert.Nil(t, got)
	})

	t.Run("熔断拒绝返回零值与OpenError", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 1})

		_, _ = cb.Execute(ctx, failWith(assert.AnError))

		got, err := Do(ctx, cb, func() (int, error) { return 42, nil })
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Zero(t, got)
	})

	t.Run("值类型结果", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		got, err := Do(ctx, cb, func() (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})
}

// TestWrap 测试闭包工厂
func TestWrap(t *testing.T) {
	ctx := context.Background()

	t.Run("Wrap保持函数形状", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		ping := Wrap(cb, func(ctx context.Context) (string, error) {
			return "pong", nil
		})

		got, err := ping(ctx)
		require.NoError(t, err)
		assert.Equal(t, "pong", got)
	})

	t.Run("Wrap1透传参数", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		getUser := Wrap1(cb, func(ctx context.Context, id int) (*user, error) {
			return &user{ID: id}, nil
		})

		got, err := getUser(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 42, got.ID)
	})

	t.Run("Wrap2透传参数", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 3})

		rename := Wrap2(cb, func(ctx context.Context, id int, name string) (*user, error) {
			return &user{ID: id, Name: name}, nil
		})

		got, err := rename(ctx, 1, "bob")
		require.NoError(t, err)
		assert.Equal(t, &user{ID: 1, Name: "bob"}, got)
	})

	t.Run("包装后的函数受熔断保护", func(t *testing.T) {
		cb, _ := newTestBreaker(t, &Config{Name: "svc", FailureThreshold: 1})

		guarded := Wrap(cb, func(ctx context.Context) (string, error) {
			return "", assert.AnError
		})

		_, err := guarded(ctx)
		assert.Same(t, assert.AnError, err)

		// 熔断打开后快速失败
		_, err = guarded(ctx)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})
}
