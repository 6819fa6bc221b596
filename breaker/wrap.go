package breaker

import "context"

// Do 执行受熔断保护的函数，保留返回值类型
//
// 使用示例:
//
//	user, err := breaker.Do(ctx, brk, func() (*User, error) {
//	    return client.GetUser(id)
//	})
func Do[T any](ctx context.Context, b Breaker, fn func() (T, error)) (T, error) {
	val, err := b.Execute(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	// Execute 原样返回 fn 的结果，断言必然成功；nil 结果单独处理
	if val == nil {
		var zero T
		return zero, nil
	}
	return val.(T), nil
}

// Wrap 将无参函数包装为受熔断保护的版本
//
// 使用示例:
//
//	guardedPing := breaker.Wrap(brk, client.Ping)
//	status, err := guardedPing(ctx)
func Wrap[T any](b Breaker, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, b, func() (T, error) {
			return fn(ctx)
		})
	}
}

// Wrap1 将单参函数包装为受熔断保护的版本
func Wrap1[A, T any](b Breaker, fn func(ctx context.Context, a A) (T, error)) func(ctx context.Context, a A) (T, error) {
	return func(ctx context.Context, a A) (T, error) {
		return Do(ctx, b, func() (T, error) {
			return fn(ctx, a)
		})
	}
}

// Wrap2 将双参函数包装为受熔断保护的版本
func Wrap2[A, B, T any](b Breaker, fn func(ctx context.Context, a A, bb B) (T, error)) func(ctx context.Context, a A, bb B) (T, error) {
	return func(ctx context.Context, a A, bb B) (T, error) {
		return Do(ctx, b, func() (T, error) {
			return fn(ctx, a, bb)
		})
	}
}
