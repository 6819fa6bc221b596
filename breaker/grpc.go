package breaker

import (
	"context"

	"github.com/ceyewan/fusebox/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 按 keyFn 提取的服务名在注册表中查找熔断器，未注册的名称直接放行。
// 熔断拒绝映射为 codes.Unavailable，超时映射为 codes.DeadlineExceeded，
// 操作错误原样透传。
//
// 使用示例:
//
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(breaker.UnaryClientInterceptor(reg, breaker.ServiceLevelKey())),
//	)
func UnaryClientInterceptor(reg Registry, keyFn KeyFunc) grpc.UnaryClientInterceptor {
	if keyFn == nil {
		keyFn = ServiceLevelKey()
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		brk, ok := reg.Get(keyFn(ctx, method, cc))
		if !ok {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		_, err := brk.Execute(ctx, func() (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, opts...)
		})
		return mapGRPCError(err)
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 熔断保护覆盖流的建立；流建立后的收发错误由调用方处理
//
// 使用示例:
//
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithStreamInterceptor(breaker.StreamClientInterceptor(reg, breaker.MethodLevelKey())),
//	)
func StreamClientInterceptor(reg Registry, keyFn KeyFunc) grpc.StreamClientInterceptor {
	if keyFn == nil {
		keyFn = ServiceLevelKey()
	}

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		brk, ok := reg.Get(keyFn(ctx, method, cc))
		if !ok {
			return streamer(ctx, desc, cc, method, opts...)
		}

		result, err := brk.Execute(ctx, func() (any, error) {
			return streamer(ctx, desc, cc, method, opts...)
		})
		if err != nil {
			return nil, mapGRPCError(err)
		}
		return result.(grpc.ClientStream), nil
	}
}

// mapGRPCError 将熔断器错误映射为 gRPC 状态码
func mapGRPCError(err error) error {
	switch {
	case err == nil:
		return nil
	case xerrors.Is(err, ErrCircuitOpen):
		return status.Error(codes.Unavailable, err.Error())
	case xerrors.Is(err, ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return err
	}
}
