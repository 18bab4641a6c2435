package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor 記錄每一個 unary 呼叫的結果與耗時
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Info()
		}
		event.Str("method", info.FullMethod).
			Stringer("code", status.Code(err)).
			Dur("elapsed", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}
