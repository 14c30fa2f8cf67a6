// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的结构化日志实例，由 Init 在服务启动时配置。
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 使用服务名初始化全局 Logger。
// 所有日志都会带上 service 字段，方便在聚合平台中按服务过滤。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个与当前链路关联的 Logger。
// 如果 ctx 中存在有效的 Span，会自动附加 trace_id/span_id 字段，
// 使日志可以和 Jaeger 中的链路互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &Logger
	}
	l := Logger.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
