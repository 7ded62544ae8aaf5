package recovery

import (
	"context"
	"runtime/debug"

	"github.com/favbox/hostbind/app"
	"github.com/favbox/hostbind/protocol"
)

// Recovery 返回一个可以从处理器恐慌中恢复的中间件。
// 默认打印错误与堆栈并写入 500，可通过 WithRecoveryHandler 自定义。
func Recovery(opts ...Option) app.Middleware {
	cfg := newOptions(opts...)
	return func(next app.HandlerFunc) app.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request, resp *protocol.Response) {
			defer func() {
				if err := recover(); err != nil {
					cfg.recoveryHandler(ctx, req, resp, err, debug.Stack())
				}
			}()
			next(ctx, req, resp)
		}
	}
}
