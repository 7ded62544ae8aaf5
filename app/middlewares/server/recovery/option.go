package recovery

import (
	"context"

	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/protocol"
	"github.com/favbox/hostbind/protocol/consts"
)

// Handler 在处理器恐慌后被调用，负责记录并改写响应。
type Handler func(ctx context.Context, req *protocol.Request, resp *protocol.Response, err any, stack []byte)

// 表示一个恐慌恢复的自定义选项结构体。
type options struct {
	recoveryHandler Handler
}

// Option 自定义选项的应用函数。
type Option func(o *options)

// 默认的恐慌恢复处理器：记录堆栈并响应 500。
func defaultRecoveryHandler(_ context.Context, req *protocol.Request, resp *protocol.Response, err any, stack []byte) {
	hlog.SystemLogger().Errorf("[恐慌恢复] %s %s 恐慌=%v\n堆栈=%s", req.Method, req.URL, err, stack)
	resp.Reset()
	resp.SetStatusCode(consts.StatusInternalServerError)
	resp.SetBodyString(consts.StatusMessage(consts.StatusInternalServerError))
}

func newOptions(opts ...Option) *options {
	cfg := &options{recoveryHandler: defaultRecoveryHandler}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithRecoveryHandler 自定义恐慌恢复处理器。
func WithRecoveryHandler(f Handler) Option {
	return func(o *options) {
		o.recoveryHandler = f
	}
}
