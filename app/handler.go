// Package app 定义请求处理器及其中间件的签名。
package app

import (
	"context"

	"github.com/favbox/hostbind/protocol"
)

// HandlerFunc 是请求处理器函数。处理器返回后 resp 被写出，req 与 resp 随即被复用。
type HandlerFunc func(ctx context.Context, req *protocol.Request, resp *protocol.Response)

// Middleware 包装处理器。
type Middleware func(next HandlerFunc) HandlerFunc

// Chain 按顺序套用中间件，第一个中间件位于最外层。
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
