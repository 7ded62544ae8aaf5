package jsbind

import (
	"time"

	"github.com/dop251/goja"
	"github.com/favbox/hostbind/common/timer"
	"github.com/favbox/hostbind/protocol/http1/conns"
	"github.com/favbox/hostbind/protocol/http1/parser"
)

// jsConnections 是脚本侧的连接表。脚本单协程运行，因此使用无锁的 conns.List。
type jsConnections struct {
	list *conns.List[*parser.Parser]
}

func newConnectionsClass(rt *goja.Runtime) *goja.Object {
	ctor, proto := newClass(rt, func(goja.ConstructorCall) any {
		return &jsConnections{list: conns.New[*parser.Parser]()}
	})

	method := func(name string, fn func(c *jsConnections, call goja.FunctionCall) []*parser.Parser) {
		_ = proto.Set(name, func(call goja.FunctionCall) goja.Value {
			return parserArray(rt, fn(unwrap[*jsConnections](rt, call.This), call))
		})
	}
	method("all", func(c *jsConnections, _ goja.FunctionCall) []*parser.Parser {
		return c.list.All()
	})
	method("idle", func(c *jsConnections, _ goja.FunctionCall) []*parser.Parser {
		return c.list.Idle()
	})
	method("active", func(c *jsConnections, _ goja.FunctionCall) []*parser.Parser {
		return c.list.Active()
	})
	// expired(headersTimeout, requestTimeout)，单位毫秒，0 表示不限制
	method("expired", func(c *jsConnections, call goja.FunctionCall) []*parser.Parser {
		headersTimeout := time.Duration(call.Argument(0).ToInteger()) * time.Millisecond
		requestTimeout := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		return c.list.Expired(conns.Deadlines(timer.Nanotime(), headersTimeout, requestTimeout))
	})
	return ctor
}

// parserArray 返回各解析器所属的脚本对象。
func parserArray(rt *goja.Runtime, ps []*parser.Parser) *goja.Object {
	items := make([]any, 0, len(ps))
	for _, p := range ps {
		if obj, ok := p.Owner().(*goja.Object); ok {
			items = append(items, obj)
		}
	}
	return rt.NewArray(items...)
}
