package jsbind

import (
	"strconv"
	"time"

	"github.com/dop251/goja"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
	"github.com/favbox/hostbind/protocol/http1/parser"
)

// jsParser 把 parser.Parser 的事件转发给脚本对象上的回调槽位。
type jsParser struct {
	rt    *goja.Runtime
	obj   *goja.Object
	p     *parser.Parser
	slots [kOnExecute]goja.Callable
}

func newJSParser(rt *goja.Runtime, obj *goja.Object) *jsParser {
	jp := &jsParser{rt: rt, obj: obj}
	jp.p = parser.New(parser.Callbacks{
		OnMessageBegin:    jp.onMessageBegin,
		OnHeaders:         jp.onHeaders,
		OnHeadersComplete: jp.onHeadersComplete,
		OnBody:            jp.onBody,
		OnMessageComplete: jp.onMessageComplete,
	})
	jp.p.SetOwner(obj)
	return jp
}

func newParserClass(rt *goja.Runtime) *goja.Object {
	ctor, proto := newClass(rt, func(call goja.ConstructorCall) any {
		return newJSParser(rt, call.This)
	})

	_ = ctor.Set("REQUEST", int(llhttp.TypeRequest))
	_ = ctor.Set("RESPONSE", int(llhttp.TypeResponse))
	_ = ctor.Set("kOnMessageBegin", kOnMessageBegin)
	_ = ctor.Set("kOnHeaders", kOnHeaders)
	_ = ctor.Set("kOnHeadersComplete", kOnHeadersComplete)
	_ = ctor.Set("kOnBody", kOnBody)
	_ = ctor.Set("kOnMessageComplete", kOnMessageComplete)
	_ = ctor.Set("kOnExecute", kOnExecute)
	_ = ctor.Set("kOnTimeout", kOnTimeout)

	method := func(name string, fn func(jp *jsParser, call goja.FunctionCall) goja.Value) {
		_ = proto.Set(name, func(call goja.FunctionCall) goja.Value {
			return fn(unwrap[*jsParser](rt, call.This), call)
		})
	}
	method("initialize", (*jsParser).initialize)
	method("execute", (*jsParser).execute)
	method("finish", (*jsParser).finish)
	method("pause", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		jp.p.Pause()
		return goja.Undefined()
	})
	method("resume", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		jp.p.Resume()
		return goja.Undefined()
	})
	method("remove", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		jp.p.Remove()
		return goja.Undefined()
	})
	method("close", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		jp.p.Remove()
		jp.p.Free()
		jp.slots = [kOnExecute]goja.Callable{}
		return goja.Undefined()
	})
	method("free", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		jp.p.Free()
		return goja.Undefined()
	})
	method("getCurrentBuffer", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		b := jp.p.CurrentBuffer()
		if b == nil {
			return goja.Undefined()
		}
		return bytesValue(rt, b)
	})
	method("duration", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		return rt.ToValue(float64(jp.p.Duration()) / float64(time.Millisecond))
	})
	method("headersCompleted", func(jp *jsParser, _ goja.FunctionCall) goja.Value {
		return rt.ToValue(jp.p.HeadersCompleted())
	})
	return ctor
}

// initialize(type, resource, maxHeaderSize, lenient, connections)
func (jp *jsParser) initialize(call goja.FunctionCall) goja.Value {
	typ := llhttp.Type(call.Argument(0).ToInteger())
	if typ != llhttp.TypeRequest && typ != llhttp.TypeResponse {
		panic(jp.rt.NewTypeError("type must be REQUEST or RESPONSE"))
	}
	maxHeaderSize := int(call.Argument(2).ToInteger())
	lenient := llhttp.Lenient(call.Argument(3).ToInteger())

	var list parser.ConnectionsList
	if v := call.Argument(4); !isNullish(v) {
		list = unwrap[*jsConnections](jp.rt, v).list
	}

	// 回调只在这里读取一次
	for i := range jp.slots {
		jp.slots[i] = nil
		if fn, ok := goja.AssertFunction(jp.obj.Get(strconv.Itoa(i))); ok {
			jp.slots[i] = fn
		}
	}

	jp.p.Initialize(typ, maxHeaderSize, lenient, list)
	return goja.Undefined()
}

// execute 传入 null 或 undefined 表示输入结束，等同 finish。
func (jp *jsParser) execute(call goja.FunctionCall) goja.Value {
	if isNullish(call.Argument(0)) {
		return jp.finish(call)
	}
	n, err := jp.p.Execute(toBytes(jp.rt, call.Argument(0)))
	if err != nil {
		return jp.parseError(err)
	}
	return jp.rt.ToValue(n)
}

func (jp *jsParser) finish(goja.FunctionCall) goja.Value {
	if err := jp.p.Finish(); err != nil {
		return jp.parseError(err)
	}
	return goja.Undefined()
}

// parseError 把解析错误转换为带 code、reason 与 bytesParsed 的 Error 对象。
// 由回调抛出的异常原样抛回脚本。
func (jp *jsParser) parseError(err error) goja.Value {
	pe, ok := parser.AsParseError(err)
	if !ok {
		panic(jp.rt.NewGoError(err))
	}
	var ex *goja.Exception
	if errs.As(pe.Cause, &ex) {
		panic(ex)
	}
	if pe.Cause != nil {
		panic(jp.rt.NewGoError(pe.Cause))
	}
	obj := jp.rt.NewGoError(pe)
	_ = obj.Set("code", pe.Code)
	_ = obj.Set("reason", pe.Reason)
	_ = obj.Set("bytesParsed", pe.BytesParsed)
	return obj
}

func (jp *jsParser) call(slot int, args ...goja.Value) (goja.Value, error) {
	fn := jp.slots[slot]
	if fn == nil {
		return goja.Undefined(), nil
	}
	return fn(jp.obj, args...)
}

func (jp *jsParser) onMessageBegin() error {
	_, err := jp.call(kOnMessageBegin)
	return err
}

func (jp *jsParser) onHeaders(headers []string, url string) error {
	_, err := jp.call(kOnHeaders, stringArray(jp.rt, headers), jp.rt.ToValue(url))
	return err
}

func (jp *jsParser) onHeadersComplete(info parser.HeadersInfo) (int, error) {
	undefined := goja.Undefined()
	headers, method, url, statusCode, statusMessage := undefined, undefined, undefined, undefined, undefined
	if info.HasHeaders {
		headers = stringArray(jp.rt, info.Headers)
	}
	if info.HasURL {
		url = jp.rt.ToValue(info.URL)
	}
	switch info.Type {
	case llhttp.TypeRequest:
		method = jp.rt.ToValue(int(info.Method))
	case llhttp.TypeResponse:
		statusCode = jp.rt.ToValue(info.StatusCode)
		statusMessage = jp.rt.ToValue(info.StatusMessage)
	}

	r, err := jp.call(kOnHeadersComplete,
		jp.rt.ToValue(info.VersionMajor),
		jp.rt.ToValue(info.VersionMinor),
		headers,
		method,
		url,
		statusCode,
		statusMessage,
		jp.rt.ToValue(info.Upgrade),
		jp.rt.ToValue(info.ShouldKeepAlive),
	)
	if err != nil {
		return 0, err
	}
	return int(r.ToInteger()), nil
}

func (jp *jsParser) onBody(b []byte) error {
	_, err := jp.call(kOnBody, bytesValue(jp.rt, b))
	return err
}

func (jp *jsParser) onMessageComplete() error {
	_, err := jp.call(kOnMessageComplete)
	return err
}
