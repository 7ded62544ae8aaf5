// Package jsbind 把 HTTP/1 解析器与 Cookie 容器注册为 goja 原生模块。
//
//	registry := require.NewRegistry()
//	registry.RegisterNativeModule("http_parser", jsbind.RequireHTTPParser())
//	registry.RegisterNativeModule("cookies", jsbind.RequireCookies())
//	registry.Enable(vm)
//
// 模块中的对象只能在创建它们的 Runtime 所在协程上使用。
package jsbind

import (
	"strconv"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
)

// 解析器回调所在的属性下标。
const (
	kOnMessageBegin = iota
	kOnHeaders
	kOnHeadersComplete
	kOnBody
	kOnMessageComplete
	kOnExecute
	kOnTimeout
)

// handleKey 是保存 Go 端对象的不可枚举属性。
const handleKey = "_handle"

var lenientFlags = map[string]llhttp.Lenient{
	"kLenientNone":                   0,
	"kLenientHeaders":                llhttp.LenientHeaders,
	"kLenientChunkedLength":          llhttp.LenientChunkedLength,
	"kLenientKeepAlive":              llhttp.LenientKeepAlive,
	"kLenientTransferEncoding":       llhttp.LenientTransferEncoding,
	"kLenientVersion":                llhttp.LenientVersion,
	"kLenientDataAfterClose":         llhttp.LenientDataAfterClose,
	"kLenientOptionalLFAfterCR":      llhttp.LenientOptionalLFAfterCR,
	"kLenientOptionalCRLFAfterChunk": llhttp.LenientOptionalCRLFAfterChunk,
	"kLenientOptionalCRBeforeLF":     llhttp.LenientOptionalCRBeforeLF,
	"kLenientSpacesAfterChunkSize":   llhttp.LenientSpacesAfterChunkSize,
	"kLenientAll":                    llhttp.LenientSpacesAfterChunkSize<<1 - 1,
}

// RequireHTTPParser 返回 HTTPParser 与 ConnectionsList 所在模块的加载器。
func RequireHTTPParser() require.ModuleLoader {
	return func(rt *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)
		_ = exports.Set("HTTPParser", newParserClass(rt))
		_ = exports.Set("ConnectionsList", newConnectionsClass(rt))
		_ = exports.Set("methods", stringArray(rt, llhttp.Methods()))
		_ = exports.Set("allMethods", allMethods(rt))
		for name, flag := range lenientFlags {
			_ = exports.Set(name, uint32(flag))
		}
	}
}

// RequireCookies 返回 CookieMap 所在模块的加载器。
func RequireCookies() require.ModuleLoader {
	return func(rt *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)
		_ = exports.Set("CookieMap", newCookieMapClass(rt))
	}
}

// allMethods 按方法编号排列全部方法名，未定义的编号留空。
func allMethods(rt *goja.Runtime) *goja.Object {
	arr := rt.NewArray()
	for i := 0; i < 256; i++ {
		m := llhttp.Method(i)
		if _, ok := llhttp.LookupMethod(m.String()); ok {
			_ = arr.Set(strconv.Itoa(i), m.String())
		}
	}
	return arr
}

func stringArray(rt *goja.Runtime, ss []string) *goja.Object {
	items := make([]any, len(ss))
	for i, s := range ss {
		items[i] = s
	}
	return rt.NewArray(items...)
}

// bytesValue 把 b 包装为 Uint8Array。
func bytesValue(rt *goja.Runtime, b []byte) goja.Value {
	ab := rt.ToValue(rt.NewArrayBuffer(b))
	u8, err := rt.New(rt.Get("Uint8Array"), ab)
	if err != nil {
		return ab
	}
	return u8
}

// toBytes 接受 Uint8Array、ArrayBuffer 与字符串。
func toBytes(rt *goja.Runtime, v goja.Value) []byte {
	if v != nil {
		switch x := v.Export().(type) {
		case []byte:
			return x
		case goja.ArrayBuffer:
			return x.Bytes()
		case string:
			return []byte(x)
		}
	}
	panic(rt.NewTypeError("argument must be a Uint8Array, an ArrayBuffer or a string"))
}

// newClass 创建构造函数与它的原型对象，init 为每个实例返回要挂载的 Go 端对象。
func newClass(rt *goja.Runtime, init func(call goja.ConstructorCall) any) (ctor, proto *goja.Object) {
	proto = rt.NewObject()
	ctor = rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		bind(rt, call.This, init(call))
		return nil
	}).(*goja.Object)
	_ = ctor.Set("prototype", proto)
	_ = proto.DefineDataProperty("constructor", ctor, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return ctor, proto
}

// bind 把 Go 端对象挂到 obj 上。
func bind(rt *goja.Runtime, obj *goja.Object, handle any) {
	_ = obj.DefineDataProperty(handleKey, rt.ToValue(handle), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// unwrap 取出 this 上由 bind 挂载的对象。
func unwrap[T any](rt *goja.Runtime, this goja.Value) T {
	if obj, ok := this.(*goja.Object); ok {
		if v := obj.Get(handleKey); v != nil {
			if h, ok := v.Export().(T); ok {
				return h
			}
		}
	}
	panic(rt.NewTypeError("Illegal invocation"))
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
