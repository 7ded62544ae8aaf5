package jsbind

import (
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/favbox/hostbind/protocol/cookie"
)

func newCookieMapClass(rt *goja.Runtime) *goja.Object {
	ctor, proto := newClass(rt, func(call goja.ConstructorCall) any {
		return newCookieMap(rt, call.Argument(0))
	})

	method := func(name string, fn func(m *cookie.Map, call goja.FunctionCall) goja.Value) {
		_ = proto.Set(name, func(call goja.FunctionCall) goja.Value {
			return fn(unwrap[*cookie.Map](rt, call.This), call)
		})
	}
	method("get", func(m *cookie.Map, call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		if v, ok := m.Get(call.Argument(0).String()); ok {
			return rt.ToValue(v)
		}
		return goja.Null()
	})
	method("has", func(m *cookie.Map, call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return rt.ToValue(false)
		}
		return rt.ToValue(m.Has(call.Argument(0).String()))
	})
	method("set", func(m *cookie.Map, call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		if err := m.SetCookie(cookieFromArgs(rt, call)); err != nil {
			panic(rt.NewTypeError(err.Error()))
		}
		return goja.Undefined()
	})
	method("delete", func(m *cookie.Map, call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		if err := m.RemoveWith(deleteOptionsFromArgs(rt, call)); err != nil {
			panic(rt.NewTypeError(err.Error()))
		}
		return goja.Undefined()
	})
	method("toJSON", func(m *cookie.Map, _ goja.FunctionCall) goja.Value {
		obj := rt.NewObject()
		m.Range(func(name, value string) bool {
			_ = obj.Set(name, value)
			return true
		})
		return obj
	})
	method("toSetCookieHeaders", func(m *cookie.Map, _ goja.FunctionCall) goja.Value {
		return stringArray(rt, m.ToSetCookieHeaders())
	})

	// 迭代器基于调用时的快照，迭代期间的修改不影响本次迭代
	entries := func(m *cookie.Map, _ goja.FunctionCall) goja.Value {
		return iterate(rt, m, func(name, value string) any { return rt.NewArray(name, value) })
	}
	method("entries", entries)
	method("keys", func(m *cookie.Map, _ goja.FunctionCall) goja.Value {
		return iterate(rt, m, func(name, _ string) any { return name })
	})
	method("values", func(m *cookie.Map, _ goja.FunctionCall) goja.Value {
		return iterate(rt, m, func(_, value string) any { return value })
	})
	method("forEach", func(m *cookie.Map, call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(rt.NewTypeError("callback must be a function"))
		}
		thisArg := call.Argument(1)
		for _, e := range m.GetAll() {
			if _, err := fn(thisArg, rt.ToValue(e.Value), rt.ToValue(e.Name), call.This); err != nil {
				panic(err)
			}
		}
		return goja.Undefined()
	})
	_ = proto.SetSymbol(goja.SymIterator, func(call goja.FunctionCall) goja.Value {
		return entries(unwrap[*cookie.Map](rt, call.This), call)
	})

	size := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(unwrap[*cookie.Map](rt, call.This).Size())
	})
	_ = proto.DefineAccessorProperty("size", size, nil, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return ctor
}

// newCookieMap 接受空值、Cookie 请求头、名值对象或 [name, value] 数组。
// 后两种形式遇到非法名值时抛出 TypeError。
func newCookieMap(rt *goja.Runtime, init goja.Value) *cookie.Map {
	if isNullish(init) {
		return cookie.New()
	}
	obj, ok := init.(*goja.Object)
	if !ok {
		return cookie.ParseCookieHeader(init.String())
	}

	var pairs [][2]string
	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		for i := 0; i < n; i++ {
			pair, ok := obj.Get(strconv.Itoa(i)).(*goja.Object)
			if !ok || pair.ClassName() != "Array" || pair.Get("length").ToInteger() != 2 {
				panic(rt.NewTypeError("expected an array of [name, value] pairs"))
			}
			pairs = append(pairs, [2]string{pair.Get("0").String(), pair.Get("1").String()})
		}
	} else {
		for _, k := range obj.Keys() {
			pairs = append(pairs, [2]string{k, obj.Get(k).String()})
		}
	}
	m, err := cookie.FromPairs(pairs, true)
	if err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
	return m
}

// cookieFromArgs 支持 set(name, value, options) 与 set(init) 两种调用。
func cookieFromArgs(rt *goja.Runtime, call goja.FunctionCall) *cookie.Cookie {
	var (
		c    *cookie.Cookie
		opts *goja.Object
	)
	if init, ok := call.Argument(0).(*goja.Object); ok {
		name, _ := optString(init, "name")
		value, _ := optString(init, "value")
		c, opts = cookie.NewCookie(name, value), init
	} else {
		if len(call.Arguments) < 2 {
			panic(rt.NewTypeError("Not enough arguments"))
		}
		c = cookie.NewCookie(call.Argument(0).String(), call.Argument(1).String())
		opts, _ = call.Argument(2).(*goja.Object)
	}
	if opts == nil {
		return c
	}

	if v, ok := optString(opts, "domain"); ok {
		c.Domain = v
	}
	if v, ok := optString(opts, "path"); ok {
		c.Path = v
	}
	if v := opts.Get("expires"); !isNullish(v) {
		switch x := v.Export().(type) {
		case time.Time:
			c.Expires = x
		case int64:
			c.Expires = time.UnixMilli(x)
		case float64:
			c.Expires = time.UnixMilli(int64(x))
		default:
			panic(rt.NewTypeError("expires must be a Date or a number"))
		}
	}
	if v := opts.Get("maxAge"); !isNullish(v) {
		c.MaxAge = int(v.ToInteger())
	}
	if v := opts.Get("secure"); !isNullish(v) {
		c.Secure = v.ToBoolean()
	}
	if v := opts.Get("httpOnly"); !isNullish(v) {
		c.HTTPOnly = v.ToBoolean()
	}
	if v := opts.Get("partitioned"); !isNullish(v) {
		c.Partitioned = v.ToBoolean()
	}
	if v, ok := optString(opts, "sameSite"); ok {
		ss, valid := cookie.ParseSameSite(v)
		if !valid {
			panic(rt.NewTypeError("invalid sameSite: " + v))
		}
		c.SameSite = ss
	}
	return c
}

// deleteOptionsFromArgs 支持 delete(name)、delete(name, {domain, path})
// 与 delete({name, domain, path}) 三种调用，name 必须是字符串。
func deleteOptionsFromArgs(rt *goja.Runtime, call goja.FunctionCall) cookie.DeleteOptions {
	var (
		name goja.Value
		opts *goja.Object
	)
	if obj, ok := call.Argument(0).(*goja.Object); ok {
		opts = obj
	} else {
		name = call.Argument(0)
		if len(call.Arguments) >= 2 {
			obj, ok := call.Argument(1).(*goja.Object)
			if !ok {
				panic(rt.NewTypeError("Options must be an object"))
			}
			opts = obj
		}
	}

	var del cookie.DeleteOptions
	if opts != nil {
		if name == nil {
			name = opts.Get("name")
		}
		del.Domain, _ = optString(opts, "domain")
		del.Path, _ = optString(opts, "path")
	}
	ok := false
	if name != nil {
		del.Name, ok = name.Export().(string)
	}
	if !ok {
		panic(rt.NewTypeError("Cookie name is required"))
	}
	return del
}

// iterate 按 GetAll 的顺序生成快照数组，返回其数组迭代器。
func iterate(rt *goja.Runtime, m *cookie.Map, item func(name, value string) any) goja.Value {
	all := m.GetAll()
	items := make([]any, len(all))
	for i, e := range all {
		items[i] = item(e.Name, e.Value)
	}
	arr := rt.NewArray(items...)
	next, ok := goja.AssertFunction(arr.GetSymbol(goja.SymIterator))
	if !ok {
		panic(rt.NewTypeError("array is not iterable"))
	}
	it, err := next(arr)
	if err != nil {
		panic(err)
	}
	return it
}

func optString(obj *goja.Object, key string) (string, bool) {
	v := obj.Get(key)
	if isNullish(v) {
		return "", false
	}
	return v.String(), true
}
