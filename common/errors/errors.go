// Package errors 定义带分类的错误及通用的哨兵错误。
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout             = errors.New("timeout")
	ErrIdleTimeout         = errors.New("idle timeout")
	ErrConnectionClosed    = errors.New("连接已关闭")
	ErrServerClosed        = errors.New("服务器已关闭")
	ErrShortConnection     = errors.New("短连接")
	ErrInvalidCookieString = errors.New("无效的 cookie 字符串")
	ErrInvalidTimeouts     = errors.New("headersTimeout 不能大于 requestTimeout")
)

// ErrorType 是错误的分类位图，支持按位或组合。
type ErrorType uint64

const (
	// ErrorTypeProtocol 报文语法错误。
	ErrorTypeProtocol ErrorType = 1 << iota
	// ErrorTypeLimit 超出资源限制，如头部过大。
	ErrorTypeLimit
	// ErrorTypeCallback 消费方回调返回了错误。
	ErrorTypeCallback
	// ErrorTypeCookie cookie 解析或校验失败。
	ErrorTypeCookie
	// ErrorTypePrivate 表示一个私有的错误。
	ErrorTypePrivate
	// ErrorTypePublic 表示一个公开的错误。
	ErrorTypePublic
	// ErrorTypeAny 表示任何其他错误。
	ErrorTypeAny
)

// Error 表示一个带有错误类型和元信息的错误。
type Error struct {
	Err  error
	Type ErrorType
	Meta any
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType 报告错误是否属于 flags 中的任一类型。
func (e *Error) IsType(flags ErrorType) bool {
	return e.Type&flags > 0
}

func (e *Error) SetType(flags ErrorType) *Error {
	e.Type = flags
	return e
}

func (e *Error) SetMeta(data any) *Error {
	e.Meta = data
	return e
}

// JSON 返回便于序列化的错误表示。
func (e *Error) JSON() any {
	data := make(map[string]any)
	switch m := e.Meta.(type) {
	case nil:
	case map[string]any:
		for k, v := range m {
			data[k] = v
		}
	default:
		data["meta"] = m
	}
	if _, ok := data["error"]; !ok {
		data["error"] = e.Error()
	}
	return data
}

// New 新建一个指定错误、类型及元数据的错误。
func New(err error, t ErrorType, meta any) *Error {
	return &Error{Err: err, Type: t, Meta: meta}
}

func NewPublic(err string) *Error {
	return New(errors.New(err), ErrorTypePublic, nil)
}

func NewPrivate(err string) *Error {
	return New(errors.New(err), ErrorTypePrivate, nil)
}

func Newf(t ErrorType, meta any, format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), t, meta)
}

func NewPublicf(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePublic, nil)
}

func NewPrivatef(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePrivate, nil)
}

// TypeOf 返回 err 链上第一个 *Error 的类型，没有时返回 0。
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return 0
}

// Is 与 Unwrap 链配合，便于调用方只导入本包。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 同标准库 errors.As。
func As(err error, target any) bool {
	return errors.As(err, target)
}

// ErrorChain 错误链。
type ErrorChain []*Error

func (c ErrorChain) String() string {
	if len(c) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, e := range c {
		fmt.Fprintf(&buf, "Error #%02d: %s\n", i+1, e.Err)
		if e.Meta != nil {
			fmt.Fprintf(&buf, "     Meta: %v\n", e.Meta)
		}
	}
	return buf.String()
}

// ByType 返回按指定类型过滤后的错误链。
func (c ErrorChain) ByType(t ErrorType) ErrorChain {
	if len(c) == 0 {
		return nil
	}
	if t == ErrorTypeAny {
		return c
	}
	var result ErrorChain
	for _, e := range c {
		if e.IsType(t) {
			result = append(result, e)
		}
	}
	return result
}

// Last 返回错误链中最后一个错误。
func (c ErrorChain) Last() *Error {
	if n := len(c); n > 0 {
		return c[n-1]
	}
	return nil
}

// Errors 返回所有错误的消息。
func (c ErrorChain) Errors() []string {
	if len(c) == 0 {
		return nil
	}
	msgs := make([]string, len(c))
	for i, e := range c {
		msgs[i] = e.Error()
	}
	return msgs
}
