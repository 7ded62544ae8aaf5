package config

import (
	"context"
	"net"
	"time"

	"github.com/favbox/hostbind/network"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
)

const (
	// DefaultMaxHeaderSize 是未指定时单条报文头部（含请求行）允许的最大字节数。
	DefaultMaxHeaderSize = 16 * 1024

	defaultRequestTimeout              = 300 * time.Second
	defaultHeadersTimeout              = 60 * time.Second
	defaultConnectionsCheckingInterval = 30 * time.Second
	defaultKeepAliveTimeout            = 5 * time.Second
	defaultExitWaitTimeout             = 5 * time.Second
	defaultNetwork                     = "tcp"
	defaultAddr                        = ":8888"
	defaultReadBufferSize              = 4 * 1024
)

// Option 是用于配置 Options 的唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是服务端配置项。
type Options struct {
	Network string // 网络协议，默认 "tcp"
	Addr    string // 监听地址，默认 ":8888"

	// ReadTimeout 是单次读取的超时时间，默认 0 即不超时，慢请求由 RequestTimeout 兜底。
	ReadTimeout time.Duration
	// WriteTimeout 是单次写入的超时时间，默认 0 即不超时。
	WriteTimeout time.Duration
	// KeepAliveTimeout 是长连接两次请求间的最长闲置时间，默认 5s。
	KeepAliveTimeout time.Duration
	// ExitWaitTimeout 是优雅退出的等待时间，默认 5s。
	ExitWaitTimeout time.Duration

	ReadBufferSize int // 每次读取的缓冲大小，默认 4KB

	// MaxHeaderSize 是头部（请求行、字段、值）累计字节上限，默认 16KB。
	MaxHeaderSize int
	// LenientFlags 是传给解析器的宽松解析开关。
	LenientFlags llhttp.Lenient

	// HeadersTimeout 是从报文开始到头部接收完毕的时限，默认 60s 且不超过 RequestTimeout。
	HeadersTimeout time.Duration
	// RequestTimeout 是从报文开始到报文接收完毕的时限，默认 300s，0 表示不限。
	RequestTimeout time.Duration
	// ConnectionsCheckingInterval 是超时巡检的间隔，默认 30s。
	ConnectionsCheckingInterval time.Duration

	DisableKeepalive bool // 是否禁用长连接，默认否

	ListenConfig *net.ListenConfig

	// TransporterNewer 是传输器的自定义创建函数。
	TransporterNewer func(opt *Options) network.Transporter

	// ServerName 是 Server 响应头的值，默认 "hostbind"。
	ServerName string
	// NoDefaultServerHeader 为 true 时不写 Server 响应头。
	NoDefaultServerHeader bool
	// NoDefaultDate 为 true 时不写 Date 响应头。
	NoDefaultDate bool

	// OnAccept 在接受连接后调用，可用于派生连接级上下文。
	OnAccept func(conn net.Conn) context.Context

	headersTimeoutSet bool
}

// Apply 将指定的一组配置方法 opts 应用到配置项上。
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt.F(o)
	}
}

// MarkHeadersTimeout 标记 HeadersTimeout 由调用方显式指定。
func (o *Options) MarkHeadersTimeout() {
	o.headersTimeoutSet = true
}

// Validate 检查配置项之间的约束，并补齐依赖其他配置的默认值。
func (o *Options) Validate() error {
	if o.MaxHeaderSize <= 0 {
		o.MaxHeaderSize = DefaultMaxHeaderSize
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = defaultReadBufferSize
	}
	if !o.headersTimeoutSet {
		o.HeadersTimeout = defaultHeadersTimeout
		if o.RequestTimeout > 0 && o.RequestTimeout < o.HeadersTimeout {
			o.HeadersTimeout = o.RequestTimeout
		}
	}
	if o.RequestTimeout > 0 && o.HeadersTimeout > o.RequestTimeout {
		return errInvalidTimeouts(o.HeadersTimeout, o.RequestTimeout)
	}
	return nil
}

// NewOptions 创建基于给定配置函数的配置项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		Network:                     defaultNetwork,
		Addr:                        defaultAddr,
		KeepAliveTimeout:            defaultKeepAliveTimeout,
		ExitWaitTimeout:             defaultExitWaitTimeout,
		ReadBufferSize:              defaultReadBufferSize,
		MaxHeaderSize:               DefaultMaxHeaderSize,
		HeadersTimeout:              defaultHeadersTimeout,
		RequestTimeout:              defaultRequestTimeout,
		ConnectionsCheckingInterval: defaultConnectionsCheckingInterval,
	}
	options.Apply(opts)
	return options
}
