package server

import (
	"context"
	"net"
	"time"

	"github.com/favbox/hostbind/common/config"
	"github.com/favbox/hostbind/network"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
)

// WithHostPorts 指定监听的地址和端口。默认值：":8888"。
func WithHostPorts(addr string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Addr = addr
	}}
}

// WithNetwork 网络协议，可选：tcp，unix（unix domain socket）。
// 默认值：tcp。
func WithNetwork(nw string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Network = nw
	}}
}

// WithReadTimeout 设置报文内单次读取的超时时间。默认值：0，不超时。
//
// 慢速发送的请求由 WithHeadersTimeout 和 WithRequestTimeout 兜底。
func WithReadTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadTimeout = t
	}}
}

// WithWriteTimeout 设置网络库写入数据超时时间。默认值：无限长。
//
// 当写超时时连接将关闭。
func WithWriteTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.WriteTimeout = t
	}}
}

// WithKeepAliveTimeout 设置长连接两次请求间的闲置时间。默认值：5 秒。
func WithKeepAliveTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.KeepAliveTimeout = t
	}}
}

// WithKeepAlive 是否启用长连接。默认值：true。
func WithKeepAlive(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.DisableKeepalive = !b
	}}
}

// WithExitWaitTime 优雅退出的等待时间。
//
// 服务器停止接受新连接，关闭闲置连接，并对之后的每个响应设置 'Connection: close'。
// 到达设定时间后强制关闭剩余连接。若所有连接均已关闭则提前结束。
//
// 默认值：5 秒。
func WithExitWaitTime(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExitWaitTimeout = t
	}}
}

// WithReadBufferSize 设置每次读取的缓冲区字节数。默认值：4KB。
func WithReadBufferSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadBufferSize = size
	}}
}

// WithMaxHeaderSize 限制单条请求头部（含请求行）的累计字节数，超出时回复 431。
// 默认值：16KB。
func WithMaxHeaderSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxHeaderSize = size
	}}
}

// WithLenientFlags 设置宽松解析开关，如 llhttp.LenientHeaders。
// 宽松解析会带来请求走私风险，谨慎开启。默认值：0。
func WithLenientFlags(flags llhttp.Lenient) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.LenientFlags = flags
	}}
}

// WithHeadersTimeout 设置接收完整请求头的时限，超时回复 408。
// 默认值：60 秒与 RequestTimeout 中的较小者。
func WithHeadersTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.HeadersTimeout = t
		o.MarkHeadersTimeout()
	}}
}

// WithRequestTimeout 设置接收完整请求的时限，超时回复 408。0 表示不限。
// 默认值：300 秒。
func WithRequestTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.RequestTimeout = t
	}}
}

// WithConnectionsCheckingInterval 设置超时巡检的间隔。默认值：30 秒。
func WithConnectionsCheckingInterval(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ConnectionsCheckingInterval = t
	}}
}

// WithListenConfig 设置监听器配置。如配置是否允许端口重用。
func WithListenConfig(l *net.ListenConfig) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ListenConfig = l
	}}
}

// WithTransport 更换网络传输器。默认值：非 Windows 平台为 netpoll.NewTransporter。
func WithTransport(transporter func(opts *config.Options) network.Transporter) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TransporterNewer = transporter
	}}
}

// WithOnAccept 设置新连接被接受后的回调函数，其返回的上下文会传给处理器。
//
// 默认值：nil。
func WithOnAccept(fn func(conn net.Conn) context.Context) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.OnAccept = fn
	}}
}

// WithServerName 设置 Server 响应头。默认值："hostbind"。
func WithServerName(name string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ServerName = name
	}}
}

// WithDisableDefaultServerHeader 不写 Server 响应头。默认值：false。
func WithDisableDefaultServerHeader(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.NoDefaultServerHeader = b
	}}
}

// WithDisableDefaultDate 不写 Date 响应头。默认值：false。
func WithDisableDefaultDate(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.NoDefaultDate = b
	}}
}
