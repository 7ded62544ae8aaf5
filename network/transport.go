package network

import (
	"context"
	"net"
)

// Transporter 表示网络传输层接口。
type Transporter interface {
	// ListenAndServe 监听并准备接收连接。
	ListenAndServe(OnData) error

	// Close 立即关闭传输器。
	Close() error

	// Shutdown 平滑关闭传输器。
	Shutdown(ctx context.Context) error
}

// Addresser 是能报告实际监听地址的传输器。
type Addresser interface {
	// Addr 返回监听地址，尚未监听时返回 nil。
	Addr() net.Addr
}

// OnData 连接数据（如客户端请求数据）准备完毕时的回调函数。
type OnData func(ctx context.Context, conn Conn) error
