package network

import (
	"net"
	"time"
)

// Conn 表示服务端的一条连接。
type Conn interface {
	net.Conn

	// SetReadTimeout 设置每次读取的超时时长，0 表示不超时。
	SetReadTimeout(t time.Duration) error
	// SetWriteTimeout 设置每次写入的超时时长，0 表示不超时。
	SetWriteTimeout(t time.Duration) error
}

// ErrorNormalization 表示错误的规范化程序。
type ErrorNormalization interface {
	// ToHostError 将底层错误转为 common/errors 中的哨兵错误。
	ToHostError(err error) error
}

// HandleSpecificError 表示特定错误的处理程序。
type HandleSpecificError interface {
	HandleSpecificError(err error, remoteIP string) (needIgnore bool)
}

// NormalizeError 在 conn 支持时规范化 err。
func NormalizeError(conn Conn, err error) error {
	if n, ok := conn.(ErrorNormalization); ok {
		return n.ToHostError(err)
	}
	return err
}
