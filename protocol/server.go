package protocol

import (
	"context"

	"github.com/favbox/hostbind/network"
)

// Server 定义普通服务器接口，需实现连接的 Serve 方法。
type Server interface {
	// Serve 提供 network.Conn 服务，连接结束时返回。
	Serve(ctx context.Context, conn network.Conn) error
}
