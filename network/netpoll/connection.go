package netpoll

import (
	"errors"
	"io"
	"strings"
	"syscall"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/network"
)

var (
	_ network.Conn                = (*Conn)(nil)
	_ network.ErrorNormalization  = (*Conn)(nil)
	_ network.HandleSpecificError = (*Conn)(nil)
)

// Conn 实现基于 netpoll 的网络连接。
type Conn struct {
	netpoll.Connection
}

// --- 实现 network.ErrorNormalization ---

func (c *Conn) ToHostError(err error) error {
	if errors.Is(err, netpoll.ErrConnClosed) || errors.Is(err, syscall.EPIPE) {
		return errs.ErrConnectionClosed
	}

	// 目前只统一读取超时
	if errors.Is(err, netpoll.ErrReadTimeout) {
		return errs.ErrTimeout
	}
	return err
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Connection.Read(p)
	return n, normalizeErr(err)
}

// --- 实现 network.HandleSpecificError ---

// HandleSpecificError 判断特定错误是否需要忽略。
func (c *Conn) HandleSpecificError(err error, remoteIP string) (needIgnore bool) {
	if errors.Is(err, netpoll.ErrConnClosed) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		// 忽略因连接被关闭或重置产生的 flush 错误
		if strings.Contains(err.Error(), "when flush") {
			return true
		}
		hlog.SystemLogger().Debugf("Netpoll error=%s, remoteAddr=%s", err.Error(), remoteIP)
		return true
	}
	return false
}

func normalizeErr(err error) error {
	if errors.Is(err, netpoll.ErrEOF) {
		return io.EOF
	}
	return err
}

func newConn(c netpoll.Connection) *Conn {
	return &Conn{Connection: c}
}
