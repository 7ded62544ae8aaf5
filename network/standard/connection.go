package standard

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/network"
)

var (
	_ network.Conn                = (*Conn)(nil)
	_ network.ErrorNormalization  = (*Conn)(nil)
	_ network.HandleSpecificError = (*Conn)(nil)
)

// Conn 实现基于 net 的网络连接，每次读写前按超时时长刷新截止时间。
type Conn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// --- 实现 network.ErrorNormalization ---

func (c *Conn) ToHostError(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ENOTCONN) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return errs.ErrConnectionClosed
	}

	// 统一超时错误
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.ErrTimeout
	}
	return err
}

// --- 实现 network.HandleSpecificError ---

func (c *Conn) HandleSpecificError(err error, rip string) (needIgnore bool) {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		hlog.SystemLogger().Debugf("Go net library error=%s, remoteAddr=%s", err.Error(), rip)
		return true
	}
	return false
}

// --- 实现 network.Conn ---

func (c *Conn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

func (c *Conn) SetReadTimeout(t time.Duration) error {
	c.readTimeout = t
	if t <= 0 {
		return c.Conn.SetReadDeadline(time.Time{})
	}
	return nil
}

func (c *Conn) SetWriteTimeout(t time.Duration) error {
	c.writeTimeout = t
	if t <= 0 {
		return c.Conn.SetWriteDeadline(time.Time{})
	}
	return nil
}

func newConn(c net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{Conn: c, readTimeout: readTimeout, writeTimeout: writeTimeout}
}
