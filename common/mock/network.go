// Package mock 提供测试用的内存连接。
package mock

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/network"
)

var _ network.Conn = (*Conn)(nil)

var (
	ErrReadTimeout  = errs.New(errs.ErrTimeout, errs.ErrorTypePublic, "read timeout")
	ErrWriteTimeout = errs.New(errs.ErrTimeout, errs.ErrorTypePublic, "write timeout")
)

// Conn 是内存中的 network.Conn。每次 Read 最多返回一个预置片段，
// 片段读完后按模式返回 io.EOF 或阻塞至关闭或读取超时。
type Conn struct {
	mu          sync.Mutex
	cond        *sync.Cond
	chunks      [][]byte
	eof         bool
	closed      bool
	readTimeout time.Duration
	written     bytes.Buffer
	writeErr    error
}

// NewConn 创建读完 source 后返回 io.EOF 的连接。
func NewConn(source string) *Conn {
	return NewChunkedConn(source)
}

// NewChunkedConn 创建按 chunks 逐次读取、读完后返回 io.EOF 的连接。
func NewChunkedConn(chunks ...string) *Conn {
	c := newConn(chunks)
	c.eof = true
	return c
}

// NewBlockingConn 创建读完 chunks 后阻塞的连接，可用 Feed 继续写入。
func NewBlockingConn(chunks ...string) *Conn {
	return newConn(chunks)
}

func newConn(chunks []string) *Conn {
	c := &Conn{}
	c.cond = sync.NewCond(&c.mu)
	for _, s := range chunks {
		if s != "" {
			c.chunks = append(c.chunks, []byte(s))
		}
	}
	return c
}

// Feed 追加一个可读片段。
func (m *Conn) Feed(s string) {
	m.mu.Lock()
	m.chunks = append(m.chunks, []byte(s))
	m.mu.Unlock()
	m.cond.Broadcast()
}

// FailWrites 让之后的 Write 返回 err。
func (m *Conn) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *Conn) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deadline time.Time
	if m.readTimeout > 0 {
		deadline = time.Now().Add(m.readTimeout)
		timer := time.AfterFunc(m.readTimeout, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer timer.Stop()
	}
	for {
		if m.closed {
			return 0, errs.ErrConnectionClosed
		}
		if len(m.chunks) > 0 {
			n := copy(b, m.chunks[0])
			if n == len(m.chunks[0]) {
				m.chunks = m.chunks[1:]
			} else {
				m.chunks[0] = m.chunks[0][n:]
			}
			return n, nil
		}
		if m.eof {
			return 0, io.EOF
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, ErrReadTimeout
		}
		m.cond.Wait()
	}
}

func (m *Conn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errs.ErrConnectionClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.written.Write(b)
}

// Written 返回目前写出的全部字节。
func (m *Conn) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

func (m *Conn) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}

// Closed 报告连接是否已关闭。
func (m *Conn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Conn) LocalAddr() net.Addr  { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8888} }
func (m *Conn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000} }

func (m *Conn) SetDeadline(t time.Time) error {
	return m.SetReadDeadline(t)
}

func (m *Conn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return m.SetReadTimeout(0)
	}
	return m.SetReadTimeout(time.Until(t))
}

func (m *Conn) SetWriteDeadline(time.Time) error { return nil }

func (m *Conn) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	m.readTimeout = t
	m.mu.Unlock()
	return nil
}

// GetReadTimeout 返回当前的读取超时。
func (m *Conn) GetReadTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readTimeout
}

func (m *Conn) SetWriteTimeout(time.Duration) error { return nil }
