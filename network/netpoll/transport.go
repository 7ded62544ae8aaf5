package netpoll

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cloudwego/netpoll"
	"github.com/favbox/hostbind/common/config"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/network"
)

var (
	_ network.Transporter = (*transport)(nil)
	_ network.Addresser   = (*transport)(nil)
)

func init() {
	// 禁用 netpoll 的日志
	netpoll.SetLoggerOutput(io.Discard)
}

type transport struct {
	mu        sync.RWMutex
	ln        net.Listener
	eventLoop netpoll.EventLoop
	closed    bool

	network          string
	addr             string
	keepAliveTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	listenConfig     *net.ListenConfig
	OnAccept         func(conn net.Conn) context.Context
}

// ListenAndServe 绑定监听地址并交由 netpoll 事件循环服务，直到传输器关闭或出错。
func (t *transport) ListenAndServe(onData network.OnData) error {
	ln, err := t.listen()
	if err != nil {
		return err
	}

	loop, err := netpoll.NewEventLoop(func(ctx context.Context, c netpoll.Connection) error {
		return onData(ctx, newConn(c))
	}, t.loopOptions()...)
	if err != nil {
		_ = ln.Close()
		return errs.New(err, errs.ErrorTypePrivate, "创建 netpoll 事件循环失败")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ln.Close()
		return errs.ErrServerClosed
	}
	t.ln, t.eventLoop = ln, loop
	t.mu.Unlock()

	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", ln.Addr().String())
	return loop.Serve(ln)
}

func (t *transport) listen() (net.Listener, error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)
	lc := t.listenConfig
	if lc == nil {
		lc = &net.ListenConfig{}
	}
	ln, err := lc.Listen(context.Background(), t.network, t.addr)
	if err != nil {
		return nil, errs.New(err, errs.ErrorTypePrivate, "创建 netpoll 监听器失败")
	}
	return ln, nil
}

// loopOptions 在连接就绪前设置读写超时，并派生连接级上下文。
func (t *transport) loopOptions() []netpoll.Option {
	return []netpoll.Option{
		netpoll.WithIdleTimeout(t.keepAliveTimeout),
		netpoll.WithOnPrepare(func(c netpoll.Connection) context.Context {
			_ = c.SetReadTimeout(t.readTimeout)
			if t.writeTimeout > 0 {
				_ = c.SetWriteTimeout(t.writeTimeout)
			}
			if t.OnAccept != nil {
				return t.OnAccept(newConn(c))
			}
			return context.Background()
		}),
	}
}

// Addr 返回监听地址，开始监听前为 nil。
func (t *transport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Close 立即关闭传输器，不等待连接结束。
func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	return t.Shutdown(ctx)
}

// Shutdown 停止监听并等待连接结束，直到 ctx 结束。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()
	t.mu.Lock()
	t.closed = true
	loop := t.eventLoop
	t.mu.Unlock()
	if loop == nil {
		return nil
	}
	return loop.Shutdown(ctx)
}

// NewTransporter 创建 netpoll 网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	return &transport{
		network:          options.Network,
		addr:             options.Addr,
		keepAliveTimeout: options.KeepAliveTimeout,
		readTimeout:      options.ReadTimeout,
		writeTimeout:     options.WriteTimeout,
		listenConfig:     options.ListenConfig,
		OnAccept:         options.OnAccept,
	}
}
