package standard

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/favbox/hostbind/common/config"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/network"
)

var (
	_ network.Transporter = (*transport)(nil)
	_ network.Addresser   = (*transport)(nil)
)

var connPool = gopool.NewPool("hostbind.standard", 10000, gopool.NewConfig())

type transport struct {
	network      string
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	handler      network.OnData
	ln           net.Listener
	listenConfig *net.ListenConfig
	lock         sync.Mutex
	closed       bool
	conns        sync.WaitGroup
	OnAccept     func(conn net.Conn) context.Context
}

func (t *transport) ListenAndServe(onData network.OnData) error {
	t.handler = onData
	return t.serve()
}

func (t *transport) Addr() net.Addr {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Close 立即关闭监听器，不等待连接处理结束。
func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	return t.Shutdown(ctx)
}

// Shutdown 关闭监听器，并等待已接受连接的处理函数返回，直到 ctx 结束。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()

	t.lock.Lock()
	t.closed = true
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.lock.Unlock()

	done := make(chan struct{})
	go func() {
		t.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *transport) serve() (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)
	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		return errs.ErrServerClosed
	}
	if t.listenConfig != nil {
		t.ln, err = t.listenConfig.Listen(context.Background(), t.network, t.addr)
	} else {
		t.ln, err = net.Listen(t.network, t.addr)
	}
	t.lock.Unlock()
	if err != nil {
		return errs.New(err, errs.ErrorTypePrivate, "创建监听器失败")
	}
	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", t.ln.Addr().String())
	for {
		ctx := context.Background()
		conn, err := t.ln.Accept()
		if err != nil {
			t.lock.Lock()
			closed := t.closed
			t.lock.Unlock()
			if closed && errors.Is(err, net.ErrClosed) {
				return nil
			}
			hlog.SystemLogger().Errorf("错误=%s", err.Error())
			return err
		}

		if t.OnAccept != nil {
			ctx = t.OnAccept(conn)
		}

		c := newConn(conn, t.readTimeout, t.writeTimeout)
		t.conns.Add(1)
		connPool.CtxGo(ctx, func() {
			defer t.conns.Done()
			if err := t.handler(ctx, c); err != nil {
				hlog.SystemLogger().Debugf("连接处理结束：错误=%v, remoteAddr=%s", err, c.RemoteAddr())
			}
		})
	}
}

// NewTransporter 创建标准库网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	return &transport{
		network:      options.Network,
		addr:         options.Addr,
		readTimeout:  options.ReadTimeout,
		writeTimeout: options.WriteTimeout,
		listenConfig: options.ListenConfig,
		OnAccept:     options.OnAccept,
	}
}
