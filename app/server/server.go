// Package server 组装网络传输器与 HTTP/1.1 协议服务器，并负责其生命周期。
package server

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/favbox/hostbind/app"
	"github.com/favbox/hostbind/app/middlewares/server/recovery"
	"github.com/favbox/hostbind/common/config"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/common/timer"
	"github.com/favbox/hostbind/common/utils"
	"github.com/favbox/hostbind/internal/nocopy"
	"github.com/favbox/hostbind/network"
	"github.com/favbox/hostbind/protocol/http1"
	"golang.org/x/sync/errgroup"
)

const (
	_ uint32 = iota
	statusInitialized
	statusRunning
	statusShutdown
	statusClosed
)

var (
	errInitFailed       = errs.NewPrivate("服务器初始化失败，可能已经初始化过")
	errAlreadyRunning   = errs.NewPrivate("服务器已在运行")
	errStatusNotRunning = errs.NewPrivate("服务器未在运行")
)

// CtxCallback 是带上下文的钩子函数。
type CtxCallback func(ctx context.Context)

// CtxErrCallback 是带上下文且可能返回错误的钩子函数。
type CtxErrCallback func(ctx context.Context) error

// Server 是 hostbind 的 HTTP 服务器。
//
// 它把 network.Transporter 接受的连接交给 http1.Server 处理，
// 并定期清扫头部或请求超时的连接。
type Server struct {
	noCopy nocopy.NoCopy

	options   *config.Options
	handler   app.HandlerFunc
	transport network.Transporter
	registry  *http1.Registry
	proto     *http1.Server

	upgradeHandler     http1.UpgradeHandler
	clientErrorHandler http1.ClientErrorHandler

	status uint32

	// OnRun 在开始监听前依次调用，任一返回错误则 Run 返回该错误。
	OnRun []CtxErrCallback
	// OnShutdown 在 Shutdown 时并发调用。
	OnShutdown []CtxCallback

	// 用于接收信息实现优雅退出
	signalWaiter func(err chan error) error
}

// New 创建一个无中间件的服务器。
func New(handler app.HandlerFunc, opts ...config.Option) *Server {
	options := config.NewOptions(opts)
	s := &Server{
		options:  options,
		handler:  handler,
		registry: http1.NewRegistry(),
	}
	if options.TransporterNewer != nil {
		s.transport = options.TransporterNewer(options)
	} else {
		s.transport = defaultTransporter(options)
	}
	return s
}

// Default 创建默认带有 recovery 中间件的服务器。
func Default(handler app.HandlerFunc, opts ...config.Option) *Server {
	return New(app.Chain(handler, recovery.Recovery()), opts...)
}

// GetOptions 返回服务器的配置项。
func (s *Server) GetOptions() *config.Options {
	return s.options
}

// GetTransporterName 返回所用传输器的包路径。
func (s *Server) GetTransporterName() string {
	newer := s.options.TransporterNewer
	if newer == nil {
		newer = defaultTransporter
	}
	return utils.NameOfFunction(newer)
}

// SetUpgradeHandler 设置 CONNECT 与协议升级请求的接管函数，须在 Run 之前调用。
//
// 未设置时升级请求按普通请求处理，CONNECT 请求的连接被直接关闭。
func (s *Server) SetUpgradeHandler(h http1.UpgradeHandler) {
	s.upgradeHandler = h
}

// SetClientErrorHandler 设置请求解析失败时的处理函数，须在 Run 之前调用。
//
// 未设置时服务器在尚未写出任何数据的连接上回复 400（或 431、413）并关闭连接。
func (s *Server) SetClientErrorHandler(h http1.ClientErrorHandler) {
	s.clientErrorHandler = h
}

// SetCustomSignalWaiter 设置自定义的信号等待者。
// 若默认的信号等待实现不符要求，则可以自定义。
// 服务器在 f 返回错误后会立即退出，否则它将优雅退出。
func (s *Server) SetCustomSignalWaiter(f func(err chan error) error) {
	s.signalWaiter = f
}

// Addr 返回实际监听的地址，传输器不支持或尚未监听时返回 nil。
func (s *Server) Addr() net.Addr {
	if a, ok := s.transport.(network.Addresser); ok {
		return a.Addr()
	}
	return nil
}

// IsRunning 报告服务器是否正在运行。
func (s *Server) IsRunning() bool {
	return atomic.LoadUint32(&s.status) == statusRunning
}

// init 校验配置并创建协议服务器。
func (s *Server) init() error {
	if err := s.options.Validate(); err != nil {
		return err
	}
	o := s.options
	s.proto = http1.NewServer(http1.Option{
		MaxHeaderSize:         o.MaxHeaderSize,
		LenientFlags:          o.LenientFlags,
		DisableKeepalive:      o.DisableKeepalive,
		IdleTimeout:           o.KeepAliveTimeout,
		ReadTimeout:           o.ReadTimeout,
		ReadBufferSize:        o.ReadBufferSize,
		ServerName:            o.ServerName,
		NoDefaultServerHeader: o.NoDefaultServerHeader,
		NoDefaultDate:         o.NoDefaultDate,
		UpgradeHandler:        s.upgradeHandler,
		ClientErrorHandler:    s.clientErrorHandler,
	}, s.handler, s.registry)

	if !atomic.CompareAndSwapUint32(&s.status, 0, statusInitialized) {
		return errInitFailed
	}
	return nil
}

// Run 开始监听并阻塞，直到传输器关闭或出错。
func (s *Server) Run() (err error) {
	if err = s.init(); err != nil {
		return err
	}
	if !atomic.CompareAndSwapUint32(&s.status, statusInitialized, statusRunning) {
		return errAlreadyRunning
	}
	defer atomic.StoreUint32(&s.status, statusClosed)

	ctx := context.Background()
	for i := range s.OnRun {
		if err = s.OnRun[i](ctx); err != nil {
			return err
		}
	}

	hlog.SystemLogger().Infof("使用网络库=%s", s.GetTransporterName())

	sweepCtx, stopSweep := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		defer stopSweep()
		return s.transport.ListenAndServe(s.onData)
	})
	g.Go(func() error {
		s.sweep(sweepCtx)
		return nil
	})
	return g.Wait()
}

func (s *Server) onData(ctx context.Context, conn network.Conn) (err error) {
	defer func() {
		errProcess(conn, err)
	}()
	return s.proto.Serve(ctx, conn)
}

// sweep 每隔 ConnectionsCheckingInterval 清扫一次超时连接，直到 ctx 结束。
func (s *Server) sweep(ctx context.Context) {
	o := s.options
	interval := o.ConnectionsCheckingInterval
	if interval <= 0 || (o.HeadersTimeout <= 0 && o.RequestTimeout <= 0) {
		return
	}
	t := timer.AcquireTimer(interval)
	defer timer.ReleaseTimer(t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.checkConnections()
			t.Reset(interval)
		}
	}
}

// checkConnections 对超时的连接回复 408 并关闭，返回处理的连接数。
func (s *Server) checkConnections() int {
	n := http1.ExpireConnections(s.registry, s.options.HeadersTimeout, s.options.RequestTimeout, timer.Nanotime())
	if n > 0 {
		hlog.SystemLogger().Debugf("清扫超时连接：数量=%d", n)
	}
	return n
}

// CloseIdleConnections 关闭当前不处于请求中的连接，返回关闭的连接数。
func (s *Server) CloseIdleConnections() int {
	return http1.CloseIdleConnections(s.registry)
}

// CloseAllConnections 关闭全部连接，返回关闭的连接数。
func (s *Server) CloseAllConnections() int {
	return http1.CloseAllConnections(s.registry)
}

// Shutdown 平滑关闭服务器：停止监听，关闭闲置连接，
// 之后的响应都带 Connection: close，并等待其余连接结束直到 ctx 结束。
// ctx 结束时仍未结束的连接被强制关闭。
func (s *Server) Shutdown(ctx context.Context) (err error) {
	if atomic.LoadUint32(&s.status) != statusRunning {
		return errStatusNotRunning
	}
	if !atomic.CompareAndSwapUint32(&s.status, statusRunning, statusShutdown) {
		return
	}

	ch := make(chan struct{}, 1)
	// 触发可能的钩子
	go s.executeOnShutdownHooks(ctx, ch)
	defer func() {
		// 确保钩子执行完成或超时
		select {
		case <-ctx.Done():
			hlog.SystemLogger().Infof("执行 OnShutdownHooks 超时：错误=%v", ctx.Err())
		case <-ch:
			hlog.SystemLogger().Info("执行 OnShutdownHooks 完成")
		}
	}()

	s.proto.Drain()
	s.CloseIdleConnections()

	err = s.transport.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if n := s.CloseAllConnections(); n > 0 {
			hlog.SystemLogger().Warnf("等待超时，强制关闭连接：数量=%d", n)
		}
		return nil
	}
	return err
}

func (s *Server) executeOnShutdownHooks(ctx context.Context, ch chan struct{}) {
	done := make(chan struct{}, len(s.OnShutdown))
	for i := range s.OnShutdown {
		go func(h CtxCallback) {
			h(ctx)
			done <- struct{}{}
		}(s.OnShutdown[i])
	}
	for range s.OnShutdown {
		<-done
	}
	ch <- struct{}{}
}

// Close 立即关闭监听器和全部连接。
func (s *Server) Close() error {
	err := s.transport.Close()
	s.CloseAllConnections()
	return err
}

// Spin 运行服务器直至捕获 os.Signal 或 Run 返回错误。
// 支持优雅退出。
func (s *Server) Spin() {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run()
	}()

	signalWaiter := defaultSignalWaiter
	if s.signalWaiter != nil {
		signalWaiter = s.signalWaiter
	}

	if err := signalWaiter(errCh); err != nil {
		hlog.SystemLogger().Errorf("收到退出信号：错误=%v", err)
		if err = s.Close(); err != nil {
			hlog.SystemLogger().Errorf("退出错误：%v", err)
		}
		return
	}

	hlog.SystemLogger().Infof("开始优雅退出，最多等待 %d 秒...", s.options.ExitWaitTimeout/time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), s.options.ExitWaitTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		hlog.SystemLogger().Errorf("退出错误：%v", err)
	}
}

// 信号等待者的默认实现。
// SIGTERM 立即退出。
// SIGHUP|SIGINT 触发优雅退出。
func defaultSignalWaiter(errCh chan error) error {
	signalToNotify := []os.Signal{
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
	}
	if signal.Ignored(syscall.SIGHUP) {
		signalToNotify = []os.Signal{
			syscall.SIGINT,
			syscall.SIGTERM,
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, signalToNotify...)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		switch sig {
		case syscall.SIGTERM:
			// 强制退出
			return errs.NewPublic(sig.String())
		case syscall.SIGHUP, syscall.SIGINT:
			hlog.SystemLogger().Infof("收到退出信号：%s", sig)
			// 优雅退出
			return nil
		}
	case err := <-errCh:
		// 出现错误，立即退出
		return err
	}

	return nil
}

// errProcess 记录连接处理结束时的错误。
func errProcess(conn network.Conn, err error) {
	if err == nil {
		return
	}

	// 正常结束
	if errors.Is(err, errs.ErrShortConnection) || errors.Is(err, errs.ErrIdleTimeout) || errors.Is(err, errs.ErrConnectionClosed) {
		return
	}

	var rip string
	if addr := conn.RemoteAddr(); addr != nil {
		rip = addr.String()
	}

	// 处理特定错误
	if hse, ok := conn.(network.HandleSpecificError); ok {
		if hse.HandleSpecificError(err, rip) {
			return
		}
	}

	// 解析失败已由协议层记录
	if errs.TypeOf(err)&(errs.ErrorTypeProtocol|errs.ErrorTypeLimit) != 0 {
		return
	}
	hlog.SystemLogger().Errorf("连接处理出错：错误=%v, remoteAddr=%s", err, rip)
}
