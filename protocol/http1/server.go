package http1

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/favbox/hostbind/app"
	"github.com/favbox/hostbind/common/bytebufferpool"
	"github.com/favbox/hostbind/common/config"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/internal/bytesconv"
	"github.com/favbox/hostbind/network"
	"github.com/favbox/hostbind/protocol"
	"github.com/favbox/hostbind/protocol/consts"
	"github.com/favbox/hostbind/protocol/http1/conns"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
	"github.com/favbox/hostbind/protocol/http1/parser"
)

var (
	errIdleTimeout     = errs.New(errs.ErrIdleTimeout, errs.ErrorTypePrivate, nil)
	errShortConnection = errs.New(errs.ErrShortConnection, errs.ErrorTypePublic, "服务器即将关闭该连接")
	errUpgradeRejected = errs.NewPublic("无处理器接管协议升级")
)

// 测试中替换
var now = time.Now

// Registry 是各连接共享的解析器登记表。
type Registry = conns.Locked[*parser.Parser]

// NewRegistry 创建空的登记表。
func NewRegistry() *Registry {
	return conns.NewLocked[*parser.Parser]()
}

// UpgradeHandler 接管 CONNECT 或协议升级请求所在的连接，head 是请求之后已读到的字节。
// 处理器返回后连接被关闭。
type UpgradeHandler func(ctx context.Context, req *protocol.Request, conn network.Conn, head []byte)

// ClientErrorHandler 接管解析失败的连接。设置后服务器不再写出默认的错误响应。
type ClientErrorHandler func(ctx context.Context, err error, conn network.Conn)

// Option 表示 HTTP/1.1 服务器选项。
type Option struct {
	MaxHeaderSize         int            // 头部累计字节上限
	LenientFlags          llhttp.Lenient // 宽松解析开关
	DisableKeepalive      bool           // 是否禁用长连接
	IdleTimeout           time.Duration  // 长连接两次请求间的闲置超时
	ReadTimeout           time.Duration  // 报文内单次读取的超时
	ReadBufferSize        int            // 每次读取的缓冲大小
	ServerName            string         // Server 头部值
	NoDefaultServerHeader bool           // 是否不写 Server 头部
	NoDefaultDate         bool           // 是否不写 Date 头部

	UpgradeHandler     UpgradeHandler
	ClientErrorHandler ClientErrorHandler
}

// Server 表示 HTTP/1.1 服务器，实现 protocol.Server 协议接口。
type Server struct {
	Option
	Handler app.HandlerFunc
	// Registry 为 nil 时连接不参与超时清扫。
	Registry *Registry

	draining atomic.Bool
}

var _ protocol.Server = (*Server)(nil)

// NewServer 创建 HTTP/1.1 服务器。
func NewServer(opt Option, handler app.HandlerFunc, registry *Registry) *Server {
	return &Server{Option: opt, Handler: handler, Registry: registry}
}

// Drain 让此后写出的响应都带 Connection: close，用于平滑关闭。
func (s *Server) Drain() {
	s.draining.Store(true)
}

// Serve 在 conn 上循环读取并处理请求，返回时连接已关闭。
//
// 正常结束（对端关闭、短连接、闲置超时）返回 nil 或可用 errors.Is 识别的
// errs.ErrShortConnection、errs.ErrIdleTimeout；解析失败返回 *parser.ParseError 链。
func (s *Server) Serve(ctx context.Context, conn network.Conn) (err error) {
	c := s.newConn(ctx, conn)
	defer c.release()

	size := s.ReadBufferSize
	if size <= 0 {
		size = 4096
	}
	buf := mcache.Malloc(size)
	defer mcache.Free(buf)

	for {
		n, rerr := conn.Read(buf)
		if n > 0 {
			done, err := c.feed(buf[:n])
			if err != nil || done {
				return err
			}
		}
		if rerr != nil {
			return c.readFailed(network.NormalizeError(conn, rerr))
		}
	}
}

// serverConn 是一条连接上的处理状态。
type serverConn struct {
	s    *Server
	ctx  context.Context
	conn network.Conn
	p    *parser.Parser

	req         protocol.Request
	resp        protocol.Response
	out         *bytebufferpool.ByteBuffer
	headersDone bool

	// 以下字段由 mu 保护，会被清扫协程访问
	mu           sync.Mutex
	responding   bool
	bytesWritten int
	closed       bool
}

func (s *Server) newConn(ctx context.Context, conn network.Conn) *serverConn {
	c := &serverConn{s: s, ctx: ctx, conn: conn, out: bytebufferpool.Get()}
	c.p = parser.New(parser.Callbacks{
		OnMessageBegin:    c.onMessageBegin,
		OnHeaders:         c.onHeaders,
		OnHeadersComplete: c.onHeadersComplete,
		OnBody:            c.onBody,
		OnMessageComplete: c.onMessageComplete,
	})
	c.p.SetOwner(c)
	maxHeaderSize := s.MaxHeaderSize
	if maxHeaderSize <= 0 {
		maxHeaderSize = config.DefaultMaxHeaderSize
	}
	var list parser.ConnectionsList
	if s.Registry != nil {
		list = s.Registry
	}
	c.p.Initialize(llhttp.TypeRequest, maxHeaderSize, s.LenientFlags, list)
	return c
}

func (c *serverConn) release() {
	c.p.Remove()
	c.p.Free()
	c.req.Reset()
	bytebufferpool.Put(c.out)
	c.close()
}

func (c *serverConn) close() {
	c.mu.Lock()
	closed := c.closed
	c.closed = true
	c.mu.Unlock()
	if !closed {
		_ = c.conn.Close()
	}
}

// feed 解析 data。done 为 true 表示连接已交给升级处理器或应当关闭。
func (c *serverConn) feed(data []byte) (done bool, err error) {
	for {
		n, err := c.p.Execute(data)
		if err != nil {
			return true, c.parseFailed(err)
		}
		if !c.p.Upgraded() {
			return false, nil
		}
		if c.req.Upgrade {
			return true, c.upgrade(data[n:])
		}
		// 无人接管的升级请求已按普通请求处理，继续解析之后的数据
		data = data[n:]
		if len(data) == 0 {
			return false, nil
		}
	}
}

func (c *serverConn) readFailed(err error) error {
	if errors.Is(err, io.EOF) {
		if ferr := c.p.Finish(); ferr != nil {
			return c.parseFailed(ferr)
		}
		return nil
	}
	if errs.Is(err, errs.ErrTimeout) && c.p.LastMessageStart() == 0 {
		return errIdleTimeout
	}
	return err
}

func (c *serverConn) parseFailed(err error) error {
	pe, ok := parser.AsParseError(err)
	if !ok {
		return err
	}
	if pe.Cause != nil {
		// 回调自身的错误，如写出失败或短连接
		return err
	}
	hlog.SystemLogger().Debugf("解析请求失败：错误=%v, bytesParsed=%d, remoteAddr=%s", err, pe.BytesParsed, c.conn.RemoteAddr())
	if h := c.s.ClientErrorHandler; h != nil {
		h(c.ctx, err, c.conn)
		return err
	}
	c.writeError(errorStatus(pe.Code))
	return err
}

// errorStatus 返回解析错误对应的默认响应状态码。
func errorStatus(code string) int {
	switch code {
	case "HPE_HEADER_OVERFLOW":
		return consts.StatusRequestHeaderFieldsTooLarge
	case "HPE_CHUNK_EXTENSIONS_OVERFLOW":
		return consts.StatusRequestEntityTooLarge
	}
	return consts.StatusBadRequest
}

// writeError 仅在连接从未写出过数据时写出 "状态行 + Connection: close"。
func (c *serverConn) writeError(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.responding || c.bytesWritten > 0 {
		return
	}
	b := append([]byte(nil), consts.StatusLine(code)...)
	b = append(b, "Connection: close\r\n\r\n"...)
	n, _ := c.conn.Write(b)
	c.bytesWritten += n
}

// expire 由清扫协程调用：写出 408 并关闭连接。
func (c *serverConn) expire() {
	c.writeError(consts.StatusRequestTimeout)
	c.close()
}

// closeIfIdle 在连接既不处于报文中也没有正在处理的请求时关闭它。
func (c *serverConn) closeIfIdle() bool {
	c.mu.Lock()
	if c.closed || c.responding || c.p.LastMessageStart() != 0 {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	c.mu.Unlock()
	_ = c.conn.Close()
	return true
}

func (c *serverConn) upgrade(head []byte) error {
	h := c.s.UpgradeHandler
	if h == nil {
		return errUpgradeRejected
	}
	h(c.ctx, &c.req, c.conn, append([]byte(nil), head...))
	return nil
}

func (c *serverConn) onMessageBegin() error {
	c.req.Reset()
	c.resp.Reset()
	c.headersDone = false
	return c.conn.SetReadTimeout(c.s.ReadTimeout)
}

func (c *serverConn) onHeaders(headers []string, url string) error {
	if c.headersDone {
		c.req.Trailer.AddRaw(headers)
		return nil
	}
	c.req.Header.AddRaw(headers)
	c.req.URL += url
	return nil
}

func (c *serverConn) onHeadersComplete(info parser.HeadersInfo) (int, error) {
	c.headersDone = true
	if info.HasHeaders {
		c.req.Header.AddRaw(info.Headers)
	}
	if info.HasURL {
		c.req.URL += info.URL
	}
	c.req.Method = info.Method.String()
	c.req.ProtoMajor = info.VersionMajor
	c.req.ProtoMinor = info.VersionMinor
	c.req.Upgrade = info.Upgrade && (info.Method == llhttp.MethodConnect || c.s.UpgradeHandler != nil)
	c.req.KeepAlive = info.ShouldKeepAlive
	return 0, nil
}

func (c *serverConn) onBody(b []byte) error {
	c.req.AppendBody(b)
	return nil
}

func (c *serverConn) onMessageComplete() error {
	if c.req.Upgrade {
		return nil
	}
	return c.dispatch()
}

// dispatch 调用处理器并写出响应。
func (c *serverConn) dispatch() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errs.ErrConnectionClosed
	}
	c.responding = true
	c.mu.Unlock()

	c.s.Handler(c.ctx, &c.req, &c.resp)

	keepAlive := c.req.KeepAlive && !c.s.DisableKeepalive && !c.s.draining.Load() && !c.resp.ConnectionClose()
	if !keepAlive {
		c.resp.SetConnectionClose()
	}
	if !c.s.NoDefaultDate && !c.resp.Header.Has(consts.HeaderDate) {
		c.resp.Header.Add(consts.HeaderDate, bytesconv.B2s(bytesconv.AppendHTTPDate(nil, now())))
	}
	if !c.s.NoDefaultServerHeader && !c.resp.Header.Has(consts.HeaderServer) {
		name := c.s.ServerName
		if name == "" {
			name = consts.DefaultServerName
		}
		c.resp.Header.Add(consts.HeaderServer, name)
	}
	c.out.B = c.resp.AppendBytes(c.out.B[:0], c.req.ParsedCookies(), c.req.IsHead())

	c.mu.Lock()
	n, err := c.conn.Write(c.out.B)
	c.bytesWritten += n
	c.responding = false
	c.mu.Unlock()

	c.req.Reset()
	c.resp.Reset()
	if err != nil {
		return network.NormalizeError(c.conn, err)
	}
	if !keepAlive {
		return errShortConnection
	}
	return c.conn.SetReadTimeout(c.s.IdleTimeout)
}

// ExpireConnections 对 registry 中超时的连接写出 408 并关闭，返回处理的连接数。
func ExpireConnections(registry *Registry, headersTimeout, requestTimeout time.Duration, nanotime int64) int {
	hd, rd := conns.Deadlines(nanotime, headersTimeout, requestTimeout)
	expired := registry.Expired(hd, rd)
	for _, p := range expired {
		if c, ok := p.Owner().(*serverConn); ok {
			hlog.SystemLogger().Debugf("请求超时：remoteAddr=%s, 已耗时=%s", c.conn.RemoteAddr(), p.Duration())
			c.expire()
		}
	}
	return len(expired)
}

// CloseIdleConnections 关闭 registry 中不处于报文中的连接，返回关闭的连接数。
func CloseIdleConnections(registry *Registry) int {
	n := 0
	for _, p := range registry.Idle() {
		if c, ok := p.Owner().(*serverConn); ok && c.closeIfIdle() {
			n++
		}
	}
	return n
}

// CloseAllConnections 关闭 registry 中的全部连接。
func CloseAllConnections(registry *Registry) int {
	all := registry.All()
	for _, p := range all {
		if c, ok := p.Owner().(*serverConn); ok {
			c.close()
		}
	}
	return len(all)
}
