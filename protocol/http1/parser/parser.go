// Package parser 在 llhttp 分词器之上组装完整的 HTTP/1.x 报文事件。
//
// 分词器按片段回调字节，Parser 负责把片段拼成字段，控制头部大小，
// 维护连接登记表中的活跃状态，并以 Callbacks 通知消费方。
package parser

import (
	"sync/atomic"
	"time"

	"github.com/favbox/hostbind/common/config"
	"github.com/favbox/hostbind/common/timer"
	"github.com/favbox/hostbind/internal/nocopy"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
)

const (
	// 单次 OnHeaders 最多携带的字段对数
	maxHeaderPairs = 32
	// 单个分块的扩展部分允许的最大字节数
	maxChunkExtensionsSize = 16384
)

const (
	reasonHeaderOverflow          = "HPE_HEADER_OVERFLOW:Header overflow"
	reasonChunkExtensionsOverflow = "HPE_CHUNK_EXTENSIONS_OVERFLOW:Chunk extensions overflow"
	reasonJSException             = "HPE_JS_EXCEPTION:JS Exception"
)

var nanotime = timer.Nanotime

// Callbacks 是消费方关心的报文事件，未设置的事件会被忽略。
type Callbacks struct {
	OnMessageBegin func() error
	// OnHeaders 在字段对超出容量或报文带有尾部字段时调用，headers 依次为名、值。
	OnHeaders func(headers []string, url string) error
	// OnHeadersComplete 返回 0 正常处理正文，1 跳过正文，2 视为协议升级。
	OnHeadersComplete func(info HeadersInfo) (int, error)
	// OnBody 收到的 b 是本次调用独有的拷贝。
	OnBody            func(b []byte) error
	OnMessageComplete func() error
}

// HeadersInfo 是头部结束时交给消费方的信息。
type HeadersInfo struct {
	Type         llhttp.Type
	VersionMajor int
	VersionMinor int
	// HasHeaders 为 false 时 Headers 无意义，头部已经通过 OnHeaders 分批送出。
	Headers    []string
	HasHeaders bool
	// 以下三项仅请求有效
	Method llhttp.Method
	URL    string
	HasURL bool
	// 以下两项仅响应有效
	StatusCode      int
	StatusMessage   string
	Upgrade         bool
	ShouldKeepAlive bool
}

// ConnectionsList 是 Parser 登记自身的连接表。
type ConnectionsList interface {
	Push(p *Parser)
	Pop(p *Parser)
	PushActive(p *Parser)
	PopActive(p *Parser)
}

// Parser 是单条连接上的 HTTP/1.x 报文解析器，不可并发使用。
type Parser struct {
	noCopy nocopy.NoCopy

	tok      llhttp.Parser
	settings llhttp.Settings
	cb       Callbacks
	conns    ConnectionsList
	owner    any

	url         fieldBuffer
	status      fieldBuffer
	fields      [maxHeaderPairs]fieldBuffer
	values      [maxHeaderPairs]fieldBuffer
	numFields   int
	numValues   int
	haveFlushed bool

	maxHeaderSize int
	headerNread   int
	chunkExtNread int

	// 以下两项会被清扫连接的协程读取
	lastMessageStart atomic.Int64
	headersCompleted atomic.Bool

	currentBuffer []byte
	executeDepth  int
	pendingPause  bool
	cbErr         error
}

// New 创建解析器，使用前须调用 Initialize。
func New(cb Callbacks) *Parser {
	p := &Parser{cb: cb}
	p.settings = llhttp.Settings{
		OnMessageBegin:        p.onMessageBegin,
		OnURL:                 p.onURL,
		OnStatus:              p.onStatus,
		OnHeaderField:         p.onHeaderField,
		OnHeaderValue:         p.onHeaderValue,
		OnHeadersComplete:     p.onHeadersComplete,
		OnBody:                p.onBody,
		OnMessageComplete:     p.onMessageComplete,
		OnChunkExtensionName:  p.onChunkExtension,
		OnChunkExtensionValue: p.onChunkExtension,
		OnChunkHeader:         p.onChunkHeader,
		OnChunkComplete:       p.onChunkComplete,
	}
	return p
}

// Initialize 重置解析器。maxHeaderSize 为 0 时取 config.DefaultMaxHeaderSize。
// conns 非 nil 时解析器立即登记为活跃，以便清扫从不发送数据的连接。
func (p *Parser) Initialize(typ llhttp.Type, maxHeaderSize int, lenient llhttp.Lenient, conns ConnectionsList) {
	if maxHeaderSize <= 0 {
		maxHeaderSize = config.DefaultMaxHeaderSize
	}
	p.tok.Init(typ, &p.settings)
	p.tok.SetLenient(lenient)

	p.url.reset()
	p.status.reset()
	p.resetFields()
	p.haveFlushed = false
	p.headerNread = 0
	p.chunkExtNread = 0
	p.maxHeaderSize = maxHeaderSize
	p.headersCompleted.Store(false)
	p.lastMessageStart.Store(0)
	p.pendingPause = false
	p.cbErr = nil

	p.conns = conns
	if conns != nil {
		p.lastMessageStart.Store(nanotime())
		conns.Push(p)
		conns.PushActive(p)
	}
}

// Execute 解析 data，返回消耗的字节数。协议升级时返回升级数据之前的字节数且不报错。
// 出错时返回 *errors.Error，其 Err 为 *ParseError。
func (p *Parser) Execute(data []byte) (int, error) {
	return p.execute(data, false)
}

// Finish 通知输入已结束。
func (p *Parser) Finish() error {
	_, err := p.execute(nil, true)
	return err
}

func (p *Parser) execute(data []byte, finish bool) (int, error) {
	p.currentBuffer = data
	p.cbErr = nil
	p.executeDepth++

	var e llhttp.Errno
	if finish {
		e = p.tok.Finish()
	} else {
		e = p.tok.Execute(data)
		p.save()
	}
	p.executeDepth--

	nread := len(data)
	if e != llhttp.OK {
		nread = p.tok.ErrorPos()
		if e == llhttp.PausedUpgrade {
			e = llhttp.OK
			p.tok.ResumeAfterUpgrade()
		}
	}
	if p.pendingPause {
		p.pendingPause = false
		p.tok.Pause()
	}
	p.currentBuffer = nil

	if p.cbErr != nil {
		return nread, p.parseError(e, nread)
	}
	if !p.tok.Upgrade() && e != llhttp.OK {
		return nread, p.parseError(e, nread)
	}
	return nread, nil
}

// Pause 暂停解析。在回调中调用时延迟到本次 Execute 返回前生效。
func (p *Parser) Pause() {
	if p.executeDepth > 0 {
		p.pendingPause = true
		return
	}
	p.tok.Pause()
}

// Resume 恢复解析。在回调中调用时仅撤销尚未生效的 Pause。
func (p *Parser) Resume() {
	if p.executeDepth > 0 {
		p.pendingPause = false
		return
	}
	p.tok.Resume()
}

// CurrentBuffer 返回正在解析的输入的拷贝，不在 Execute 中时返回 nil。
func (p *Parser) CurrentBuffer() []byte {
	if p.currentBuffer == nil {
		return nil
	}
	return append([]byte(nil), p.currentBuffer...)
}

// Duration 返回当前报文开始至今的时长，空闲时返回 0。
func (p *Parser) Duration() time.Duration {
	start := p.lastMessageStart.Load()
	if start == 0 {
		return 0
	}
	return time.Duration(nanotime() - start)
}

func (p *Parser) HeadersCompleted() bool { return p.headersCompleted.Load() }

// LastMessageStart 返回当前报文开始的单调时间戳，空闲时为 0。
func (p *Parser) LastMessageStart() int64 { return p.lastMessageStart.Load() }

// Remove 把解析器从连接表中移除。
func (p *Parser) Remove() {
	if p.conns != nil {
		p.conns.Pop(p)
		p.conns.PopActive(p)
	}
}

// Free 归还持有的缓冲区。
func (p *Parser) Free() {
	p.url.reset()
	p.status.reset()
	p.resetFields()
}

func (p *Parser) SetOwner(v any) { p.owner = v }
func (p *Parser) Owner() any     { return p.owner }

// ShouldKeepAlive 报告最近一条报文结束后连接能否复用。
func (p *Parser) ShouldKeepAlive() bool { return p.tok.ShouldKeepAlive() }

// Upgraded 报告最近一条报文是否为 CONNECT 或协议升级。
func (p *Parser) Upgraded() bool { return p.tok.Upgrade() }

func (p *Parser) save() {
	p.url.save()
	p.status.save()
	for i := 0; i < p.numFields; i++ {
		p.fields[i].save()
	}
	for i := 0; i < p.numValues; i++ {
		p.values[i].save()
	}
}

func (p *Parser) resetFields() {
	for i := range p.fields {
		p.fields[i].reset()
		p.values[i].reset()
	}
	p.numFields = 0
	p.numValues = 0
}

// trackHeader 累计头部字节数，达到上限时以头部过大失败。
func (p *Parser) trackHeader(n int) int {
	p.headerNread += n
	if p.headerNread >= p.maxHeaderSize {
		p.tok.SetErrorReason(reasonHeaderOverflow)
		return int(llhttp.ErrUser)
	}
	return 0
}

func (p *Parser) headers() []string {
	h := make([]string, 0, p.numValues*2)
	for i := 0; i < p.numValues; i++ {
		h = append(h, p.fields[i].String(), p.values[i].TrimmedString())
	}
	return h
}

// flush 把已收到的字段对交给 OnHeaders。
func (p *Parser) flush() error {
	if p.cb.OnHeaders == nil {
		return nil
	}
	err := p.cb.OnHeaders(p.headers(), p.url.String())
	p.url.reset()
	p.haveFlushed = true
	return err
}

func (p *Parser) callbackFailed(err error) {
	if p.cbErr == nil {
		p.cbErr = err
	}
}

func (p *Parser) onMessageBegin(*llhttp.Parser) int {
	if p.conns != nil {
		p.conns.Pop(p)
		p.conns.PopActive(p)
	}
	p.resetFields()
	p.haveFlushed = false
	p.headersCompleted.Store(false)
	p.chunkExtNread = 0
	p.lastMessageStart.Store(nanotime())
	p.url.reset()
	p.status.reset()
	if p.conns != nil {
		p.conns.Push(p)
		p.conns.PushActive(p)
	}

	if p.cb.OnMessageBegin == nil {
		return 0
	}
	if err := p.cb.OnMessageBegin(); err != nil {
		p.callbackFailed(err)
		return -1
	}
	return 0
}

func (p *Parser) onURL(_ *llhttp.Parser, b []byte) int {
	if r := p.trackHeader(len(b)); r != 0 {
		return r
	}
	p.url.update(b)
	return 0
}

func (p *Parser) onStatus(_ *llhttp.Parser, b []byte) int {
	if r := p.trackHeader(len(b)); r != 0 {
		return r
	}
	p.status.update(b)
	return 0
}

func (p *Parser) onHeaderField(_ *llhttp.Parser, b []byte) int {
	if r := p.trackHeader(len(b)); r != 0 {
		return r
	}
	if p.numFields == p.numValues {
		// 新字段开始
		if p.numFields == maxHeaderPairs {
			if err := p.flush(); err != nil {
				p.callbackFailed(err)
				p.tok.SetErrorReason(reasonJSException)
				return int(llhttp.ErrUser)
			}
			p.resetFields()
		}
		p.numFields++
		p.fields[p.numFields-1].reset()
	}
	p.fields[p.numFields-1].update(b)
	return 0
}

func (p *Parser) onHeaderValue(_ *llhttp.Parser, b []byte) int {
	if r := p.trackHeader(len(b)); r != 0 {
		return r
	}
	if p.numValues != p.numFields {
		p.numValues++
		p.values[p.numValues-1].reset()
	}
	p.values[p.numValues-1].update(b)
	return 0
}

func (p *Parser) onChunkExtension(_ *llhttp.Parser, b []byte) int {
	p.chunkExtNread += len(b)
	if p.chunkExtNread > maxChunkExtensionsSize {
		p.tok.SetErrorReason(reasonChunkExtensionsOverflow)
		return int(llhttp.ErrUser)
	}
	return 0
}

func (p *Parser) onHeadersComplete(t *llhttp.Parser) int {
	p.headersCompleted.Store(true)
	p.headerNread = 0

	if p.cb.OnHeadersComplete == nil {
		return 0
	}

	info := HeadersInfo{
		Type:            t.Type(),
		VersionMajor:    t.HTTPMajor(),
		VersionMinor:    t.HTTPMinor(),
		Upgrade:         t.Upgrade(),
		ShouldKeepAlive: t.ShouldKeepAlive(),
	}
	if p.haveFlushed {
		if err := p.flush(); err != nil {
			p.callbackFailed(err)
			return -1
		}
	} else {
		info.Headers = p.headers()
		info.HasHeaders = true
		if t.Type() == llhttp.TypeRequest {
			info.URL = p.url.String()
			info.HasURL = true
		}
	}
	p.resetFields()

	if t.Type() == llhttp.TypeRequest {
		info.Method = t.Method()
	}
	if t.Type() == llhttp.TypeResponse {
		info.StatusCode = t.StatusCode()
		info.StatusMessage = p.status.TrimmedString()
	}

	r, err := p.cb.OnHeadersComplete(info)
	if err != nil {
		p.callbackFailed(err)
		return -1
	}
	return r
}

func (p *Parser) onBody(_ *llhttp.Parser, b []byte) int {
	if len(b) == 0 || p.cb.OnBody == nil {
		return 0
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	if err := p.cb.OnBody(buf); err != nil {
		p.callbackFailed(err)
		p.tok.SetErrorReason(reasonJSException)
		return int(llhttp.ErrUser)
	}
	return 0
}

func (p *Parser) onMessageComplete(*llhttp.Parser) int {
	if p.conns != nil {
		p.conns.Pop(p)
		p.conns.PopActive(p)
	}
	p.lastMessageStart.Store(0)
	if p.conns != nil {
		p.conns.Push(p)
	}

	if p.numFields > 0 {
		// 尾部字段
		if err := p.flush(); err != nil {
			p.callbackFailed(err)
			return -1
		}
	}

	if p.cb.OnMessageComplete == nil {
		return 0
	}
	if err := p.cb.OnMessageComplete(); err != nil {
		p.callbackFailed(err)
		return -1
	}
	return 0
}

func (p *Parser) onChunkHeader(*llhttp.Parser) int {
	p.headerNread = 0
	p.chunkExtNread = 0
	return 0
}

func (p *Parser) onChunkComplete(*llhttp.Parser) int {
	p.headerNread = 0
	return 0
}
