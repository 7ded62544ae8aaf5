// Package llhttp 实现一个增量式的 HTTP/1.x 报文分词器。
//
// 解析器逐字节推进状态机，并通过 Settings 中的回调报告事件：
// 片段回调（URL、状态描述、字段名、字段值、正文、分块扩展）收到的字节
// 直接引用调用方传入的缓冲区，仅在回调期间有效。一次 Execute 结束时，
// 尚未结束的片段会先把已收到的部分交给回调，所以同一个字段可能分多次到达。
package llhttp

import "math"

// Cb 是通知型回调，返回 0 表示继续，返回 int(Paused) 表示暂停，其他值表示出错。
type Cb func(p *Parser) int

// DataCb 是片段回调，b 只在回调期间有效。返回 0 表示继续，
// 返回 -1 视为 HPE_USER，其他非 0 值直接作为错误码。
type DataCb func(p *Parser, b []byte) int

// Settings 是解析器的回调集合，未设置的回调会被跳过。
type Settings struct {
	OnMessageBegin Cb
	OnURL          DataCb
	OnStatus       DataCb
	OnHeaderField  DataCb
	OnHeaderValue  DataCb
	// OnHeadersComplete 返回 0 正常继续，1 跳过正文，2 视为协议升级并跳过正文。
	OnHeadersComplete     Cb
	OnBody                DataCb
	OnMessageComplete     Cb
	OnChunkExtensionName  DataCb
	OnChunkExtensionValue DataCb
	OnChunkHeader         Cb
	OnChunkComplete       Cb
}

// Parser 是 HTTP/1.x 分词器。零值不可用，须先调用 Init。
type Parser struct {
	// Data 供调用方挂载任意数据，解析器不会读写它。
	Data any

	typ      Type
	settings *Settings
	lenient  Lenient

	state    state
	errno    Errno
	reason   string
	errorPos int

	flags         Flags
	finish        finishState
	method        Method
	statusCode    int
	major, minor  uint8
	upgrade       bool
	contentLength uint64

	span      spanKind
	spanStart int

	// tok 暂存方法名或小写化的字段名，tokLen 超过容量时仅计数
	tok        [24]byte
	tokLen     int
	matchIdx   int
	header     headerKind
	sawHeader  bool
	clDigits   bool
	clTrailing bool

	// vtok 暂存 Transfer-Encoding / Connection 值中的当前标记
	vtok      [16]byte
	vtokLen   int
	vtokState vtokState
}

// Init 以类型 typ 和回调 settings 重置解析器。
func (p *Parser) Init(typ Type, settings *Settings) {
	*p = Parser{Data: p.Data, typ: typ, settings: settings}
	if p.settings == nil {
		p.settings = &Settings{}
	}
}

// SetLenient 设置宽松解析开关。
func (p *Parser) SetLenient(l Lenient) { p.lenient = l }

// Lenient 返回当前的宽松解析开关。
func (p *Parser) Lenient() Lenient { return p.lenient }

func (p *Parser) Type() Type            { return p.typ }
func (p *Parser) Method() Method        { return p.method }
func (p *Parser) StatusCode() int       { return p.statusCode }
func (p *Parser) HTTPMajor() int        { return int(p.major) }
func (p *Parser) HTTPMinor() int        { return int(p.minor) }
func (p *Parser) Upgrade() bool         { return p.upgrade }
func (p *Parser) Flags() Flags          { return p.flags }
func (p *Parser) ContentLength() uint64 { return p.contentLength }

// Errno 返回当前错误码。
func (p *Parser) Errno() Errno { return p.errno }

// Reason 返回当前错误的描述。
func (p *Parser) Reason() string { return p.reason }

// ErrorPos 返回出错位置相对于最近一次 Execute 输入的偏移。
func (p *Parser) ErrorPos() int { return p.errorPos }

// SetErrorReason 设置错误描述，通常由回调在返回错误前调用。
func (p *Parser) SetErrorReason(reason string) { p.reason = reason }

// Pause 暂停解析，之后的 Execute 都返回 Paused，直到 Resume。
func (p *Parser) Pause() {
	if p.errno != OK {
		return
	}
	p.errno = Paused
	p.reason = "Paused"
}

// Resume 解除 Pause 造成的暂停。
func (p *Parser) Resume() {
	if p.errno != Paused {
		return
	}
	p.errno = OK
	p.reason = ""
}

// ResumeAfterUpgrade 解除协议升级造成的暂停。
func (p *Parser) ResumeAfterUpgrade() {
	if p.errno != PausedUpgrade {
		return
	}
	p.errno = OK
	p.reason = ""
}

// MessageNeedsEOF 报告当前报文是否只能以连接关闭作为结束。
func (p *Parser) MessageNeedsEOF() bool {
	if p.typ == TypeRequest {
		return false
	}
	if p.statusCode/100 == 1 || p.statusCode == 204 || p.statusCode == 304 || p.flags&FlagSkipBody != 0 {
		return false
	}
	if p.flags&FlagTransferEncoding != 0 && p.flags&FlagChunked == 0 {
		return true
	}
	return p.flags&(FlagChunked|FlagContentLength) == 0
}

// ShouldKeepAlive 报告当前报文结束后连接是否可以复用。
func (p *Parser) ShouldKeepAlive() bool {
	if p.major > 0 && p.minor > 0 {
		if p.flags&FlagConnectionClose != 0 {
			return false
		}
	} else if p.flags&FlagConnectionKeepAlive == 0 {
		return false
	}
	return !p.MessageNeedsEOF()
}

// Finish 通知解析器输入已结束。以读到 EOF 为界的正文在此完成。
func (p *Parser) Finish() Errno {
	if p.errno != OK {
		return OK
	}
	switch p.finish {
	case finishSafeWithCB:
		p.span = spanNone
		p.finish = finishSafe
		p.state = sClosed
		if r := p.call(p.settings.OnMessageComplete); r != 0 && Errno(r) != Paused {
			p.errno = ErrCBMessageComplete
			p.reason = "`on_message_complete` callback error"
			p.errorPos = 0
			return p.errno
		}
		return OK
	case finishSafe:
		return OK
	}
	p.errno = ErrInvalidEOFState
	p.reason = "Invalid EOF state"
	p.errorPos = 0
	return p.errno
}

func (p *Parser) call(cb Cb) int {
	if cb == nil {
		return 0
	}
	return cb(p)
}

// notify 调用通知型回调，pos 是回调之后继续解析的位置。
func (p *Parser) notify(cb Cb, code Errno, reason string, pos int) Errno {
	r := p.call(cb)
	switch {
	case r == 0:
		return OK
	case Errno(r) == Paused:
		p.errno = Paused
		p.reason = "Paused in callback"
	default:
		p.errno = code
		p.reason = reason
	}
	p.errorPos = pos
	p.span = spanNone
	return p.errno
}

func (p *Parser) fail(pos int, code Errno, reason string) Errno {
	p.errno = code
	p.reason = reason
	p.errorPos = pos
	p.span = spanNone
	return code
}

type spanKind uint8

const (
	spanNone spanKind = iota
	spanURL
	spanStatus
	spanHeaderField
	spanHeaderValue
	spanBody
	spanChunkExtName
	spanChunkExtValue
)

func (p *Parser) spanBegin(k spanKind, pos int) {
	p.span = k
	p.spanStart = pos
}

// spanEnd 结束当前片段并把 [spanStart, pos) 交给回调。
// 字段值即使为空也会回调一次，保证字段名与字段值成对出现。
func (p *Parser) spanEnd(data []byte, pos int) Errno {
	k := p.span
	p.span = spanNone
	if pos == p.spanStart && k != spanHeaderValue {
		return OK
	}
	return p.emit(k, data[p.spanStart:pos], pos)
}

func (p *Parser) emit(k spanKind, b []byte, pos int) Errno {
	var cb DataCb
	switch k {
	case spanURL:
		cb = p.settings.OnURL
	case spanStatus:
		cb = p.settings.OnStatus
	case spanHeaderField:
		cb = p.settings.OnHeaderField
	case spanHeaderValue:
		cb = p.settings.OnHeaderValue
	case spanBody:
		cb = p.settings.OnBody
	case spanChunkExtName:
		cb = p.settings.OnChunkExtensionName
	case spanChunkExtValue:
		cb = p.settings.OnChunkExtensionValue
	}
	if cb == nil {
		return OK
	}
	r := cb(p, b)
	if r == 0 {
		return OK
	}
	if r == -1 {
		r = int(ErrUser)
	}
	if p.reason == "" {
		p.reason = "Span callback error"
	}
	p.errno = Errno(r)
	p.errorPos = pos
	p.span = spanNone
	return p.errno
}

type headerKind uint8

const (
	hGeneral headerKind = iota
	hContentLength
	hTransferEncoding
	hConnection
)

type vtokState uint8

const (
	vtokIn vtokState = iota
	vtokAfter
	vtokParam
)

// headerFieldDone 在字段名结束时识别需要特殊处理的头部。
func (p *Parser) headerFieldDone(pos int) Errno {
	p.header = hGeneral
	p.vtokLen = 0
	p.vtokState = vtokIn
	p.sawHeader = true
	if p.flags&FlagTrailing != 0 || p.tokLen > len(p.tok) {
		return OK
	}
	switch string(p.tok[:p.tokLen]) {
	case "content-length":
		if p.flags&FlagContentLength != 0 {
			return p.fail(pos, ErrUnexpectedContentLen, "Duplicate Content-Length")
		}
		p.header = hContentLength
		p.contentLength = 0
		p.clDigits = false
		p.clTrailing = false
	case "transfer-encoding":
		p.flags |= FlagTransferEncoding
		p.header = hTransferEncoding
	case "connection", "proxy-connection":
		p.header = hConnection
	case "upgrade":
		p.flags |= FlagUpgrade
	}
	return OK
}

// headerValueByte 处理特殊头部值中的一个字节。
func (p *Parser) headerValueByte(c byte, pos int) Errno {
	switch p.header {
	case hContentLength:
		switch {
		case c >= '0' && c <= '9':
			if p.clTrailing {
				return p.fail(pos, ErrInvalidContentLength, "Invalid character in Content-Length")
			}
			d := uint64(c - '0')
			if p.contentLength > (math.MaxUint64-d)/10 {
				return p.fail(pos, ErrInvalidContentLength, "Content-Length overflow")
			}
			p.contentLength = p.contentLength*10 + d
			p.clDigits = true
		case c == ' ' || c == '\t':
			p.clTrailing = p.clDigits
		default:
			return p.fail(pos, ErrInvalidContentLength, "Invalid character in Content-Length")
		}
	case hTransferEncoding, hConnection:
		switch {
		case c == ',':
			if e := p.valueTokenDone(pos); e != OK {
				return e
			}
			p.vtokLen = 0
			p.vtokState = vtokIn
		case p.vtokState == vtokParam:
		case c == ';':
			p.vtokState = vtokParam
		case c == ' ' || c == '\t':
			if p.vtokLen > 0 {
				p.vtokState = vtokAfter
			}
		case p.vtokState == vtokAfter:
			// 标记中夹杂空白，视为无法识别的标记
			p.vtokLen = len(p.vtok) + 1
		case p.vtokLen < len(p.vtok):
			p.vtok[p.vtokLen] = lower(c)
			p.vtokLen++
		default:
			p.vtokLen = len(p.vtok) + 1
		}
	}
	return OK
}

func (p *Parser) valueTokenDone(pos int) Errno {
	if p.vtokLen == 0 {
		return OK
	}
	var tok string
	if p.vtokLen <= len(p.vtok) {
		tok = string(p.vtok[:p.vtokLen])
	}
	if p.header == hConnection {
		switch tok {
		case "close":
			p.flags |= FlagConnectionClose
		case "keep-alive":
			p.flags |= FlagConnectionKeepAlive
		case "upgrade":
			p.flags |= FlagConnectionUpgrade
		}
		return OK
	}
	if tok == "chunked" {
		p.flags |= FlagChunked
		return OK
	}
	if p.flags&FlagChunked != 0 {
		// chunked 之后还有其他编码
		if p.typ == TypeRequest && p.lenient&LenientTransferEncoding == 0 {
			return p.fail(pos, ErrInvalidTransferEnc, "Invalid `Transfer-Encoding` header value")
		}
		p.flags &^= FlagChunked
	}
	return OK
}

func (p *Parser) headerValueDone(pos int) Errno {
	switch p.header {
	case hContentLength:
		if !p.clDigits {
			return p.fail(pos, ErrInvalidContentLength, "Empty Content-Length")
		}
		p.flags |= FlagContentLength
	case hTransferEncoding, hConnection:
		if e := p.valueTokenDone(pos); e != OK {
			return e
		}
	}
	p.header = hGeneral
	return OK
}

// headersDone 在头部（或尾部字段）的空行之后调用，next 是正文的起始位置。
func (p *Parser) headersDone(pos, next int) Errno {
	if p.flags&FlagTrailing != 0 {
		p.state = sStart
		if e := p.notify(p.settings.OnChunkComplete, ErrCBChunkComplete, "`on_chunk_complete` callback error", next); e != OK {
			return e
		}
		return p.messageComplete(next)
	}

	if p.flags&FlagContentLength != 0 && p.flags&FlagTransferEncoding != 0 && p.lenient&LenientChunkedLength == 0 {
		return p.fail(pos, ErrUnexpectedContentLen, "Content-Length can't be present with Transfer-Encoding")
	}

	if p.flags&FlagUpgrade != 0 && p.flags&FlagConnectionUpgrade != 0 {
		p.upgrade = p.typ == TypeRequest || p.statusCode == 101
	} else {
		p.upgrade = p.typ == TypeRequest && p.method == MethodConnect
	}

	paused := false
	if cb := p.settings.OnHeadersComplete; cb != nil {
		switch r := cb(p); {
		case r == 0:
		case r == 1:
			p.flags |= FlagSkipBody
		case r == 2:
			p.upgrade = true
			p.flags |= FlagSkipBody
		case Errno(r) == Paused:
			paused = true
		default:
			return p.fail(pos, ErrCBHeadersComplete, "User callback error")
		}
	}

	if e := p.afterHeadersComplete(pos, next); e != OK {
		return e
	}
	if paused && p.errno == OK {
		p.errno = Paused
		p.reason = "Paused by on_headers_complete"
		p.errorPos = next
		return p.errno
	}
	return OK
}

func (p *Parser) afterHeadersComplete(pos, next int) Errno {
	hasBody := p.flags&FlagChunked != 0 || p.contentLength > 0
	if p.upgrade && (p.method == MethodConnect || p.flags&FlagSkipBody != 0 || !hasBody) ||
		p.typ == TypeResponse && p.statusCode == 101 {
		return p.messageComplete(next)
	}
	if p.typ == TypeResponse && p.statusCode == 100 {
		return p.messageComplete(next)
	}
	if p.flags&FlagSkipBody != 0 ||
		p.typ == TypeResponse && (p.statusCode == 102 || p.statusCode == 103 || p.statusCode == 204 || p.statusCode == 304) {
		return p.messageComplete(next)
	}
	switch {
	case p.flags&FlagChunked != 0:
		p.state = sChunkSizeStart
	case p.flags&FlagTransferEncoding != 0:
		if p.typ == TypeRequest && p.lenient&(LenientChunkedLength|LenientTransferEncoding) == 0 {
			return p.fail(pos, ErrInvalidTransferEnc, "Request has invalid `Transfer-Encoding`")
		}
		p.readUntilEOF(next)
	case p.flags&FlagContentLength == 0:
		if p.MessageNeedsEOF() {
			p.readUntilEOF(next)
		} else {
			return p.messageComplete(next)
		}
	case p.contentLength == 0:
		return p.messageComplete(next)
	default:
		p.state = sBodyIdentity
		p.spanBegin(spanBody, next)
	}
	return OK
}

func (p *Parser) readUntilEOF(next int) {
	p.state = sBodyEOF
	p.finish = finishSafeWithCB
	p.spanBegin(spanBody, next)
}

// messageComplete 结束当前报文，next 是下一条报文（或升级后数据）的起始位置。
func (p *Parser) messageComplete(next int) Errno {
	p.state = sStart
	r := p.call(p.settings.OnMessageComplete)
	if r != 0 && Errno(r) != Paused {
		return p.fail(next, ErrCBMessageComplete, "`on_message_complete` callback error")
	}
	if p.upgrade {
		p.finish = finishSafe
		p.flags = 0
		p.errno = PausedUpgrade
		p.reason = "Pause on CONNECT/Upgrade"
		p.errorPos = next
		return p.errno
	}
	keepAlive := p.ShouldKeepAlive()
	p.finish = finishSafe
	p.flags = 0
	if !keepAlive && p.lenient&LenientKeepAlive == 0 {
		p.state = sClosed
	}
	if Errno(r) == Paused {
		p.errno = Paused
		p.reason = "Paused by on_message_complete"
		p.errorPos = next
		return p.errno
	}
	return OK
}

// messageBegin 在一条新报文的首字节处调用。
func (p *Parser) messageBegin(pos int) Errno {
	p.flags = 0
	p.contentLength = 0
	p.upgrade = false
	p.statusCode = 0
	p.method = 0
	p.major, p.minor = 0, 0
	p.sawHeader = false
	p.tokLen = 0
	p.matchIdx = 0
	p.finish = finishUnsafe
	p.state = sStartLine
	return p.notify(p.settings.OnMessageBegin, ErrCBMessageBegin, "`on_message_begin` callback error", pos)
}

func (p *Parser) validVersion() bool {
	if p.lenient&LenientVersion != 0 {
		return true
	}
	switch p.major {
	case 0:
		return p.minor == 9
	case 1:
		return p.minor <= 1
	case 2:
		return p.minor == 0
	}
	return false
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
