package llhttp

import (
	"math"

	"github.com/favbox/hostbind/internal/bytesconv"
)

type state uint8

const (
	sStart state = iota
	sStartLine
	sBothH
	sReqMethod
	sReqSpacesBeforeURL
	sReqURL
	sHTTPConst
	sVersionMajor
	sVersionDot
	sVersionMinor
	sReqLineEnd
	sReqLineLF
	sResAfterVersion
	sResStatusCode
	sResStatusStart
	sResStatus
	sResLineLF
	sHeaderFieldStart
	sHeaderField
	sHeaderValueDiscardWS
	sHeaderValue
	sHeaderValueLF
	sHeadersAlmostDone
	sBodyIdentity
	sBodyEOF
	sChunkSizeStart
	sChunkSize
	sChunkSizeOWS
	sChunkExtNameStart
	sChunkExtName
	sChunkExtValueStart
	sChunkExtValue
	sChunkExtQuoted
	sChunkExtQuotedEsc
	sChunkExtAfterQuoted
	sChunkSizeLF
	sChunkData
	sChunkDataCR
	sChunkDataLF
	sClosed
)

const httpConst = "HTTP/"

// Execute 解析 data，返回 OK 或错误码。出错时 ErrorPos 给出出错字节的偏移；
// 返回 PausedUpgrade 时 ErrorPos 是升级后数据的起始偏移。
func (p *Parser) Execute(data []byte) Errno {
	if p.errno != OK {
		p.errorPos = 0
		return p.errno
	}
	if p.span != spanNone {
		p.spanStart = 0
	}
	if e := p.run(data); e != OK {
		return e
	}
	if p.span != spanNone && p.spanStart < len(data) {
		if e := p.emit(p.span, data[p.spanStart:], len(data)); e != OK {
			return e
		}
	}
	return OK
}

func (p *Parser) lenientCR() bool { return p.lenient&LenientOptionalCRBeforeLF != 0 }
func (p *Parser) lenientLF() bool { return p.lenient&LenientOptionalLFAfterCR != 0 }

func (p *Parser) run(data []byte) Errno {
	n := len(data)
	for i := 0; i < n; {
		c := data[i]
		switch p.state {
		case sStart:
			if c == '\r' || c == '\n' {
				i++
				continue
			}
			if e := p.messageBegin(i); e != OK {
				return e
			}

		case sStartLine:
			switch p.typ {
			case TypeRequest:
				p.state = sReqMethod
			case TypeResponse:
				p.state = sHTTPConst
			default:
				if c == 'H' {
					p.tok[0] = c
					p.tokLen = 1
					p.state = sBothH
					i++
				} else {
					p.typ = TypeRequest
					p.state = sReqMethod
				}
			}

		case sBothH:
			if c == 'T' {
				p.typ = TypeResponse
				p.matchIdx = 1
				p.state = sHTTPConst
			} else {
				p.typ = TypeRequest
				p.state = sReqMethod
			}

		case sReqMethod:
			if c >= 'A' && c <= 'Z' || c == '-' {
				if p.tokLen == len(p.tok) {
					return p.fail(i, ErrInvalidMethod, "Invalid method encountered")
				}
				p.tok[p.tokLen] = c
				p.tokLen++
				i++
				continue
			}
			m, ok := methodsByName[string(p.tok[:p.tokLen])]
			if c != ' ' || !ok {
				return p.fail(i, ErrInvalidMethod, "Invalid method encountered")
			}
			p.method = m
			p.state = sReqSpacesBeforeURL
			i++

		case sReqSpacesBeforeURL:
			if c == ' ' {
				i++
				continue
			}
			if !bytesconv.URLTable[c] {
				return p.fail(i, ErrInvalidURL, "Unexpected start char in url")
			}
			p.spanBegin(spanURL, i)
			p.state = sReqURL

		case sReqURL:
			j := i
			for j < n && bytesconv.URLTable[data[j]] {
				j++
			}
			if j == n {
				i = j
				continue
			}
			switch data[j] {
			case ' ':
				p.state = sHTTPConst
				p.matchIdx = 0
				if e := p.spanEnd(data, j); e != OK {
					return e
				}
			case '\r', '\n':
				return p.fail(j, ErrInvalidVersion, "Missing HTTP version")
			default:
				return p.fail(j, ErrInvalidURL, "Invalid characters in url")
			}
			i = j + 1

		case sHTTPConst:
			if c != httpConst[p.matchIdx] {
				return p.fail(i, ErrInvalidConstant, "Expected HTTP/")
			}
			p.matchIdx++
			if p.matchIdx == len(httpConst) {
				p.state = sVersionMajor
			}
			i++

		case sVersionMajor:
			if c < '0' || c > '9' {
				return p.fail(i, ErrInvalidVersion, "Invalid major version")
			}
			p.major = c - '0'
			p.state = sVersionDot
			i++

		case sVersionDot:
			if c != '.' {
				return p.fail(i, ErrInvalidVersion, "Expected dot")
			}
			p.state = sVersionMinor
			i++

		case sVersionMinor:
			if c < '0' || c > '9' {
				return p.fail(i, ErrInvalidVersion, "Invalid minor version")
			}
			p.minor = c - '0'
			if !p.validVersion() {
				return p.fail(i, ErrInvalidVersion, "Invalid HTTP version")
			}
			if p.typ == TypeRequest {
				p.state = sReqLineEnd
			} else {
				p.state = sResAfterVersion
			}
			i++

		case sReqLineEnd:
			switch {
			case c == '\r':
				p.state = sReqLineLF
				i++
			case c == '\n' && p.lenientCR():
				if e := p.requestLineDone(i + 1); e != OK {
					return e
				}
				i++
			case c == '\n':
				return p.fail(i, ErrCRExpected, "Missing expected CR after request line")
			default:
				return p.fail(i, ErrInvalidVersion, "Expected CRLF after version")
			}

		case sReqLineLF:
			if c != '\n' && !p.lenientLF() {
				return p.fail(i, ErrLFExpected, "Expected LF after request line")
			}
			if c == '\n' {
				i++
			}
			if e := p.requestLineDone(i); e != OK {
				return e
			}

		case sResAfterVersion:
			if c != ' ' {
				return p.fail(i, ErrInvalidVersion, "Expected space after version")
			}
			p.statusCode = 0
			p.tokLen = 0
			p.state = sResStatusCode
			i++

		case sResStatusCode:
			if c >= '0' && c <= '9' {
				if p.tokLen == 3 {
					return p.fail(i, ErrInvalidStatus, "Invalid status code")
				}
				p.statusCode = p.statusCode*10 + int(c-'0')
				p.tokLen++
				i++
				continue
			}
			if p.tokLen != 3 {
				return p.fail(i, ErrInvalidStatus, "Invalid status code")
			}
			switch {
			case c == ' ':
				p.state = sResStatusStart
				i++
			case c == '\r':
				p.state = sResLineLF
				i++
			case c == '\n' && p.lenientCR():
				p.state = sHeaderFieldStart
				i++
			case c == '\n':
				return p.fail(i, ErrCRExpected, "Missing expected CR after response line")
			default:
				return p.fail(i, ErrInvalidStatus, "Invalid response status")
			}

		case sResStatusStart:
			p.spanBegin(spanStatus, i)
			p.state = sResStatus

		case sResStatus:
			j := i
			for j < n && data[j] != '\r' && data[j] != '\n' {
				j++
			}
			if j == n {
				i = j
				continue
			}
			if data[j] == '\n' && !p.lenientCR() {
				return p.fail(j, ErrCRExpected, "Missing expected CR after response line")
			}
			if data[j] == '\r' {
				p.state = sResLineLF
			} else {
				p.state = sHeaderFieldStart
			}
			if e := p.spanEnd(data, j); e != OK {
				return e
			}
			i = j + 1

		case sResLineLF:
			if c != '\n' && !p.lenientLF() {
				return p.fail(i, ErrLFExpected, "Expected LF after response line")
			}
			if c == '\n' {
				i++
			}
			p.state = sHeaderFieldStart

		case sHeaderFieldStart:
			switch {
			case c == '\r':
				p.state = sHeadersAlmostDone
				i++
			case c == '\n' && p.lenientCR():
				i++
				if e := p.headersDone(i-1, i); e != OK {
					return e
				}
			case c == '\n':
				return p.fail(i, ErrCRExpected, "Missing expected CR after headers")
			case c == ' ' || c == '\t':
				if p.lenient&LenientHeaders == 0 || !p.sawHeader {
					return p.fail(i, ErrInvalidHeaderToken, "Unexpected whitespace after header value")
				}
				// obs-fold：续行并入上一个字段值
				p.header = hGeneral
				p.state = sHeaderValueDiscardWS
			case bytesconv.TokenTable[c]:
				p.tokLen = 0
				p.spanBegin(spanHeaderField, i)
				p.state = sHeaderField
			default:
				return p.fail(i, ErrInvalidHeaderToken, "Invalid header field char")
			}

		case sHeaderField:
			j := i
			for ; j < n && bytesconv.TokenTable[data[j]]; j++ {
				if p.tokLen < len(p.tok) {
					p.tok[p.tokLen] = bytesconv.ToLowerTable[data[j]]
				}
				p.tokLen++
			}
			if j == n {
				i = j
				continue
			}
			if data[j] != ':' {
				return p.fail(j, ErrInvalidHeaderToken, "Invalid header field char")
			}
			p.state = sHeaderValueDiscardWS
			if e := p.spanEnd(data, j); e != OK {
				return e
			}
			if e := p.headerFieldDone(j); e != OK {
				return e
			}
			i = j + 1

		case sHeaderValueDiscardWS:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			p.spanBegin(spanHeaderValue, i)
			p.state = sHeaderValue

		case sHeaderValue:
			strict := p.lenient&LenientHeaders == 0
			j := i
			for ; j < n; j++ {
				b := data[j]
				if b == '\r' || b == '\n' {
					break
				}
				if strict && !bytesconv.FieldValueTable[b] {
					return p.fail(j, ErrInvalidHeaderToken, "Invalid header value char")
				}
				if p.header != hGeneral {
					if e := p.headerValueByte(b, j); e != OK {
						return e
					}
				}
			}
			if j == n {
				i = j
				continue
			}
			if data[j] == '\n' && !p.lenientCR() {
				return p.fail(j, ErrCRExpected, "Missing expected CR after header value")
			}
			if data[j] == '\r' {
				p.state = sHeaderValueLF
			} else {
				p.state = sHeaderFieldStart
			}
			if e := p.spanEnd(data, j); e != OK {
				return e
			}
			if e := p.headerValueDone(j); e != OK {
				return e
			}
			i = j + 1

		case sHeaderValueLF:
			if c != '\n' && !p.lenientLF() {
				return p.fail(i, ErrLFExpected, "Missing expected LF after header value")
			}
			if c == '\n' {
				i++
			}
			p.state = sHeaderFieldStart

		case sHeadersAlmostDone:
			if c != '\n' && !p.lenientLF() {
				return p.fail(i, ErrLFExpected, "Missing expected LF after headers")
			}
			next := i
			if c == '\n' {
				next++
			}
			if e := p.headersDone(i, next); e != OK {
				return e
			}
			i = next

		case sBodyIdentity, sChunkData:
			avail := uint64(n - i)
			if avail < p.contentLength {
				p.contentLength -= avail
				i = n
				continue
			}
			i += int(p.contentLength)
			p.contentLength = 0
			if p.state == sChunkData {
				p.state = sChunkDataCR
				if e := p.spanEnd(data, i); e != OK {
					return e
				}
				continue
			}
			if e := p.spanEnd(data, i); e != OK {
				return e
			}
			if e := p.messageComplete(i); e != OK {
				return e
			}

		case sBodyEOF:
			i = n

		case sChunkSizeStart:
			v := bytesconv.HexValueTable[c]
			if v < 0 {
				return p.fail(i, ErrInvalidChunkSize, "Invalid character in chunk size")
			}
			p.contentLength = uint64(v)
			p.state = sChunkSize
			i++

		case sChunkSize:
			if v := bytesconv.HexValueTable[c]; v >= 0 {
				if p.contentLength > math.MaxUint64>>4 {
					return p.fail(i, ErrInvalidChunkSize, "Chunk size overflow")
				}
				p.contentLength = p.contentLength<<4 | uint64(v)
				i++
				continue
			}
			if e := p.chunkSizeDelim(c, i); e != OK {
				return e
			}
			i++

		case sChunkSizeOWS:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			if c != ';' && c != '\r' {
				return p.fail(i, ErrInvalidChunkSize, "Invalid character in chunk size")
			}
			if e := p.chunkSizeDelim(c, i); e != OK {
				return e
			}
			i++

		case sChunkExtNameStart:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			if !bytesconv.TokenTable[c] {
				return p.fail(i, ErrStrict, "Invalid character in chunk extensions")
			}
			p.spanBegin(spanChunkExtName, i)
			p.state = sChunkExtName

		case sChunkExtName:
			j := i
			for j < n && bytesconv.TokenTable[data[j]] {
				j++
			}
			if j == n {
				i = j
				continue
			}
			d := data[j]
			switch {
			case d == '=':
				p.state = sChunkExtValueStart
			case d == ';':
				p.state = sChunkExtNameStart
			case d == '\r':
				p.state = sChunkSizeLF
			case d == '\n' && p.lenientCR():
				p.state = sChunkSizeLF
				if e := p.spanEnd(data, j); e != OK {
					return e
				}
				i = j
				continue
			default:
				return p.fail(j, ErrStrict, "Invalid character in chunk extensions")
			}
			if e := p.spanEnd(data, j); e != OK {
				return e
			}
			i = j + 1

		case sChunkExtValueStart:
			switch {
			case c == '"':
				p.spanBegin(spanChunkExtValue, i)
				p.state = sChunkExtQuoted
				i++
			case bytesconv.TokenTable[c]:
				p.spanBegin(spanChunkExtValue, i)
				p.state = sChunkExtValue
			default:
				return p.fail(i, ErrStrict, "Invalid character in chunk extensions value")
			}

		case sChunkExtValue:
			j := i
			for j < n && bytesconv.TokenTable[data[j]] {
				j++
			}
			if j == n {
				i = j
				continue
			}
			d := data[j]
			switch {
			case d == ';':
				p.state = sChunkExtNameStart
			case d == '\r':
				p.state = sChunkSizeLF
			case d == '\n' && p.lenientCR():
				p.state = sChunkSizeLF
				if e := p.spanEnd(data, j); e != OK {
					return e
				}
				i = j
				continue
			default:
				return p.fail(j, ErrStrict, "Invalid character in chunk extensions value")
			}
			if e := p.spanEnd(data, j); e != OK {
				return e
			}
			i = j + 1

		case sChunkExtQuoted:
			switch {
			case c == '"':
				p.state = sChunkExtAfterQuoted
				i++
				if e := p.spanEnd(data, i); e != OK {
					return e
				}
			case c == '\\':
				p.state = sChunkExtQuotedEsc
				i++
			case c == '\t' || c >= 0x20 && c != 0x7f:
				i++
			default:
				return p.fail(i, ErrStrict, "Invalid character in chunk extensions quoted value")
			}

		case sChunkExtQuotedEsc:
			if c != '\t' && (c < 0x20 || c == 0x7f) {
				return p.fail(i, ErrStrict, "Invalid quoted-pair in chunk extensions quoted value")
			}
			p.state = sChunkExtQuoted
			i++

		case sChunkExtAfterQuoted:
			switch {
			case c == ';':
				p.state = sChunkExtNameStart
				i++
			case c == '\r':
				p.state = sChunkSizeLF
				i++
			case c == '\n' && p.lenientCR():
				p.state = sChunkSizeLF
			default:
				return p.fail(i, ErrStrict, "Invalid character in chunk extensions quote value")
			}

		case sChunkSizeLF:
			if c != '\n' && !p.lenientLF() {
				return p.fail(i, ErrLFExpected, "Missing expected LF after chunk size")
			}
			if c == '\n' {
				i++
			}
			if e := p.chunkHeaderDone(i); e != OK {
				return e
			}

		case sChunkDataCR:
			switch {
			case c == '\r':
				p.state = sChunkDataLF
				i++
			case c == '\n' && p.lenientCR():
				i++
				if e := p.chunkDone(i); e != OK {
					return e
				}
			case p.lenient&LenientOptionalCRLFAfterChunk != 0:
				if e := p.chunkDone(i); e != OK {
					return e
				}
			default:
				return p.fail(i, ErrStrict, "Expected LF after chunk data")
			}

		case sChunkDataLF:
			if c != '\n' && !p.lenientLF() {
				return p.fail(i, ErrStrict, "Expected LF after chunk data")
			}
			if c == '\n' {
				i++
			}
			if e := p.chunkDone(i); e != OK {
				return e
			}

		case sClosed:
			if c == '\r' || c == '\n' {
				i++
				continue
			}
			if p.lenient&LenientDataAfterClose == 0 {
				return p.fail(i, ErrClosedConnection, "Data after `Connection: close`")
			}
			p.state = sStart

		default:
			return p.fail(i, ErrInternal, "Invalid internal state")
		}
	}
	return OK
}

// requestLineDone 在请求行结束后调用，next 是首个头部字段的起始位置。
func (p *Parser) requestLineDone(next int) Errno {
	if p.method == MethodPRI && p.major == 2 && p.minor == 0 {
		p.errno = PausedH2Upgrade
		p.reason = "Pause on PRI/Upgrade"
		p.errorPos = next
		return p.errno
	}
	p.state = sHeaderFieldStart
	return OK
}

// chunkSizeDelim 处理分块大小之后的首个非十六进制字符。
func (p *Parser) chunkSizeDelim(c byte, pos int) Errno {
	switch {
	case c == ';':
		p.state = sChunkExtNameStart
	case c == '\r':
		p.state = sChunkSizeLF
	case c == '\n' && p.lenientCR():
		return p.chunkHeaderDone(pos + 1)
	case c == '\n':
		return p.fail(pos, ErrCRExpected, "Missing expected CR after chunk size")
	case (c == ' ' || c == '\t') && p.lenient&LenientSpacesAfterChunkSize != 0:
		p.state = sChunkSizeOWS
	default:
		return p.fail(pos, ErrInvalidChunkSize, "Invalid character in chunk size")
	}
	return OK
}

// chunkHeaderDone 在分块头的 CRLF 之后调用，next 是分块数据的起始位置。
func (p *Parser) chunkHeaderDone(next int) Errno {
	if p.contentLength == 0 {
		p.flags |= FlagTrailing
		p.state = sHeaderFieldStart
	} else {
		p.state = sChunkData
		p.spanBegin(spanBody, next)
	}
	if e := p.notify(p.settings.OnChunkHeader, ErrCBChunkHeader, "`on_chunk_header` callback error", next); e != OK {
		return e
	}
	return OK
}

func (p *Parser) chunkDone(next int) Errno {
	p.state = sChunkSizeStart
	return p.notify(p.settings.OnChunkComplete, ErrCBChunkComplete, "`on_chunk_complete` callback error", next)
}
