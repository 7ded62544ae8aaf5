package protocol

import (
	"strings"

	"github.com/favbox/hostbind/common/bytebufferpool"
	"github.com/favbox/hostbind/protocol/consts"
	"github.com/favbox/hostbind/protocol/cookie"
)

// Request 是一条已完整接收的 HTTP 请求。
type Request struct {
	Method     string
	URL        string
	ProtoMajor int
	ProtoMinor int
	Header     Header
	// Trailer 是分块正文之后的尾部字段
	Trailer Header
	// Upgrade 报告请求是否为 CONNECT 或协议升级
	Upgrade bool
	// KeepAlive 报告按协议该连接能否继续复用
	KeepAlive bool

	body    *bytebufferpool.ByteBuffer
	cookies *cookie.Map
}

// AppendBody 追加正文片段。
func (req *Request) AppendBody(p []byte) {
	if req.body == nil {
		req.body = bytebufferpool.Get()
	}
	req.body.Write(p) //nolint:errcheck
}

// Body 返回正文，在 Reset 前有效。
func (req *Request) Body() []byte {
	if req.body == nil {
		return nil
	}
	return req.body.B
}

// Cookies 返回请求范围内的 Cookie 视图，首次调用时由 Cookie 头部解析。
// 对其所做的修改会在响应中写成 Set-Cookie。
func (req *Request) Cookies() *cookie.Map {
	if req.cookies == nil {
		req.cookies = cookie.ParseCookieHeader(strings.Join(req.Header.Values(consts.HeaderCookie), "; "))
	}
	return req.cookies
}

// ParsedCookies 返回已解析的 Cookie 视图，从未访问过时返回 nil。
func (req *Request) ParsedCookies() *cookie.Map {
	return req.cookies
}

// IsHTTP11 报告协议版本是否不低于 HTTP/1.1。
func (req *Request) IsHTTP11() bool {
	return req.ProtoMajor > 1 || (req.ProtoMajor == 1 && req.ProtoMinor >= 1)
}

// IsHead 报告是否为 HEAD 请求。
func (req *Request) IsHead() bool {
	return req.Method == "HEAD"
}

// Reset 清空请求以便复用，并归还正文缓冲。
func (req *Request) Reset() {
	req.Method = ""
	req.URL = ""
	req.ProtoMajor = 0
	req.ProtoMinor = 0
	req.Header.Reset()
	req.Trailer.Reset()
	req.Upgrade = false
	req.KeepAlive = false
	if req.body != nil {
		bytebufferpool.Put(req.body)
		req.body = nil
	}
	req.cookies = nil
}
