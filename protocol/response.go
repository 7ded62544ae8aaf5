package protocol

import (
	"github.com/favbox/hostbind/internal/bytesconv"
	"github.com/favbox/hostbind/protocol/consts"
	"github.com/favbox/hostbind/protocol/cookie"
)

// Response 是处理器写出的 HTTP 响应，状态码默认 200。
type Response struct {
	Header Header

	statusCode      int
	body            []byte
	connectionClose bool
}

// SetStatusCode 设置状态码。
func (resp *Response) SetStatusCode(statusCode int) {
	resp.statusCode = statusCode
}

// StatusCode 返回状态码。
func (resp *Response) StatusCode() int {
	if resp.statusCode == 0 {
		return consts.StatusOK
	}
	return resp.statusCode
}

// SetBody 设置正文的拷贝。
func (resp *Response) SetBody(body []byte) {
	resp.body = append(resp.body[:0], body...)
}

// SetBodyString 设置正文。
func (resp *Response) SetBodyString(body string) {
	resp.body = append(resp.body[:0], body...)
}

// AppendBody 追加正文。
func (resp *Response) AppendBody(p []byte) {
	resp.body = append(resp.body, p...)
}

// Body 返回正文。
func (resp *Response) Body() []byte {
	return resp.body
}

// SetConnectionClose 要求写出响应后关闭连接。
func (resp *Response) SetConnectionClose() {
	resp.connectionClose = true
}

// ConnectionClose 报告写出响应后是否关闭连接。
func (resp *Response) ConnectionClose() bool {
	return resp.connectionClose
}

// Reset 清空响应以便复用。
func (resp *Response) Reset() {
	resp.Header.Reset()
	resp.statusCode = 0
	resp.body = resp.body[:0]
	resp.connectionClose = false
}

// AppendBytes 把完整的 HTTP/1.1 响应追加到 dst。
//
// jar 中每个被修改或删除的 Cookie 各写成一行 Set-Cookie。
// 用户设置的 Content-Length 与 Connection 会被忽略，由响应自身决定。
// skipBody 为 true 时（如 HEAD 请求）保留 Content-Length 但不写正文。
func (resp *Response) AppendBytes(dst []byte, jar *cookie.Map, skipBody bool) []byte {
	code := resp.StatusCode()
	dst = append(dst, consts.StatusLine(code)...)
	for _, f := range resp.Header.fields {
		if isHopHeader(f.Key) {
			continue
		}
		dst = appendHeaderLine(dst, f.Key, f.Value)
	}
	if jar != nil {
		a := headerAppender{dst: dst}
		jar.WriteHeaders(&a)
		dst = a.dst
	}
	bodyAllowed := consts.BodyAllowed(code)
	if bodyAllowed {
		dst = append(dst, consts.HeaderContentLength...)
		dst = append(dst, ':', ' ')
		dst = bytesconv.AppendUint(dst, len(resp.body))
		dst = append(dst, '\r', '\n')
	}
	if resp.connectionClose {
		dst = appendHeaderLine(dst, consts.HeaderConnection, consts.ValueClose)
	} else {
		dst = appendHeaderLine(dst, consts.HeaderConnection, consts.ValueKeepAlive)
	}
	dst = append(dst, '\r', '\n')
	if bodyAllowed && !skipBody {
		dst = append(dst, resp.body...)
	}
	return dst
}

func isHopHeader(key string) bool {
	return bytesconv.EqualFoldASCII(bytesconv.S2b(key), "content-length") ||
		bytesconv.EqualFoldASCII(bytesconv.S2b(key), "connection") ||
		bytesconv.EqualFoldASCII(bytesconv.S2b(key), "transfer-encoding")
}
