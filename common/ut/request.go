// Package ut 在内存连接上驱动 HTTP/1.1 服务器，用于处理器与中间件的单元测试。
package ut

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/favbox/hostbind/app"
	"github.com/favbox/hostbind/common/bytebufferpool"
	"github.com/favbox/hostbind/common/mock"
	"github.com/favbox/hostbind/protocol/http1"
)

// Header 表明一个 http 标头的键值对。
type Header struct {
	Key   string
	Value string
}

// Body 用于设置请求正文。Len 为负数时以分块编码发送。
type Body struct {
	Body io.Reader
	Len  int
}

// PerformRequest 把构造好的请求写入内存连接，交由 h 处理后解析连接上写出的响应（无需网络传输）。
//
// 没有 Host 标头时补上 Host: example.com。请求读完后连接按 EOF 结束。
func PerformRequest(h app.HandlerFunc, method, url string, body *Body, headers ...Header) *ResponseRecorder {
	conn := mock.NewConn(buildRequest(method, url, body, headers))
	srv := http1.NewServer(http1.Option{NoDefaultDate: true}, h, nil)
	_ = srv.Serve(context.Background(), conn)
	return NewRecorder(conn.Written(), method == "HEAD")
}

func buildRequest(method, url string, body *Body, headers []Header) string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.WriteString(method + " " + url + " HTTP/1.1\r\n") //nolint:errcheck
	hasHost := false
	for _, h := range headers {
		if strings.EqualFold(h.Key, "Host") {
			hasHost = true
		}
		b.WriteString(h.Key + ": " + h.Value + "\r\n") //nolint:errcheck
	}
	if !hasHost {
		b.WriteString("Host: example.com\r\n") //nolint:errcheck
	}

	var payload []byte
	if body != nil && body.Body != nil {
		payload, _ = io.ReadAll(body.Body)
	}
	switch {
	case body == nil:
		b.WriteString("\r\n") //nolint:errcheck
	case body.Len < 0:
		b.WriteString("Transfer-Encoding: chunked\r\n\r\n") //nolint:errcheck
		if len(payload) > 0 {
			b.WriteString(strconv.FormatInt(int64(len(payload)), 16) + "\r\n") //nolint:errcheck
			b.Write(payload)                                                 //nolint:errcheck
			b.WriteString("\r\n")                                            //nolint:errcheck
		}
		b.WriteString("0\r\n\r\n") //nolint:errcheck
	default:
		b.WriteString("Content-Length: " + strconv.Itoa(body.Len) + "\r\n\r\n") //nolint:errcheck
		b.Write(payload)                                                        //nolint:errcheck
	}
	return b.String()
}
