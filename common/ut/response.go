package ut

import (
	"github.com/favbox/hostbind/protocol"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
	"github.com/favbox/hostbind/protocol/http1/parser"
)

// ResponseRecorder 记录连接上写出的第一条响应。
type ResponseRecorder struct {
	Code          int
	StatusMessage string
	Header        protocol.Header
	// Trailer 是分块正文之后的尾部字段
	Trailer protocol.Header
	Body    []byte
	// Raw 是连接上写出的全部字节
	Raw string
	// Err 是解析 Raw 时遇到的错误
	Err error
}

// NewRecorder 解析 raw 中的第一条响应。head 为 true 时按 HEAD 请求的响应处理，不读取正文。
func NewRecorder(raw string, head bool) *ResponseRecorder {
	r := &ResponseRecorder{Raw: raw}
	done := false
	headersDone := false

	p := parser.New(parser.Callbacks{
		OnHeaders: func(headers []string, _ string) error {
			if done {
				return nil
			}
			if headersDone {
				r.Trailer.AddRaw(headers)
			} else {
				r.Header.AddRaw(headers)
			}
			return nil
		},
		OnHeadersComplete: func(info parser.HeadersInfo) (int, error) {
			if done {
				return 1, nil
			}
			headersDone = true
			r.Code, r.StatusMessage = info.StatusCode, info.StatusMessage
			if info.HasHeaders {
				r.Header.AddRaw(info.Headers)
			}
			if head {
				return 1, nil
			}
			return 0, nil
		},
		OnBody: func(b []byte) error {
			if !done {
				r.Body = append(r.Body, b...)
			}
			return nil
		},
		OnMessageComplete: func() error {
			done = true
			return nil
		},
	})
	p.Initialize(llhttp.TypeResponse, 0, 0, nil)
	defer p.Free()

	if _, err := p.Execute([]byte(raw)); err != nil && !done {
		r.Err = err
		return r
	}
	if !done {
		r.Err = p.Finish()
	}
	return r
}

// Result 把记录转换为 protocol.Response。
func (r *ResponseRecorder) Result() *protocol.Response {
	resp := &protocol.Response{}
	resp.SetStatusCode(r.Code)
	r.Header.VisitAll(func(key, value string) {
		resp.Header.Add(key, value)
	})
	resp.SetBody(r.Body)
	return resp
}
