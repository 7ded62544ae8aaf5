package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/protocol/http1/conns"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	begins    int
	flushes   [][]string
	flushURLs []string
	infos     []HeadersInfo
	body      []byte
	completes int
}

func (c *capture) callbacks() Callbacks {
	return Callbacks{
		OnMessageBegin: func() error { c.begins++; return nil },
		OnHeaders: func(headers []string, url string) error {
			c.flushes = append(c.flushes, headers)
			c.flushURLs = append(c.flushURLs, url)
			return nil
		},
		OnHeadersComplete: func(info HeadersInfo) (int, error) {
			c.infos = append(c.infos, info)
			return 0, nil
		},
		OnBody:            func(b []byte) error { c.body = append(c.body, b...); return nil },
		OnMessageComplete: func() error { c.completes++; return nil },
	}
}

func newRequestParser(c *capture) *Parser {
	p := New(c.callbacks())
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	return p
}

func TestExecuteSplitRequest(t *testing.T) {
	in := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	for split := 1; split < len(in); split++ {
		var c capture
		p := newRequestParser(&c)
		// 每次都使用新的缓冲区并在解析后改写，确认字段已经保存
		first := []byte(in[:split])
		n, err := p.Execute(first)
		require.NoError(t, err)
		assert.Equal(t, split, n)
		for i := range first {
			first[i] = '#'
		}
		n, err = p.Execute([]byte(in[split:]))
		require.NoError(t, err)
		assert.Equal(t, len(in)-split, n)

		require.Len(t, c.infos, 1, "split at %d", split)
		info := c.infos[0]
		assert.Equal(t, 1, info.VersionMajor)
		assert.Equal(t, 1, info.VersionMinor)
		assert.Equal(t, llhttp.MethodGet, info.Method)
		assert.True(t, info.HasURL)
		assert.Equal(t, "/", info.URL)
		assert.True(t, info.HasHeaders)
		assert.Equal(t, []string{"Host", "x"}, info.Headers)
		assert.False(t, info.Upgrade)
		assert.True(t, info.ShouldKeepAlive)
		assert.Equal(t, 1, c.completes)
	}
}

func TestHeaderValueTrimmed(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	_, err := p.Execute([]byte("GET / HTTP/1.1\r\nX-A:   padded \t \r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"X-A", "padded"}, c.infos[0].Headers)
}

func manyHeaders(n int) string {
	var b strings.Builder
	b.WriteString("GET /many HTTP/1.1\r\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "X-H%d: v%d\r\n", i, i)
	}
	b.WriteString("\r\n")
	return b.String()
}

func TestHeaderCapacityFlush(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	_, err := p.Execute([]byte(manyHeaders(40)))
	require.NoError(t, err)

	require.Len(t, c.flushes, 2)
	assert.Len(t, c.flushes[0], 64)
	assert.Equal(t, "X-H0", c.flushes[0][0])
	assert.Equal(t, "v31", c.flushes[0][63])
	assert.Equal(t, "/many", c.flushURLs[0])
	assert.Len(t, c.flushes[1], 16)
	assert.Equal(t, "X-H32", c.flushes[1][0])
	assert.Equal(t, "", c.flushURLs[1])

	info := c.infos[0]
	assert.False(t, info.HasHeaders)
	assert.False(t, info.HasURL)
	assert.Nil(t, info.Headers)
	assert.Equal(t, llhttp.MethodGet, info.Method)
}

func TestHeaderCapacityExact(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	_, err := p.Execute([]byte(manyHeaders(32)))
	require.NoError(t, err)
	assert.Empty(t, c.flushes)
	assert.True(t, c.infos[0].HasHeaders)
	assert.Len(t, c.infos[0].Headers, 64)
}

func TestFlushStateResetPerMessage(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	_, err := p.Execute([]byte(manyHeaders(33) + "GET /next HTTP/1.1\r\nHost: y\r\n\r\n"))
	require.NoError(t, err)
	require.Len(t, c.infos, 2)
	assert.False(t, c.infos[0].HasHeaders)
	assert.True(t, c.infos[1].HasHeaders)
	assert.Equal(t, "/next", c.infos[1].URL)
	assert.Equal(t, []string{"Host", "y"}, c.infos[1].Headers)
}

func TestHeaderSizeLimit(t *testing.T) {
	// 计入上限的是 URL、字段名与字段值：/ + Host + x = 6 字节
	in := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"

	var c capture
	p := New(c.callbacks())
	p.Initialize(llhttp.TypeRequest, 6, 0, nil)
	_, err := p.Execute([]byte(in))
	require.Error(t, err)
	pe, ok := AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_HEADER_OVERFLOW", pe.Code)
	assert.Equal(t, "Header overflow", pe.Reason)
	assert.Equal(t, strings.Index(in, "x\r\n")+1, pe.BytesParsed)
	assert.Equal(t, errs.ErrorTypeLimit, errs.TypeOf(err))

	c = capture{}
	p = New(c.callbacks())
	p.Initialize(llhttp.TypeRequest, 7, 0, nil)
	_, err = p.Execute([]byte(in))
	require.NoError(t, err)
	assert.Len(t, c.infos, 1)
}

func TestBodyCopied(t *testing.T) {
	var chunks [][]byte
	p := New(Callbacks{OnBody: func(b []byte) error {
		chunks = append(chunks, b)
		return nil
	}})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	in := []byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n2\r\nde\r\n0\r\n\r\n")
	_, err := p.Execute(in)
	require.NoError(t, err)
	for i := range in {
		in[i] = 0
	}
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("de")}, chunks)
}

func TestTrailersFlushedAtMessageComplete(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	in := "POST /t HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n1\r\na\r\n0\r\nX-Sum: 1 \r\n\r\n"
	_, err := p.Execute([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"X-Sum", "1"}}, c.flushes)
	assert.Equal(t, "a", string(c.body))
	assert.Equal(t, 1, c.completes)
}

func TestChunkExtensionsOverflow(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	head := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"
	ext := "1;" + strings.Repeat("a", maxChunkExtensionsSize+1) + "\r\nx\r\n"
	_, err := p.Execute([]byte(head + ext))
	pe, ok := AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_CHUNK_EXTENSIONS_OVERFLOW", pe.Code)
	assert.Equal(t, "Chunk extensions overflow", pe.Reason)

	// 每个分块单独计数
	c = capture{}
	p = newRequestParser(&c)
	small := "1;" + strings.Repeat("a", maxChunkExtensionsSize-10) + "\r\nx\r\n"
	_, err = p.Execute([]byte(head + small + small + "0\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "xx", string(c.body))
}

func TestResponseStatus(t *testing.T) {
	var c capture
	p := New(c.callbacks())
	p.Initialize(llhttp.TypeResponse, 0, 0, nil)
	_, err := p.Execute([]byte("HTTP/1.1 200 OK  \r\nContent-Length: 2\r\n\r\nhi"))
	require.NoError(t, err)
	info := c.infos[0]
	assert.Equal(t, 200, info.StatusCode)
	assert.Equal(t, "OK", info.StatusMessage)
	assert.False(t, info.HasURL)
	assert.Equal(t, llhttp.TypeResponse, info.Type)
	assert.Equal(t, "hi", string(c.body))
}

func TestProtocolErrorShape(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	in := []byte("GET / HTTP/1.1\r\nBad Header: 1\r\n\r\n")
	n, err := p.Execute(in)
	require.Error(t, err)
	pe, ok := AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_INVALID_HEADER_TOKEN", pe.Code)
	assert.Equal(t, llhttp.ErrInvalidHeaderToken, pe.Errno)
	assert.Equal(t, 19, pe.BytesParsed)
	assert.Equal(t, n, pe.BytesParsed)
	assert.Equal(t, errs.ErrorTypeProtocol, errs.TypeOf(err))
	assert.Equal(t, "Parse Error: Invalid header field char", err.Error())
}

func TestCallbackErrors(t *testing.T) {
	boom := errors.New("boom")

	p := New(Callbacks{OnBody: func([]byte) error { return boom }})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	_, err := p.Execute([]byte("POST / HTTP/1.1\r\nContent-Length: 1\r\n\r\nz"))
	pe, ok := AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_JS_EXCEPTION", pe.Code)
	assert.Equal(t, "JS Exception", pe.Reason)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errs.ErrorTypeCallback, errs.TypeOf(err))

	p = New(Callbacks{OnHeadersComplete: func(HeadersInfo) (int, error) { return 0, boom }})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	_, err = p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	pe, ok = AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_CB_HEADERS_COMPLETE", pe.Code)
	assert.ErrorIs(t, err, boom)

	p = New(Callbacks{OnMessageComplete: func() error { return boom }})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	_, err = p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	pe, ok = AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_CB_MESSAGE_COMPLETE", pe.Code)
}

func TestSkipBody(t *testing.T) {
	var completes int
	p := New(Callbacks{
		OnHeadersComplete: func(HeadersInfo) (int, error) { return 1, nil },
		OnMessageComplete: func() error { completes++; return nil },
	})
	p.Initialize(llhttp.TypeResponse, 0, 0, nil)
	_, err := p.Execute([]byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, completes)
}

func TestUpgradeStopsEarly(t *testing.T) {
	var c capture
	p := newRequestParser(&c)
	head := "GET /chat HTTP/1.1\r\nConnection: upgrade\r\nUpgrade: websocket\r\n\r\n"
	n, err := p.Execute([]byte(head + "frame"))
	require.NoError(t, err)
	assert.Equal(t, len(head), n)
	assert.True(t, c.infos[0].Upgrade)
	assert.True(t, p.Upgraded())
}

func TestPauseInsideCallbackIsDeferred(t *testing.T) {
	var p *Parser
	var bodies int
	p = New(Callbacks{
		OnHeadersComplete: func(HeadersInfo) (int, error) {
			p.Pause()
			return 0, nil
		},
		OnBody: func([]byte) error { bodies++; return nil },
	})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	in := []byte("POST / HTTP/1.1\r\nContent-Length: 2\r\n\r\nok")
	n, err := p.Execute(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, 1, bodies)

	_, err = p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	pe, ok := AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "HPE_PAUSED", pe.Code)

	p.Resume()
	_, err = p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	assert.NoError(t, err)
}

func TestResumeInsideCallbackCancelsPause(t *testing.T) {
	var p *Parser
	p = New(Callbacks{OnMessageBegin: func() error {
		p.Pause()
		p.Resume()
		return nil
	}})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	_, err := p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	_, err = p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	assert.NoError(t, err)
}

func TestCurrentBuffer(t *testing.T) {
	var p *Parser
	var seen []byte
	p = New(Callbacks{OnMessageBegin: func() error {
		seen = p.CurrentBuffer()
		return nil
	}})
	p.Initialize(llhttp.TypeRequest, 0, 0, nil)
	in := []byte("GET / HTTP/1.1\r\n\r\n")
	_, err := p.Execute(in)
	require.NoError(t, err)
	assert.Equal(t, in, seen)
	in[0] = 'X'
	assert.Equal(t, byte('G'), seen[0])
	assert.Nil(t, p.CurrentBuffer())
}

func TestFinish(t *testing.T) {
	var c capture
	p := New(c.callbacks())
	p.Initialize(llhttp.TypeResponse, 0, 0, nil)
	_, err := p.Execute([]byte("HTTP/1.1 200 OK\r\n\r\nstream"))
	require.NoError(t, err)
	assert.Zero(t, c.completes)
	require.NoError(t, p.Finish())
	assert.Equal(t, 1, c.completes)
	assert.Equal(t, "stream", string(c.body))

	p = newRequestParser(&c)
	_, err = p.Execute([]byte("GET / HT"))
	require.NoError(t, err)
	pe, ok := AsParseError(p.Finish())
	require.True(t, ok)
	assert.Equal(t, "HPE_INVALID_EOF_STATE", pe.Code)
}

func useClock(t *testing.T, now *int64) {
	old := nanotime
	nanotime = func() int64 { return *now }
	t.Cleanup(func() { nanotime = old })
}

func TestRegistryLifecycle(t *testing.T) {
	now := int64(1000)
	useClock(t, &now)

	l := conns.New[*Parser]()
	p := New(Callbacks{})
	p.Initialize(llhttp.TypeRequest, 0, 0, l)
	assert.Equal(t, int64(1000), p.LastMessageStart())
	assert.True(t, l.Has(p))
	assert.True(t, l.IsActive(p))

	now = 2000
	_, err := p.Execute([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), p.LastMessageStart())
	assert.False(t, p.HeadersCompleted())
	assert.Equal(t, time.Duration(0), p.Duration())
	now = 2500
	assert.Equal(t, 500*time.Nanosecond, p.Duration())

	_, err = p.Execute([]byte("\r\n"))
	require.NoError(t, err)
	assert.True(t, p.HeadersCompleted())
	assert.Zero(t, p.LastMessageStart())
	assert.Zero(t, p.Duration())
	assert.True(t, l.Has(p))
	assert.False(t, l.IsActive(p))
	assert.Equal(t, []*Parser{p}, l.Idle())

	p.Remove()
	assert.Zero(t, l.Len())
	assert.Zero(t, l.ActiveLen())
}

func TestRegistryExpiry(t *testing.T) {
	now := int64(1000)
	useClock(t, &now)

	l := conns.New[*Parser]()
	slow := New(Callbacks{})
	slow.Initialize(llhttp.TypeRequest, 0, 0, l)
	_, err := slow.Execute([]byte("GET / HTTP/1.1\r\nHost"))
	require.NoError(t, err)

	start := slow.LastMessageStart()
	assert.Equal(t, []*Parser{slow}, l.Expired(start+1, 0))
	assert.Empty(t, l.Active())
	assert.Equal(t, []*Parser{slow}, l.All())
}

func TestOwner(t *testing.T) {
	p := New(Callbacks{})
	assert.Nil(t, p.Owner())
	p.SetOwner("conn-1")
	assert.Equal(t, "conn-1", p.Owner())
}
