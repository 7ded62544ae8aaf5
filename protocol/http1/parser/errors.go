package parser

import (
	"strings"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
)

// ParseError 描述一次失败的 Execute。
type ParseError struct {
	// Code 是 HPE_* 形式的错误名
	Code        string
	Reason      string
	BytesParsed int
	Errno       llhttp.Errno
	// Cause 是回调返回的原始错误
	Cause error
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return "Parse Error: " + e.Code
	}
	return "Parse Error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (p *Parser) parseError(e llhttp.Errno, nread int) error {
	pe := &ParseError{
		Code:        e.String(),
		Reason:      p.tok.Reason(),
		BytesParsed: nread,
		Errno:       e,
		Cause:       p.cbErr,
	}
	if e == llhttp.ErrUser {
		if code, reason, ok := strings.Cut(pe.Reason, ":"); ok {
			pe.Code, pe.Reason = code, reason
		}
	}
	return errs.New(pe, errorType(pe), nil)
}

func errorType(pe *ParseError) errs.ErrorType {
	switch {
	case pe.Code == "HPE_HEADER_OVERFLOW" || pe.Code == "HPE_CHUNK_EXTENSIONS_OVERFLOW":
		return errs.ErrorTypeLimit
	case pe.Cause != nil || pe.Code == "HPE_JS_EXCEPTION" || strings.HasPrefix(pe.Code, "HPE_CB_"):
		return errs.ErrorTypeCallback
	}
	return errs.ErrorTypeProtocol
}

// AsParseError 从 err 链中取出 *ParseError。
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	ok := errs.As(err, &pe)
	return pe, ok
}
