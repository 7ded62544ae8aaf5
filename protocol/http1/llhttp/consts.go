package llhttp

import "strconv"

// Type 是解析器的报文类型。
type Type uint8

const (
	TypeBoth Type = iota
	TypeRequest
	TypeResponse
)

func (t Type) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	}
	return "both"
}

// Errno 是解析器的错误码，取值与 llhttp 保持一致。
type Errno int

const (
	OK                      Errno = 0
	ErrInternal             Errno = 1
	ErrStrict               Errno = 2
	ErrLFExpected           Errno = 3
	ErrUnexpectedContentLen Errno = 4
	ErrClosedConnection     Errno = 5
	ErrInvalidMethod        Errno = 6
	ErrInvalidURL           Errno = 7
	ErrInvalidConstant      Errno = 8
	ErrInvalidVersion       Errno = 9
	ErrInvalidHeaderToken   Errno = 10
	ErrInvalidContentLength Errno = 11
	ErrInvalidChunkSize     Errno = 12
	ErrInvalidStatus        Errno = 13
	ErrInvalidEOFState      Errno = 14
	ErrInvalidTransferEnc   Errno = 15
	ErrCBMessageBegin       Errno = 16
	ErrCBHeadersComplete    Errno = 17
	ErrCBMessageComplete    Errno = 18
	ErrCBChunkHeader        Errno = 19
	ErrCBChunkComplete      Errno = 20
	Paused                  Errno = 21
	PausedUpgrade           Errno = 22
	PausedH2Upgrade         Errno = 23
	ErrUser                 Errno = 24
	ErrCRExpected           Errno = 25
	ErrUnexpectedSpace      Errno = 30
)

var errnoNames = map[Errno]string{
	OK:                      "HPE_OK",
	ErrInternal:             "HPE_INTERNAL",
	ErrStrict:               "HPE_STRICT",
	ErrLFExpected:           "HPE_LF_EXPECTED",
	ErrUnexpectedContentLen: "HPE_UNEXPECTED_CONTENT_LENGTH",
	ErrClosedConnection:     "HPE_CLOSED_CONNECTION",
	ErrInvalidMethod:        "HPE_INVALID_METHOD",
	ErrInvalidURL:           "HPE_INVALID_URL",
	ErrInvalidConstant:      "HPE_INVALID_CONSTANT",
	ErrInvalidVersion:       "HPE_INVALID_VERSION",
	ErrInvalidHeaderToken:   "HPE_INVALID_HEADER_TOKEN",
	ErrInvalidContentLength: "HPE_INVALID_CONTENT_LENGTH",
	ErrInvalidChunkSize:     "HPE_INVALID_CHUNK_SIZE",
	ErrInvalidStatus:        "HPE_INVALID_STATUS",
	ErrInvalidEOFState:      "HPE_INVALID_EOF_STATE",
	ErrInvalidTransferEnc:   "HPE_INVALID_TRANSFER_ENCODING",
	ErrCBMessageBegin:       "HPE_CB_MESSAGE_BEGIN",
	ErrCBHeadersComplete:    "HPE_CB_HEADERS_COMPLETE",
	ErrCBMessageComplete:    "HPE_CB_MESSAGE_COMPLETE",
	ErrCBChunkHeader:        "HPE_CB_CHUNK_HEADER",
	ErrCBChunkComplete:      "HPE_CB_CHUNK_COMPLETE",
	Paused:                  "HPE_PAUSED",
	PausedUpgrade:           "HPE_PAUSED_UPGRADE",
	PausedH2Upgrade:         "HPE_PAUSED_H2_UPGRADE",
	ErrUser:                 "HPE_USER",
	ErrCRExpected:           "HPE_CR_EXPECTED",
	ErrUnexpectedSpace:      "HPE_UNEXPECTED_SPACE",
}

// String 返回错误码的规范名称，如 HPE_INVALID_METHOD。
func (e Errno) String() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return "HPE_UNKNOWN_" + strconv.Itoa(int(e))
}

// Lenient 是宽松解析开关的位图。
type Lenient uint32

const (
	LenientHeaders                Lenient = 1 << iota // 头部字段值中允许控制字符与折行
	LenientChunkedLength                              // 允许 Content-Length 与 Transfer-Encoding 同时出现
	LenientKeepAlive                                  // 忽略 Connection: close
	LenientTransferEncoding                           // 请求中非 chunked 结尾的 Transfer-Encoding 按读到 EOF 处理
	LenientVersion                                    // 不校验 HTTP 版本号
	LenientDataAfterClose                             // 允许 Connection: close 之后继续收到数据
	LenientOptionalLFAfterCR                          // CR 后可以不跟 LF
	LenientOptionalCRLFAfterChunk                     // 分块数据后可以不跟 CRLF
	LenientOptionalCRBeforeLF                         // LF 前可以不跟 CR
	LenientSpacesAfterChunkSize                       // 分块大小后允许空白
)

// Flags 是单条报文解析期间记录的头部特征。
type Flags uint16

const (
	FlagConnectionKeepAlive Flags = 1 << 0
	FlagConnectionClose     Flags = 1 << 1
	FlagConnectionUpgrade   Flags = 1 << 2
	FlagChunked             Flags = 1 << 3
	FlagUpgrade             Flags = 1 << 4
	FlagContentLength       Flags = 1 << 5
	FlagSkipBody            Flags = 1 << 6
	FlagTrailing            Flags = 1 << 7
	FlagTransferEncoding    Flags = 1 << 9
)

// Method 是请求方法，编号与 llhttp 一致。
type Method uint8

const (
	MethodDelete      Method = 0
	MethodGet         Method = 1
	MethodHead        Method = 2
	MethodPost        Method = 3
	MethodPut         Method = 4
	MethodConnect     Method = 5
	MethodOptions     Method = 6
	MethodTrace       Method = 7
	MethodCopy        Method = 8
	MethodLock        Method = 9
	MethodMkcol       Method = 10
	MethodMove        Method = 11
	MethodPropfind    Method = 12
	MethodProppatch   Method = 13
	MethodSearch      Method = 14
	MethodUnlock      Method = 15
	MethodBind        Method = 16
	MethodRebind      Method = 17
	MethodUnbind      Method = 18
	MethodACL         Method = 19
	MethodReport      Method = 20
	MethodMkactivity  Method = 21
	MethodCheckout    Method = 22
	MethodMerge       Method = 23
	MethodMSearch     Method = 24
	MethodNotify      Method = 25
	MethodSubscribe   Method = 26
	MethodUnsubscribe Method = 27
	MethodPatch       Method = 28
	MethodPurge       Method = 29
	MethodMkcalendar  Method = 30
	MethodLink        Method = 31
	MethodUnlink      Method = 32
	MethodSource      Method = 33
	MethodPRI         Method = 34
	MethodQuery       Method = 46
)

var methodNames = map[Method]string{
	MethodDelete:      "DELETE",
	MethodGet:         "GET",
	MethodHead:        "HEAD",
	MethodPost:        "POST",
	MethodPut:         "PUT",
	MethodConnect:     "CONNECT",
	MethodOptions:     "OPTIONS",
	MethodTrace:       "TRACE",
	MethodCopy:        "COPY",
	MethodLock:        "LOCK",
	MethodMkcol:       "MKCOL",
	MethodMove:        "MOVE",
	MethodPropfind:    "PROPFIND",
	MethodProppatch:   "PROPPATCH",
	MethodSearch:      "SEARCH",
	MethodUnlock:      "UNLOCK",
	MethodBind:        "BIND",
	MethodRebind:      "REBIND",
	MethodUnbind:      "UNBIND",
	MethodACL:         "ACL",
	MethodReport:      "REPORT",
	MethodMkactivity:  "MKACTIVITY",
	MethodCheckout:    "CHECKOUT",
	MethodMerge:       "MERGE",
	MethodMSearch:     "M-SEARCH",
	MethodNotify:      "NOTIFY",
	MethodSubscribe:   "SUBSCRIBE",
	MethodUnsubscribe: "UNSUBSCRIBE",
	MethodPatch:       "PATCH",
	MethodPurge:       "PURGE",
	MethodMkcalendar:  "MKCALENDAR",
	MethodLink:        "LINK",
	MethodUnlink:      "UNLINK",
	MethodSource:      "SOURCE",
	MethodPRI:         "PRI",
	MethodQuery:       "QUERY",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for k, v := range methodNames {
		m[v] = k
	}
	return m
}()

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "<unknown>"
}

// LookupMethod 按名称查找请求方法，名称区分大小写。
func LookupMethod(name string) (Method, bool) {
	m, ok := methodsByName[name]
	return m, ok
}

// Methods 按编号顺序返回 HTTP 请求方法名，不含 PRI。
func Methods() []string {
	names := make([]string, 0, len(methodNames))
	for i := 0; i < 256; i++ {
		m := Method(i)
		if s, ok := methodNames[m]; ok && m != MethodPRI {
			names = append(names, s)
		}
	}
	return names
}

// 结束输入时解析器所处的安全级别。
type finishState uint8

const (
	finishSafe finishState = iota
	finishSafeWithCB
	finishUnsafe
)
