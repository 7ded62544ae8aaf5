package consts

// 头部名称。
const (
	HeaderConnection       = "Connection"
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderCookie           = "Cookie"
	HeaderDate             = "Date"
	HeaderServer           = "Server"
	HeaderSetCookie        = "Set-Cookie"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderUpgrade          = "Upgrade"
)

// 头部值。
const (
	ValueClose     = "close"
	ValueKeepAlive = "keep-alive"

	MIMETextPlainUTF8       = "text/plain; charset=utf-8"
	MIMEApplicationJSONUTF8 = "application/json; charset=utf-8"
)

// DefaultServerName 是响应默认携带的 Server 头部值。
const DefaultServerName = "hostbind"
