// Package cookie 实现 Cookie 记录与请求级的 Cookie 视图。
package cookie

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/internal/bytesconv"
)

// SameSite 是 Cookie 的 SameSite 属性，零值为 Lax。
type SameSite uint8

const (
	SameSiteLax SameSite = iota
	SameSiteStrict
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteNone:
		return "None"
	}
	return "Lax"
}

// ParseSameSite 不区分大小写地解析 SameSite 值。
func ParseSameSite(v string) (SameSite, bool) {
	switch strings.ToLower(v) {
	case "lax":
		return SameSiteLax, true
	case "strict":
		return SameSiteStrict, true
	case "none":
		return SameSiteNone, true
	}
	return SameSiteLax, false
}

// ExpireDelete 是删除标记使用的过期时间。
var ExpireDelete = time.UnixMilli(1)

// Cookie 是一条完整的 Set-Cookie 记录。
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
	// Expires 为零值时不输出
	Expires time.Time
	// MaxAge 为 0 时不输出，为负时输出 Max-Age=0
	MaxAge      int
	Secure      bool
	HTTPOnly    bool
	Partitioned bool
	SameSite    SameSite
}

// NewCookie 返回路径为 / 且 SameSite=Lax 的 Cookie。
func NewCookie(name, value string) *Cookie {
	return &Cookie{Name: name, Value: value, Path: "/", SameSite: SameSiteLax}
}

func invalid(what, v string) error {
	return errs.New(fmt.Errorf("%w: %s 含有非法字符 %q", errs.ErrInvalidCookieString, what, v), errs.ErrorTypeCookie, nil)
}

// Validate 校验名称、域名与路径。
func (c *Cookie) Validate() error {
	if c.Name == "" {
		return errs.New(fmt.Errorf("%w: 名称不能为空", errs.ErrInvalidCookieString), errs.ErrorTypeCookie, nil)
	}
	if !ValidName(c.Name) {
		return invalid("名称", c.Name)
	}
	for i := 0; i < len(c.Domain); i++ {
		if !bytesconv.CookieDomainTable[c.Domain[i]] {
			return invalid("域名", c.Domain)
		}
	}
	for i := 0; i < len(c.Path); i++ {
		if b := c.Path[i]; b < 0x20 || b == 0x7f || b == ';' {
			return invalid("路径", c.Path)
		}
	}
	return nil
}

// ValidName 报告 name 能否作为 Cookie 名称。
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !bytesconv.CookieNameTable[name[i]] {
			return false
		}
	}
	return true
}

// ValidHeaderValue 报告 v 能否出现在头部值中：除水平制表符外不含控制字符。
func ValidHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		if !bytesconv.FieldValueTable[v[i]] {
			return false
		}
	}
	return true
}

// AppendBytes 把 Set-Cookie 形式追加到 dst。
func (c *Cookie) AppendBytes(dst []byte) []byte {
	dst = append(dst, c.Name...)
	dst = append(dst, '=')
	dst = bytesconv.AppendURIComponent(dst, c.Value)

	if c.Domain != "" {
		dst = appendCookiePart(dst, "Domain", c.Domain)
	}
	if c.Path != "" {
		dst = appendCookiePart(dst, "Path", c.Path)
	}
	if !c.Expires.IsZero() {
		dst = append(dst, "; Expires="...)
		dst = bytesconv.AppendCookieDate(dst, c.Expires)
	}
	if c.MaxAge != 0 {
		dst = append(dst, "; Max-Age="...)
		dst = bytesconv.AppendUint(dst, max(c.MaxAge, 0))
	}
	if c.Secure {
		dst = append(dst, "; Secure"...)
	}
	if c.HTTPOnly {
		dst = append(dst, "; HttpOnly"...)
	}
	if c.Partitioned {
		dst = append(dst, "; Partitioned"...)
	}
	return appendCookiePart(dst, "SameSite", c.SameSite.String())
}

func (c *Cookie) String() string {
	return string(c.AppendBytes(nil))
}

func appendCookiePart(dst []byte, key, value string) []byte {
	dst = append(dst, ';', ' ')
	dst = append(dst, key...)
	dst = append(dst, '=')
	return append(dst, value...)
}

// ParseSetCookie 解析一个 Set-Cookie 头部值。
//
// 首段为 name=value，值会做百分号解码；之后的属性名不区分大小写，
// 未识别的属性被忽略。没有 Path 属性时路径为 /。
func ParseSetCookie(src string) (*Cookie, error) {
	s := cookieScanner{s: src}
	name, value, ok := s.next()
	if !ok || !s.sawEq {
		return nil, errs.New(fmt.Errorf("%w: 缺少 name=value", errs.ErrInvalidCookieString), errs.ErrorTypeCookie, nil)
	}
	c := NewCookie(name, bytesconv.DecodeURIComponent(value))

	for {
		k, v, ok := s.next()
		if !ok {
			break
		}
		if !s.sawEq {
			// 无值属性
			switch strings.ToLower(k) {
			case "secure":
				c.Secure = true
			case "httponly":
				c.HTTPOnly = true
			case "partitioned":
				c.Partitioned = true
			}
			continue
		}
		switch strings.ToLower(k) {
		case "domain":
			c.Domain = v
		case "path":
			c.Path = v
		case "expires":
			if t, err := parseCookieDate(v); err == nil {
				c.Expires = t
			}
		case "max-age":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errs.New(fmt.Errorf("%w: Max-Age %q", errs.ErrInvalidCookieString, v), errs.ErrorTypeCookie, nil)
			}
			c.MaxAge = n
			if n == 0 {
				c.MaxAge = -1
			}
		case "samesite":
			if ss, ok := ParseSameSite(v); ok {
				c.SameSite = ss
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var cookieDateLayouts = []string{
	bytesconv.CookieTimeFormat,
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	time.RFC850,
	time.ANSIC,
}

func parseCookieDate(v string) (time.Time, error) {
	var err error
	for _, layout := range cookieDateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// cookieScanner 按 ; 切分，并去掉名称与值两侧的空白。
type cookieScanner struct {
	s string
	// sawEq 报告最近一段是否含有 =
	sawEq bool
}

func (s *cookieScanner) next() (key, value string, ok bool) {
	for len(s.s) > 0 {
		seg := s.s
		if i := strings.IndexByte(seg, ';'); i >= 0 {
			seg, s.s = seg[:i], seg[i+1:]
		} else {
			s.s = ""
		}
		if strings.TrimSpace(seg) == "" {
			continue
		}
		key, value, s.sawEq = strings.Cut(seg, "=")
		return trimOWS(key), trimOWS(value), true
	}
	return "", "", false
}

func trimOWS(s string) string {
	return strings.Trim(s, " \t")
}
