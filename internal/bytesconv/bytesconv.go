// Package bytesconv 提供零分配的字节与字符串转换以及 HTTP 相关的编码工具。
package bytesconv

import (
	"time"
	"unsafe"
)

const upperHex = "0123456789ABCDEF"

// CookieTimeFormat 是 Set-Cookie Expires 属性的时间格式。
const CookieTimeFormat = "Mon, 2 Jan 2006 15:04:05 -0000"

// HTTPTimeFormat 是 Date 等头部使用的 IMF-fixdate 格式。
const HTTPTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// B2s 将字节切片转为字符串，且不分配内存。
//
// 注意：返回值与 b 共享内存，b 被修改后字符串也会改变。
func B2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2b 将字符串转为字节切片，且不分配内存。返回的切片不可修改。
func S2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// AppendUint 向 dst 追加非负整数 n 的十进制表示。
func AppendUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG: int 必须为非负整数")
	}
	var b [20]byte
	i := len(b)
	for n >= 10 {
		i--
		q := n / 10
		b[i] = '0' + byte(n-q*10)
		n = q
	}
	i--
	b[i] = '0' + byte(n)
	return append(dst, b[i:]...)
}

// AppendHTTPDate 向 dst 追加 HTTP 兼容时间并返回。
func AppendHTTPDate(dst []byte, date time.Time) []byte {
	return date.UTC().AppendFormat(dst, HTTPTimeFormat)
}

// AppendCookieDate 向 dst 追加 cookie Expires 格式的时间。
func AppendCookieDate(dst []byte, date time.Time) []byte {
	return date.UTC().AppendFormat(dst, CookieTimeFormat)
}

// AppendURIComponent 按 encodeURIComponent 规则向 dst 追加转义后的 s。
func AppendURIComponent(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedTable[c] {
			dst = append(dst, c)
		} else {
			dst = append(dst, '%', upperHex[c>>4], upperHex[c&0xf])
		}
	}
	return dst
}

// DecodeURIComponent 解码 s 中的 %XX 序列。遇到不完整或非法的序列时原样返回 s。
func DecodeURIComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			if i+2 >= len(s) || HexValueTable[s[i+1]] < 0 || HexValueTable[s[i+2]] < 0 {
				return s
			}
			n++
			i += 2
		}
	}
	if n == 0 {
		return s
	}
	b := make([]byte, 0, len(s)-2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			c = byte(HexValueTable[s[i+1]])<<4 | byte(HexValueTable[s[i+2]])
			i += 2
		}
		b = append(b, c)
	}
	return string(b)
}

// EqualFoldASCII 按 ASCII 忽略大小写比较 b 与小写字符串 lower。
func EqualFoldASCII(b []byte, lower string) bool {
	if len(b) != len(lower) {
		return false
	}
	for i := range b {
		if ToLowerTable[b[i]] != lower[i] {
			return false
		}
	}
	return true
}
