package bytesconv

// 字符类别表，在 init 中按 RFC 9110 / RFC 6265 生成。
var (
	// TokenTable 标记 tchar：字段名、方法名、分块扩展名。
	TokenTable [256]bool
	// URLTable 标记请求目标中允许出现的字节。
	URLTable [256]bool
	// FieldValueTable 标记字段值中允许出现的字节（含 SP、HTAB 与 obs-text）。
	FieldValueTable [256]bool
	// CookieNameTable 标记 cookie 名称中允许出现的字节。
	CookieNameTable [256]bool
	// CookieDomainTable 标记 cookie Domain 属性中允许出现的字节。
	CookieDomainTable [256]bool
	// HexValueTable 为十六进制字符给出数值，非十六进制为 -1。
	HexValueTable [256]int8
	// ToLowerTable 把 ASCII 大写映射为小写，其余不变。
	ToLowerTable [256]byte
	// unreservedTable 标记 encodeURIComponent 不转义的字节。
	unreservedTable [256]bool
)

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func init() {
	for i := 0; i < 256; i++ {
		c := byte(i)

		TokenTable[i] = isAlnum(c) || indexByte("!#$%&'*+-.^_`|~", c)
		URLTable[i] = c > 0x20 && c != 0x7f
		FieldValueTable[i] = c == '\t' || c >= 0x20 && c != 0x7f
		CookieNameTable[i] = c >= 0x21 && c <= 0x7e && c != '=' && c != ';'
		CookieDomainTable[i] = isAlnum(c) || c == '.' || c == '-'
		unreservedTable[i] = isAlnum(c) || indexByte("-_.!~*'()", c)

		HexValueTable[i] = -1
		switch {
		case c >= '0' && c <= '9':
			HexValueTable[i] = int8(c - '0')
		case c >= 'a' && c <= 'f':
			HexValueTable[i] = int8(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			HexValueTable[i] = int8(c - 'A' + 10)
		}

		ToLowerTable[i] = c
		if c >= 'A' && c <= 'Z' {
			ToLowerTable[i] = c + 'a' - 'A'
		}
	}
}

func indexByte(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}
