package cookie

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/common/hlog"
	"github.com/favbox/hostbind/common/json"
	"github.com/favbox/hostbind/internal/bytesconv"
	"github.com/favbox/hostbind/internal/nocopy"
)

// Entry 是一对可见的 Cookie 名与值。
type Entry struct {
	Name  string
	Value string
}

// SerializableEntry 是待写出的一项。Cookie 为 nil 表示仅来自请求的原始项。
type SerializableEntry struct {
	Name   string
	Value  string
	Cookie *Cookie
}

// DeleteOptions 指定要删除的 Cookie，Path 为空时取 /。
type DeleteOptions struct {
	Name   string
	Domain string
	Path   string
}

// HeaderAdder 是可追加响应头的对象。
type HeaderAdder interface {
	Add(key, value string)
}

// Map 是一次请求范围内的 Cookie 视图：原始项来自请求或响应头，
// 修改项来自 Set 与 Remove。值为空的修改项是删除标记，它隐藏同名原始项，
// 但仍会被写成一个过期的 Set-Cookie。Map 不是并发安全的。
type Map struct {
	noCopy nocopy.NoCopy

	original []Entry
	origIdx  map[string]int
	modified []*Cookie
	modIdx   map[string]int
}

// New 返回空的 Map。
func New() *Map {
	return &Map{origIdx: make(map[string]int), modIdx: make(map[string]int)}
}

// addOriginal 插入原始项，同名时保留先出现的。
func (m *Map) addOriginal(name, value string) {
	if _, ok := m.origIdx[name]; ok {
		return
	}
	m.origIdx[name] = len(m.original)
	m.original = append(m.original, Entry{Name: name, Value: value})
}

// ParseCookieHeader 解析请求的 Cookie 头部。整个头部含有 % 时才对名称和值做百分号解码。
// 没有 = 或名称为空的段被跳过，重复的名称以第一次出现为准。
func ParseCookieHeader(header string) *Map {
	m := New()
	decode := strings.IndexByte(header, '%') >= 0
	s := cookieScanner{s: header}
	for {
		name, value, ok := s.next()
		if !ok {
			break
		}
		if !s.sawEq || name == "" {
			continue
		}
		if decode {
			name = bytesconv.DecodeURIComponent(name)
			value = bytesconv.DecodeURIComponent(value)
		}
		m.addOriginal(name, value)
	}
	return m
}

func skipInvalid(throwOnInvalid bool, err error) error {
	if throwOnInvalid {
		return err
	}
	hlog.SystemLogger().Debugf("跳过无效的 cookie：%v", err)
	return nil
}

// FromSetCookieHeaders 由响应的 Set-Cookie 头部构造 Map。
func FromSetCookieHeaders(headers []string, throwOnInvalid bool) (*Map, error) {
	m := New()
	for _, h := range headers {
		if !ValidHeaderValue(h) {
			if err := skipInvalid(throwOnInvalid, invalid("头部值", h)); err != nil {
				return nil, err
			}
			continue
		}
		c, err := ParseSetCookie(h)
		if err != nil {
			if err = skipInvalid(throwOnInvalid, err); err != nil {
				return nil, err
			}
			continue
		}
		m.addOriginal(c.Name, c.Value)
	}
	return m, nil
}

// FromMap 由名值映射构造 Map，按名称排序插入。
func FromMap(kv map[string]string, throwOnInvalid bool) (*Map, error) {
	names := make([]string, 0, len(kv))
	for name := range kv {
		names = append(names, name)
	}
	slices.Sort(names)
	pairs := make([][2]string, len(names))
	for i, name := range names {
		pairs[i] = [2]string{name, kv[name]}
	}
	return FromPairs(pairs, throwOnInvalid)
}

// FromPairs 由名值对构造 Map。
func FromPairs(pairs [][2]string, throwOnInvalid bool) (*Map, error) {
	m := New()
	for _, p := range pairs {
		if !ValidName(p[0]) || !ValidHeaderValue(p[1]) {
			err := invalid("名值对", p[0]+"="+p[1])
			if err = skipInvalid(throwOnInvalid, err); err != nil {
				return nil, err
			}
			continue
		}
		m.addOriginal(p[0], p[1])
	}
	return m, nil
}

func (m *Map) modifiedCookie(name string) (*Cookie, bool) {
	i, ok := m.modIdx[name]
	if !ok {
		return nil, false
	}
	return m.modified[i], true
}

// Get 先查修改项再查原始项。被删除的名称视为不存在。
func (m *Map) Get(name string) (string, bool) {
	if c, ok := m.modifiedCookie(name); ok {
		if c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
	if i, ok := m.origIdx[name]; ok {
		return m.original[i].Value, true
	}
	return "", false
}

func (m *Map) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// GetAll 返回可见项：先是非空的修改项，再是未被修改过的原始项。
func (m *Map) GetAll() []Entry {
	res := make([]Entry, 0, m.Size())
	m.Range(func(name, value string) bool {
		res = append(res, Entry{Name: name, Value: value})
		return true
	})
	return res
}

// Range 按 GetAll 的顺序遍历可见项，fn 返回 false 时停止。
func (m *Map) Range(fn func(name, value string) bool) {
	for _, c := range m.modified {
		if c.Value == "" {
			continue
		}
		if !fn(c.Name, c.Value) {
			return
		}
	}
	for _, e := range m.original {
		if _, ok := m.modIdx[e.Name]; ok {
			continue
		}
		if !fn(e.Name, e.Value) {
			return
		}
	}
}

func (m *Map) Size() int {
	n := 0
	for _, c := range m.modified {
		if c.Value != "" {
			n++
		}
	}
	for _, e := range m.original {
		if _, ok := m.modIdx[e.Name]; !ok {
			n++
		}
	}
	return n
}

// Set 以路径 / 与 SameSite=Lax 设置 Cookie。
func (m *Map) Set(name, value string) error {
	return m.SetCookie(NewCookie(name, value))
}

// SetWith 以路径 / 与 SameSite=Strict 设置 Cookie。
func (m *Map) SetWith(name, value string, httpOnly, partitioned bool, maxAge int) error {
	c := NewCookie(name, value)
	c.SameSite = SameSiteStrict
	c.HTTPOnly = httpOnly
	c.Partitioned = partitioned
	c.MaxAge = maxAge
	return m.SetCookie(c)
}

// SetCookie 以 c 的拷贝覆盖同名修改项。
func (m *Map) SetCookie(c *Cookie) error {
	if err := c.Validate(); err != nil {
		return err
	}
	cp := *c
	if i, ok := m.modIdx[c.Name]; ok {
		m.modified[i] = &cp
		return nil
	}
	m.modIdx[c.Name] = len(m.modified)
	m.modified = append(m.modified, &cp)
	return nil
}

// Remove 删除路径为 / 的 Cookie。
func (m *Map) Remove(name string) error {
	return m.RemoveWith(DeleteOptions{Name: name})
}

// RemoveWith 写入一个值为空且已过期的删除标记。
func (m *Map) RemoveWith(opts DeleteOptions) error {
	path := opts.Path
	if path == "" {
		path = "/"
	}
	return m.SetCookie(&Cookie{
		Name:     opts.Name,
		Domain:   opts.Domain,
		Path:     path,
		Expires:  ExpireDelete,
		SameSite: SameSiteLax,
	})
}

// ToSerializableList 返回全部修改项（含删除标记）及未被修改过的原始项。
func (m *Map) ToSerializableList() []SerializableEntry {
	res := make([]SerializableEntry, 0, len(m.modified)+len(m.original))
	for _, c := range m.modified {
		res = append(res, SerializableEntry{Name: c.Name, Value: c.Value, Cookie: c})
	}
	for _, e := range m.original {
		if _, ok := m.modIdx[e.Name]; ok {
			continue
		}
		res = append(res, SerializableEntry{Name: e.Name, Value: e.Value})
	}
	return res
}

// GetAllModifiedItems 返回全部修改项，包括值为空的删除标记。
func (m *Map) GetAllModifiedItems() []*Cookie {
	return slices.Clone(m.modified)
}

// ToSetCookieHeaders 为每个修改项生成一个 Set-Cookie 值。
func (m *Map) ToSetCookieHeaders() []string {
	res := make([]string, len(m.modified))
	for i, c := range m.modified {
		res[i] = c.String()
	}
	return res
}

// WriteHeaders 为每个修改项向 w 追加一个 Set-Cookie 头部。
func (m *Map) WriteHeaders(w HeaderAdder) {
	var buf []byte
	for _, c := range m.modified {
		buf = c.AppendBytes(buf[:0])
		w.Add("Set-Cookie", string(buf))
	}
}

// MarshalJSON 把可见项编码为保持顺序的 JSON 对象。
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	first := true
	m.Range(func(name, value string) bool {
		var k, v []byte
		if k, err = json.Marshal(name); err != nil {
			return false
		}
		if v, err = json.Marshal(value); err != nil {
			return false
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return true
	})
	if err != nil {
		return nil, errs.New(fmt.Errorf("编码 cookie 失败: %w", err), errs.ErrorTypeCookie, nil)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
