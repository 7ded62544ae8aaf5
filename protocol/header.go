package protocol

import (
	"strings"
)

// HeaderField 是一个头部字段。
type HeaderField struct {
	Key   string
	Value string
}

// Header 按接收或添加的顺序保存头部字段，名称保持原样，查找时不区分大小写。
type Header struct {
	fields []HeaderField
}

// AddRaw 追加解析器送出的扁平名值列表 [名, 值, 名, 值, ...]。
func (h *Header) AddRaw(kv []string) {
	for i := 0; i+1 < len(kv); i += 2 {
		h.fields = append(h.fields, HeaderField{Key: kv[i], Value: kv[i+1]})
	}
}

// Add 追加一个字段，不影响同名的已有字段。
func (h *Header) Add(key, value string) {
	h.fields = append(h.fields, HeaderField{Key: key, Value: value})
}

// Set 把第一个同名字段的值设为 value 并删除其余同名字段，不存在时追加。
func (h *Header) Set(key, value string) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Key, key) {
			h.fields[i].Value = value
			h.delFrom(key, i+1)
			return
		}
	}
	h.Add(key, value)
}

// Get 返回第一个同名字段的值。
func (h *Header) Get(key string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Has 报告是否存在同名字段。
func (h *Header) Has(key string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Key, key) {
			return true
		}
	}
	return false
}

// Values 返回全部同名字段的值。
func (h *Header) Values(key string) []string {
	var res []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Key, key) {
			res = append(res, f.Value)
		}
	}
	return res
}

// Del 删除全部同名字段。
func (h *Header) Del(key string) {
	h.delFrom(key, 0)
}

func (h *Header) delFrom(key string, start int) {
	n := start
	for i := start; i < len(h.fields); i++ {
		if !strings.EqualFold(h.fields[i].Key, key) {
			h.fields[n] = h.fields[i]
			n++
		}
	}
	clear(h.fields[n:])
	h.fields = h.fields[:n]
}

// Len 返回字段个数。
func (h *Header) Len() int {
	return len(h.fields)
}

// VisitAll 按顺序对每个字段调用 f。
func (h *Header) VisitAll(f func(key, value string)) {
	for _, kv := range h.fields {
		f(kv.Key, kv.Value)
	}
}

// Raw 返回扁平的名值列表。
func (h *Header) Raw() []string {
	res := make([]string, 0, 2*len(h.fields))
	for _, f := range h.fields {
		res = append(res, f.Key, f.Value)
	}
	return res
}

// Reset 清空头部，保留底层数组。
func (h *Header) Reset() {
	clear(h.fields)
	h.fields = h.fields[:0]
}

// AppendBytes 把 "名: 值\r\n" 形式的全部字段追加到 dst。
func (h *Header) AppendBytes(dst []byte) []byte {
	for _, f := range h.fields {
		dst = appendHeaderLine(dst, f.Key, f.Value)
	}
	return dst
}

func appendHeaderLine(dst []byte, key, value string) []byte {
	dst = append(dst, key...)
	dst = append(dst, ':', ' ')
	dst = append(dst, value...)
	return append(dst, '\r', '\n')
}

// headerAppender 把 Add 调用直接写成头部行。
type headerAppender struct {
	dst []byte
}

func (a *headerAppender) Add(key, value string) {
	a.dst = appendHeaderLine(a.dst, key, value)
}
