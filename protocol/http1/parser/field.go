package parser

import (
	"unsafe"

	"github.com/bytedance/gopkg/lang/mcache"
)

// fieldBuffer 累积一个逻辑字段（URL、状态描述、字段名或字段值）的字节。
//
// 未拥有（owned == false）时 b 引用调用方的输入缓冲区，只在本次 Execute 内有效；
// 拥有时 b 来自 mcache，由 reset 归还。
type fieldBuffer struct {
	b     []byte
	owned bool
}

func (f *fieldBuffer) reset() {
	if f.owned {
		mcache.Free(f.b)
	}
	f.b = nil
	f.owned = false
}

func (f *fieldBuffer) update(b []byte) {
	if len(b) == 0 {
		return
	}
	switch {
	case len(f.b) == 0 && !f.owned:
		f.b = b
	case !f.owned && adjacent(f.b, b):
		f.b = f.b[:len(f.b)+len(b)]
	default:
		f.appendOwned(b)
	}
}

// adjacent 报告 b 是否紧接在 a 之后，且位于 a 的底层数组内。
func adjacent(a, b []byte) bool {
	if cap(a)-len(a) < len(b) {
		return false
	}
	end := unsafe.Add(unsafe.Pointer(unsafe.SliceData(a)), len(a))
	return end == unsafe.Pointer(unsafe.SliceData(b))
}

func (f *fieldBuffer) appendOwned(b []byte) {
	n := len(f.b) + len(b)
	if f.owned && n <= cap(f.b) {
		f.b = append(f.b, b...)
		return
	}
	buf := mcache.Malloc(n)
	copy(buf, f.b)
	copy(buf[len(f.b):], b)
	if f.owned {
		mcache.Free(f.b)
	}
	f.b = buf
	f.owned = true
}

// save 把引用的字节拷贝为自有，之后调用方可以复用输入缓冲区。
func (f *fieldBuffer) save() {
	if f.owned || len(f.b) == 0 {
		return
	}
	f.intoOwned()
}

func (f *fieldBuffer) intoOwned() {
	buf := mcache.Malloc(len(f.b))
	copy(buf, f.b)
	f.b = buf
	f.owned = true
}

func (f *fieldBuffer) len() int { return len(f.b) }

func (f *fieldBuffer) String() string {
	if len(f.b) == 0 {
		return ""
	}
	return string(f.b)
}

// TrimmedString 去掉末尾的空格与水平制表符。
func (f *fieldBuffer) TrimmedString() string {
	n := len(f.b)
	for n > 0 && (f.b[n-1] == ' ' || f.b[n-1] == '\t') {
		n--
	}
	return string(f.b[:n])
}
