package bytebufferpool

import "sync"

const (
	defaultSize = 512
	// 超过该容量的缓冲区不回收
	maxPooledSize = 1 << 20
)

var pool = sync.Pool{
	New: func() any {
		return &ByteBuffer{B: make([]byte, 0, defaultSize)}
	},
}

// Get 从池中取出一个空的 ByteBuffer。
func Get() *ByteBuffer {
	return pool.Get().(*ByteBuffer)
}

// Put 归还 b。归还后 b 不可再用。
func Put(b *ByteBuffer) {
	if cap(b.B) > maxPooledSize {
		return
	}
	b.Reset()
	pool.Put(b)
}
