// Package bytebufferpool 提供可复用的字节缓冲区，用于请求正文与响应序列化。
package bytebufferpool

// ByteBuffer 是可追加的字节缓冲区，使用 Get 获取，用完以 Put 归还。
type ByteBuffer struct {
	// B 是字节缓冲区。
	B []byte
}

// Write 向 B 追加 p，总是返回 len(p), nil。
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.B = append(b.B, p...)
	return len(p), nil
}

// WriteString 向 B 追加 s。
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.B = append(b.B, s...)
	return len(s), nil
}

// Set 将 B 设为 p 的拷贝。
func (b *ByteBuffer) Set(p []byte) {
	b.B = append(b.B[:0], p...)
}

// Reset 清空 B，保留容量。
func (b *ByteBuffer) Reset() {
	b.B = b.B[:0]
}

// Len 返回已写入的字节数。
func (b *ByteBuffer) Len() int {
	return len(b.B)
}

func (b *ByteBuffer) String() string {
	return string(b.B)
}
