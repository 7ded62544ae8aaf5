//go:build stdjson || !(amd64 && (linux || windows || darwin))

package json

import "encoding/json"

// Name 是当前生效的 JSON 实现。
const Name = "encoding/json"

var (
	// Marshal 使用标准库编码。
	Marshal = json.Marshal
	// Unmarshal 使用标准库解码。
	Unmarshal = json.Unmarshal
	// NewEncoder 返回写入 io.Writer 的标准库编码器。
	NewEncoder = json.NewEncoder
)
