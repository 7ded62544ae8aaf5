//go:build (linux || windows || darwin) && amd64 && !stdjson

package json

import "github.com/bytedance/sonic"

// Name 是当前生效的 JSON 实现。
const Name = "sonic"

var api = sonic.ConfigStd

var (
	// Marshal 使用 sonic 编码。
	Marshal = api.Marshal
	// Unmarshal 使用 sonic 解码。
	Unmarshal = api.Unmarshal
	// NewEncoder 返回写入 io.Writer 的 sonic 编码器。
	NewEncoder = api.NewEncoder
)
