// Package timer 提供单调时钟与可复用的计时器。
package timer

import (
	"sync"
	"time"
)

var (
	timerPool sync.Pool

	// 进程启动时刻，Nanotime 以它为零点
	epoch = time.Now()
)

// Nanotime 返回进程内单调递增的纳秒时间戳，启动后恒大于 0。
func Nanotime() int64 {
	return int64(time.Since(epoch)) + 1
}

// AcquireTimer 从池中取一个在 timeout 后触发的计时器。
func AcquireTimer(timeout time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(timeout)
	}
	t := v.(*time.Timer)
	if t.Reset(timeout) {
		panic("BUG: 池中取出了仍在运行的计时器")
	}
	return t
}

// ReleaseTimer 将 AcquireTimer 取出的计时器放回池中。放回后勿再使用。
func ReleaseTimer(t *time.Timer) {
	if !t.Stop() {
		// 已触发但无人读取时排空通道
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
