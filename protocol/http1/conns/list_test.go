package conns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeEntry struct {
	name      string
	start     int64
	completed bool
}

func (e *fakeEntry) LastMessageStart() int64 { return e.start }
func (e *fakeEntry) HeadersCompleted() bool  { return e.completed }

func TestPushPopIdempotent(t *testing.T) {
	l := New[*fakeEntry]()
	a, b := &fakeEntry{name: "a"}, &fakeEntry{name: "b"}

	l.Push(a)
	l.Push(b)
	l.Push(a)
	assert.Equal(t, []*fakeEntry{a, b}, l.All())
	assert.Equal(t, 2, l.Len())

	l.PushActive(b)
	l.PushActive(b)
	assert.Equal(t, 1, l.ActiveLen())
	assert.True(t, l.IsActive(b))

	l.Pop(a)
	l.Pop(a)
	l.PopActive(a)
	assert.Equal(t, []*fakeEntry{b}, l.All())
	assert.False(t, l.Has(a))
}

func TestInsertionOrderRefreshedByRepush(t *testing.T) {
	l := New[*fakeEntry]()
	a, b, c := &fakeEntry{name: "a"}, &fakeEntry{name: "b"}, &fakeEntry{name: "c"}
	for _, e := range []*fakeEntry{a, b, c} {
		l.Push(e)
		l.PushActive(e)
	}
	l.Pop(a)
	l.PopActive(a)
	l.Push(a)
	l.PushActive(a)
	assert.Equal(t, []*fakeEntry{b, c, a}, l.All())
	assert.Equal(t, []*fakeEntry{b, c, a}, l.Active())
}

func TestIdleActivePartition(t *testing.T) {
	l := New[*fakeEntry]()
	busy := &fakeEntry{name: "busy", start: 10}
	idle := &fakeEntry{name: "idle"}
	l.Push(busy)
	l.PushActive(busy)
	l.Push(idle)

	assert.Equal(t, []*fakeEntry{idle}, l.Idle())
	assert.Equal(t, []*fakeEntry{busy}, l.Active())
	for _, e := range l.All() {
		inIdle := e.LastMessageStart() == 0
		assert.NotEqual(t, inIdle, l.IsActive(e), e.name)
	}
}

func TestExpired(t *testing.T) {
	const start = int64(1000)
	l := New[*fakeEntry]()
	e := &fakeEntry{name: "slow", start: start}
	l.Push(e)
	l.PushActive(e)

	assert.Nil(t, l.Expired(0, 0))
	assert.Empty(t, l.Expired(start, 0))

	assert.Equal(t, []*fakeEntry{e}, l.Expired(start+1, 0))
	assert.Empty(t, l.Active())
	assert.Equal(t, []*fakeEntry{e}, l.All())
	// 已移出活跃集合，不会重复返回
	assert.Empty(t, l.Expired(start+1, start+1))
}

func TestExpiredHeadersDeadlineSkipsCompletedHeaders(t *testing.T) {
	l := New[*fakeEntry]()
	done := &fakeEntry{name: "done", start: 5, completed: true}
	pending := &fakeEntry{name: "pending", start: 5}
	for _, e := range []*fakeEntry{done, pending} {
		l.Push(e)
		l.PushActive(e)
	}

	assert.Equal(t, []*fakeEntry{pending}, l.Expired(10, 0))
	assert.Equal(t, []*fakeEntry{done}, l.Active())
	assert.Equal(t, []*fakeEntry{done}, l.Expired(10, 6))
	assert.Zero(t, l.ActiveLen())
	assert.Equal(t, 2, l.Len())
}

func TestDeadlines(t *testing.T) {
	now := int64(100 * time.Second)

	h, r := Deadlines(now, 10*time.Second, 60*time.Second)
	assert.Equal(t, int64(90*time.Second), h)
	assert.Equal(t, int64(40*time.Second), r)

	// 请求超时更短时交换
	h, r = Deadlines(now, 60*time.Second, 10*time.Second)
	assert.Equal(t, int64(90*time.Second), h)
	assert.Equal(t, int64(40*time.Second), r)

	h, r = Deadlines(now, 0, 10*time.Second)
	assert.Zero(t, h)
	assert.Equal(t, int64(90*time.Second), r)

	h, r = Deadlines(now, 200*time.Second, 0)
	assert.Zero(t, h)
	assert.Zero(t, r)
}
