// Package conns 登记服务端的解析器，用于找出空闲连接和超时未完成的请求。
package conns

import (
	"container/list"
	"time"
)

// Entry 是可登记的解析器。
type Entry interface {
	comparable
	// LastMessageStart 返回当前报文开始的单调时间戳，空闲时为 0。
	LastMessageStart() int64
	HeadersCompleted() bool
}

// set 是按插入顺序遍历的集合。
type set[T comparable] struct {
	order *list.List
	index map[T]*list.Element
}

func newSet[T comparable]() set[T] {
	return set[T]{order: list.New(), index: make(map[T]*list.Element)}
}

func (s *set[T]) add(v T) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = s.order.PushBack(v)
}

func (s *set[T]) remove(v T) {
	if e, ok := s.index[v]; ok {
		s.order.Remove(e)
		delete(s.index, v)
	}
}

func (s *set[T]) has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *set[T]) each(fn func(v T) bool) {
	for e := s.order.Front(); e != nil; {
		next := e.Next()
		if !fn(e.Value.(T)) {
			return
		}
		e = next
	}
}

// List 是连接表，由全部集合与活跃集合组成。List 不是并发安全的。
type List[T Entry] struct {
	all    set[T]
	active set[T]
}

func New[T Entry]() *List[T] {
	return &List[T]{all: newSet[T](), active: newSet[T]()}
}

// All 返回全部登记的解析器。
func (l *List[T]) All() []T {
	res := make([]T, 0, len(l.all.index))
	l.all.each(func(v T) bool {
		res = append(res, v)
		return true
	})
	return res
}

// Idle 返回不在报文中的解析器。
func (l *List[T]) Idle() []T {
	var res []T
	l.all.each(func(v T) bool {
		if v.LastMessageStart() == 0 {
			res = append(res, v)
		}
		return true
	})
	return res
}

// Active 返回活跃集合中的解析器。
func (l *List[T]) Active() []T {
	res := make([]T, 0, len(l.active.index))
	l.active.each(func(v T) bool {
		res = append(res, v)
		return true
	})
	return res
}

// Expired 扫描活跃集合，返回报文开始时间早于截止时间的解析器并把它们移出活跃集合。
// headersDeadline 只作用于头部尚未接收完的解析器。截止时间为 0 表示不限制。
func (l *List[T]) Expired(headersDeadline, requestDeadline int64) []T {
	if headersDeadline == 0 && requestDeadline == 0 {
		return nil
	}
	var res []T
	l.active.each(func(v T) bool {
		start := v.LastMessageStart()
		if (!v.HeadersCompleted() && headersDeadline > 0 && start < headersDeadline) ||
			(requestDeadline > 0 && start < requestDeadline) {
			res = append(res, v)
			l.active.remove(v)
		}
		return true
	})
	return res
}

// Deadlines 根据当前时间与超时时长计算 Expired 所需的截止时间。
// 两个超时都设置且请求超时更短时交换二者，结果为负时取 0。
func Deadlines(now int64, headersTimeout, requestTimeout time.Duration) (headersDeadline, requestDeadline int64) {
	if requestTimeout > 0 && headersTimeout > requestTimeout {
		headersTimeout, requestTimeout = requestTimeout, headersTimeout
	}
	return deadline(now, headersTimeout), deadline(now, requestTimeout)
}

func deadline(now int64, timeout time.Duration) int64 {
	if timeout <= 0 || now <= int64(timeout) {
		return 0
	}
	return now - int64(timeout)
}

func (l *List[T]) Push(v T)       { l.all.add(v) }
func (l *List[T]) Pop(v T)        { l.all.remove(v) }
func (l *List[T]) PushActive(v T) { l.active.add(v) }
func (l *List[T]) PopActive(v T)  { l.active.remove(v) }

// Has 报告 v 是否在全部集合中。
func (l *List[T]) Has(v T) bool { return l.all.has(v) }

// IsActive 报告 v 是否在活跃集合中。
func (l *List[T]) IsActive(v T) bool { return l.active.has(v) }

func (l *List[T]) Len() int       { return len(l.all.index) }
func (l *List[T]) ActiveLen() int { return len(l.active.index) }
