package conns

import "sync"

// Locked 是并发安全的 List，供各连接协程与清扫协程共享。
type Locked[T Entry] struct {
	mu sync.Mutex
	l  *List[T]
}

func NewLocked[T Entry]() *Locked[T] {
	return &Locked[T]{l: New[T]()}
}

func (s *Locked[T]) Push(v T) {
	s.mu.Lock()
	s.l.Push(v)
	s.mu.Unlock()
}

func (s *Locked[T]) Pop(v T) {
	s.mu.Lock()
	s.l.Pop(v)
	s.mu.Unlock()
}

func (s *Locked[T]) PushActive(v T) {
	s.mu.Lock()
	s.l.PushActive(v)
	s.mu.Unlock()
}

func (s *Locked[T]) PopActive(v T) {
	s.mu.Lock()
	s.l.PopActive(v)
	s.mu.Unlock()
}

func (s *Locked[T]) All() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l.All()
}

func (s *Locked[T]) Idle() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l.Idle()
}

func (s *Locked[T]) Active() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l.Active()
}

// Expired 同 List.Expired。
func (s *Locked[T]) Expired(headersDeadline, requestDeadline int64) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l.Expired(headersDeadline, requestDeadline)
}

func (s *Locked[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l.Len()
}
