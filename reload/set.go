package reload

import "sync"

// handlerSet 并发安全的有序集合，按 handler 身份去重。
// 迭代前先拷贝快照，遍历期间不持有锁。
type handlerSet struct {
	mu    sync.RWMutex
	index map[Handler]int
	items []Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{index: make(map[Handler]int)}
}

// add returns false when h is already present.
func (s *handlerSet) add(h Handler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[h]; ok {
		return false
	}
	s.index[h] = len(s.items)
	s.items = append(s.items, h)
	return true
}

// remove returns false when h was absent.
func (s *handlerSet) remove(h Handler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[h]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	s.items[last] = nil
	s.items = s.items[:last]
	delete(s.index, h)
	return true
}

func (s *handlerSet) contains(h Handler) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[h]
	return ok
}

func (s *handlerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *handlerSet) snapshot() []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Handler, len(s.items))
	copy(out, s.items)
	return out
}

func (s *handlerSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[Handler]int)
	s.items = nil
}
