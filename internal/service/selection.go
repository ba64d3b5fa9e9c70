package service

import "sync"

// SelectionSet хранит отмеченные позиции одного чата в порядке выбора.
// Набор эфемерный: он живёт только в памяти процесса и не переживает
// рестарт. Снятие последней отметки выводит из режима выбора само,
// без отдельной отмены.
type SelectionSet struct {
	ids   map[int64]struct{}
	order []int64
}

func NewSelectionSet() *SelectionSet {
	return &SelectionSet{ids: make(map[int64]struct{})}
}

// Select отмечает позицию. Повторная отметка ничего не меняет.
func (s *SelectionSet) Select(id int64) {
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

// Toggle переключает отметку и сообщает, отмечена ли позиция теперь.
func (s *SelectionSet) Toggle(id int64) bool {
	if _, ok := s.ids[id]; !ok {
		s.Select(id)
		return true
	}
	delete(s.ids, id)
	for i, stored := range s.order {
		if stored == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return false
}

func (s *SelectionSet) Selected(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Active сообщает, идёт ли режим выбора. Пустой набор означает выход.
func (s *SelectionSet) Active() bool {
	return len(s.ids) > 0
}

func (s *SelectionSet) Count() int {
	return len(s.ids)
}

// IDs возвращает копию отмеченного в порядке выбора.
func (s *SelectionSet) IDs() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

func (s *SelectionSet) Clear() {
	s.ids = make(map[int64]struct{})
	s.order = nil
}

// SelectionRegistry раздаёт наборы по пользователям. Обновления бота
// обрабатываются конкурентно, поэтому доступ под мьютексом.
type SelectionRegistry struct {
	mu   sync.Mutex
	sets map[int64]*SelectionSet
}

func NewSelectionRegistry() *SelectionRegistry {
	return &SelectionRegistry{sets: make(map[int64]*SelectionSet)}
}

// Toggle переключает отметку позиции и возвращает её новое состояние и
// размер набора. Опустевший набор убирается из реестра.
func (r *SelectionRegistry) Toggle(userID, itemID int64) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[userID]
	if !ok {
		set = NewSelectionSet()
		r.sets[userID] = set
	}

	selected := set.Toggle(itemID)
	if !set.Active() {
		delete(r.sets, userID)
	}
	return selected, set.Count()
}

func (r *SelectionRegistry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[userID]
	return ok && set.Active()
}

func (r *SelectionRegistry) Selected(userID, itemID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[userID]
	return ok && set.Selected(itemID)
}

func (r *SelectionRegistry) Count(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[userID]
	if !ok {
		return 0
	}
	return set.Count()
}

func (r *SelectionRegistry) IDs(userID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[userID]
	if !ok {
		return nil
	}
	return set.IDs()
}

// Clear выход из режима выбора по явной отмене.
func (r *SelectionRegistry) Clear(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, userID)
}
