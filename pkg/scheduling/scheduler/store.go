package scheduler

import (
	"time"

	"github.com/google/btree"
)

const storeDegree = 32

// entry is one pending run. seq breaks ties between equal due times so
// tasks sharing a due time come out in insertion order.
type entry struct {
	due  time.Time
	seq  uint64
	task *Task
}

func lessEntry(a, b entry) bool {
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	return a.seq < b.seq
}

// store orders pending tasks by due time. It is not safe for concurrent
// use; the Scheduler guards it with its mutex.
type store struct {
	tree *btree.BTreeG[entry]
	seq  uint64
}

func newStore() *store {
	return &store{tree: btree.NewG(storeDegree, lessEntry)}
}

func (s *store) insert(due time.Time, t *Task) {
	s.seq++
	s.tree.ReplaceOrInsert(entry{due: due, seq: s.seq, task: t})
}

// earliest returns the smallest due time.
func (s *store) earliest() (time.Time, bool) {
	e, ok := s.tree.Min()
	return e.due, ok
}

// popDue removes and returns, in order, every entry due at or before now.
func (s *store) popDue(now time.Time) []entry {
	var due []entry
	for {
		e, ok := s.tree.Min()
		if !ok || e.due.After(now) {
			return due
		}
		s.tree.DeleteMin()
		due = append(due, e)
	}
}

func (s *store) len() int {
	return s.tree.Len()
}

// entries returns every pending entry in due order.
func (s *store) entries() []entry {
	out := make([]entry, 0, s.tree.Len())
	s.tree.Ascend(func(e entry) bool {
		out = append(out, e)
		return true
	})
	return out
}
