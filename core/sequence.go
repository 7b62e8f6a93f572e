package core

import "sync"

// Sequence is a serial lane on top of a Center. Every job posted to it is
// chained after the previously posted one, so bodies run strictly one at a
// time in post order even when many workers service the category.
//
// Jobs of one Sequence may run on different workers.
type Sequence struct {
	center   *Center
	category Category

	mu   sync.Mutex
	last *Counter
}

// NewSequence creates a Sequence whose jobs run on category.
func NewSequence(center *Center, category Category) *Sequence {
	return &Sequence{center: center, category: category}
}

func (s *Sequence) Category() Category {
	return s.category
}

// Post creates a job for body, chains it after the last posted job and
// dispatches it.
func (s *Sequence) Post(body Task, opts ...CounterOption) (*Counter, error) {
	c, err := s.center.Create(body, s.category, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil {
		if err := s.center.Chain(s.last, c); err != nil {
			return nil, err
		}
	}
	if err := s.center.Dispatch(c); err != nil {
		return nil, err
	}
	s.last = c
	return c, nil
}

// Last returns the most recently posted job, or nil.
func (s *Sequence) Last() *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Wait blocks until every job posted so far has run.
func (s *Sequence) Wait() {
	if last := s.Last(); last != nil {
		last.Wait()
	}
}
