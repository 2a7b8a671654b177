package dom

// Subscription delivers mutation records in the order the tree changed.
// C is never closed; select on Done to learn that the subscription ended.
type Subscription struct {
	C <-chan MutationRecord

	ch   chan MutationRecord
	done chan struct{}
	doc  *Document
}

// Subscribe registers for mutation records. Appends block while the
// subscriber's buffer is full, so consumers must keep reading until they
// call Close.
func (d *Document) Subscribe(buffer int) *Subscription {
	ch := make(chan MutationRecord, buffer)
	s := &Subscription{C: ch, ch: ch, done: make(chan struct{}), doc: d}

	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.closed {
		close(s.done)
		return s
	}
	d.subs[s] = struct{}{}
	return s
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.doc.subMu.Lock()
	_, ok := s.doc.subs[s]
	delete(s.doc.subs, s)
	s.doc.subMu.Unlock()

	if ok {
		s.stop()
	}
}

func (s *Subscription) stop() {
	close(s.done)
}

func (d *Document) notify(rec MutationRecord) {
	d.subMu.Lock()
	subs := make([]*Subscription, 0, len(d.subs))
	for s := range d.subs {
		subs = append(subs, s)
	}
	d.subMu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- rec:
		case <-s.done:
		}
	}
}
