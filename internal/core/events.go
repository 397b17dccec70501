package core

import (
	"sync"

	"barcoder/pkg/domain"
)

// SelectionEvent describes the current experiment and sample selection.
type SelectionEvent struct {
	Space       string
	Project     string
	Experiments []*domain.ExperimentSummary
	Samples     []domain.SampleRecord
}

// SelectionBus delivers selection changes to registered callbacks in
// registration order, synchronously on the publishing goroutine.
type SelectionBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(SelectionEvent)
	order  []int
}

// NewSelectionBus returns an empty bus.
func NewSelectionBus() *SelectionBus {
	return &SelectionBus{subs: make(map[int]func(SelectionEvent))}
}

// Subscribe registers fn and returns a function removing it.
func (b *SelectionBus) Subscribe(fn func(SelectionEvent)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// Publish calls every subscriber with ev.
func (b *SelectionBus) Publish(ev SelectionEvent) {
	b.mu.RLock()
	fns := make([]func(SelectionEvent), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// UsefulSample picks the sample shown in the sticker preview: the first
// selected sample with a valid barcode, else the first valid sample of the
// first selected experiment.
func UsefulSample(ev SelectionEvent) (domain.SampleRecord, bool) {
	for _, s := range ev.Samples {
		if domain.IsBarcode(s.Code) {
			return s, true
		}
	}
	if len(ev.Experiments) == 0 || ev.Experiments[0] == nil {
		return domain.SampleRecord{}, false
	}
	for _, s := range ev.Experiments[0].Samples {
		if domain.IsBarcode(s.Code) {
			return s, true
		}
	}
	return domain.SampleRecord{}, false
}
