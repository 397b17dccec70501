package core

import (
	"testing"

	"barcoder/pkg/domain"
)

func TestSelectionBusOrderAndCancel(t *testing.T) {
	bus := NewSelectionBus()
	var got []string
	cancelA := bus.Subscribe(func(ev SelectionEvent) { got = append(got, "a:"+ev.Project) })
	bus.Subscribe(func(ev SelectionEvent) { got = append(got, "b:"+ev.Project) })

	bus.Publish(SelectionEvent{Project: "QABCD"})
	cancelA()
	cancelA()
	bus.Publish(SelectionEvent{Project: "QWXYZ"})

	want := []string{"a:QABCD", "b:QABCD", "b:QWXYZ"}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
}

func TestUsefulSample(t *testing.T) {
	entity := sample("QABCDENTITY-1", domain.SampleTypeBiologicalEntity, nil)
	valid := sample("QABCD002AJ", domain.SampleTypeTest, nil)
	other := sample("QABCD001AB", domain.SampleTypeTest, nil)

	if s, ok := UsefulSample(SelectionEvent{Samples: []domain.SampleRecord{entity, valid}}); !ok || s.Code != valid.Code {
		t.Fatalf("expected first valid selected sample, got %v %v", s.Code, ok)
	}
	ev := SelectionEvent{Experiments: []*domain.ExperimentSummary{summaryOf(entity, other)}}
	if s, ok := UsefulSample(ev); !ok || s.Code != other.Code {
		t.Fatalf("expected experiment fallback, got %v %v", s.Code, ok)
	}
	if _, ok := UsefulSample(SelectionEvent{}); ok {
		t.Fatal("empty selection has no preview")
	}
	if _, ok := UsefulSample(SelectionEvent{Experiments: []*domain.ExperimentSummary{summaryOf(entity)}}); ok {
		t.Fatal("selection without valid code has no preview")
	}
}
