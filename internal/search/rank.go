package search

import (
	"container/heap"
	"sort"

	"tenderfinder/internal/scoring"
	"tenderfinder/models"
)

type candidate struct {
	lot    models.Lot
	report scoring.Report
}

// better: ROI по убыванию, при равенстве меньший id. Порядок детерминирован.
func better(a, b candidate) bool {
	if c := a.report.ROI.Cmp(b.report.ROI); c != 0 {
		return c > 0
	}
	return a.lot.ID < b.lot.ID
}

// worstHeap - мин-куча по better: на вершине худший из удержанных кандидатов
type worstHeap []candidate

func (h worstHeap) Len() int           { return len(h) }
func (h worstHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *worstHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK держит не больше limit лучших кандидатов и считает все совпадения
type topK struct {
	limit int
	total int
	items worstHeap
}

func newTopK(limit int) *topK {
	return &topK{limit: limit, items: make(worstHeap, 0, limit)}
}

func (t *topK) add(c candidate) {
	t.total++
	if t.limit <= 0 {
		return
	}
	if len(t.items) < t.limit {
		heap.Push(&t.items, c)
		return
	}
	if better(c, t.items[0]) {
		t.items[0] = c
		heap.Fix(&t.items, 0)
	}
}

// sorted возвращает удержанных кандидатов от лучшего к худшему
func (t *topK) sorted() []candidate {
	out := make([]candidate, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
