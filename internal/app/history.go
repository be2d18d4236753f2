package app

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"

	"travelhub/internal/domain"
)

const DefaultHistoryCapacity = 100

type historyEntry struct {
	key       string
	query     string
	resultIDs []string
	count     int64
	lastSeen  time.Time
}

// SearchHistory is a bounded insertion-order FIFO of recent queries. Once the
// capacity is reached each new key evicts exactly the earliest-inserted one.
// Re-recording a known query updates it in place and keeps its position.
type SearchHistory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = oldest
	index    map[string]*list.Element
	searches int64
	results  int64
}

func NewSearchHistory(capacity int) *SearchHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &SearchHistory{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Record stores a non-empty query with its result set. It reports whether an
// older entry was evicted.
func (h *SearchHistory) Record(query string, resultIDs []string, at time.Time) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	key := strings.ToLower(q)
	ids := append([]string(nil), resultIDs...)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.searches++
	h.results += int64(len(ids))

	if el, ok := h.index[key]; ok {
		e := el.Value.(*historyEntry)
		e.query = q
		e.resultIDs = ids
		e.count++
		e.lastSeen = at
		return false
	}

	h.index[key] = h.order.PushBack(&historyEntry{key: key, query: q, resultIDs: ids, count: 1, lastSeen: at})
	if h.order.Len() <= h.capacity {
		return false
	}
	oldest := h.order.Front()
	h.order.Remove(oldest)
	delete(h.index, oldest.Value.(*historyEntry).key)
	return true
}

func (h *SearchHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.order.Len()
}

// Keys returns the normalized queries, oldest first.
func (h *SearchHistory) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, h.order.Len())
	for el := h.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*historyEntry).key)
	}
	return out
}

// Results returns the result IDs last recorded for query.
func (h *SearchHistory) Results(query string) ([]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	el, ok := h.index[strings.ToLower(strings.TrimSpace(query))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), el.Value.(*historyEntry).resultIDs...), true
}

// Matching returns up to n recorded queries containing needle, newest first.
func (h *SearchHistory) Matching(needle string, n int) []string {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" || n <= 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for el := h.order.Back(); el != nil && len(out) < n; el = el.Prev() {
		e := el.Value.(*historyEntry)
		if strings.Contains(e.key, needle) {
			out = append(out, e.query)
		}
	}
	return out
}

// Top returns the n most repeated queries; ties keep insertion order.
func (h *SearchHistory) Top(n int) []domain.TrendingTerm {
	h.mu.Lock()
	terms := make([]domain.TrendingTerm, 0, h.order.Len())
	for el := h.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*historyEntry)
		terms = append(terms, domain.TrendingTerm{Term: e.key, Count: e.count})
	}
	h.mu.Unlock()

	sort.SliceStable(terms, func(i, j int) bool { return terms[i].Count > terms[j].Count })
	if n >= 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func (h *SearchHistory) Analytics(top int) domain.SearchAnalytics {
	terms := h.Top(top)

	h.mu.Lock()
	defer h.mu.Unlock()
	a := domain.SearchAnalytics{
		TotalSearches: h.searches,
		UniqueQueries: len(h.index),
		TopQueries:    terms,
		HistorySize:   h.order.Len(),
	}
	if h.searches > 0 {
		a.AverageResults = float64(h.results) / float64(h.searches)
	}
	return a
}
