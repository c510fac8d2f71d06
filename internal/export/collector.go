package export

import (
	"sort"
	"sync"

	"github.com/wonny/screener/internal/contracts"
)

// Collector accumulates results and signals delivered by a scan
type Collector struct {
	mu      sync.Mutex
	results []*contracts.ScanResult
	signals []contracts.TradeSignal
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// OnResult matches contracts.ResultFunc
func (c *Collector) OnResult(result *contracts.ScanResult, signals []contracts.TradeSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result != nil {
		c.results = append(c.results, result)
	}
	c.signals = append(c.signals, signals...)
}

// Results returns a copy ordered by score, best first, ties by symbol
func (c *Collector) Results() []*contracts.ScanResult {
	c.mu.Lock()
	out := make([]*contracts.ScanResult, len(c.results))
	copy(out, c.results)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Signals returns a copy ordered by symbol
func (c *Collector) Signals() []contracts.TradeSignal {
	c.mu.Lock()
	out := make([]contracts.TradeSignal, len(c.signals))
	copy(out, c.signals)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Len returns the number of collected results
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Reset drops everything collected
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = nil
	c.signals = nil
}
