package http

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// debugRingCapacity bounds the number of distinct (username, endpoint)
// pairs the debug log remembers before evicting the oldest.
const debugRingCapacity = 256

// decisionRecord is the last Gate Middleware verdict observed for one
// (username, endpoint) pair.
type decisionRecord struct {
	Username   string    `json:"username"`
	Endpoint   string    `json:"endpoint"`
	Decision   string    `json:"decision"`
	RuleSource string    `json:"rule_source"`
	At         time.Time `json:"at"`
}

// DecisionDebugLog is a bounded, mutex-guarded ring of the most recent
// decision per (username, endpoint) pair, surfaced over /health for
// on-call debugging of rate-limit behavior without re-deriving it from
// the audit trail. Entries are keyed by an xxhash digest of the pair
// rather than the concatenated string, so the map key is a fixed-size
// uint64 regardless of username/endpoint length.
type DecisionDebugLog struct {
	mu      sync.Mutex
	entries map[uint64]decisionRecord
	order   []uint64
	cap     int
}

// NewDecisionDebugLog constructs an empty debug log.
func NewDecisionDebugLog() *DecisionDebugLog {
	return &DecisionDebugLog{entries: make(map[uint64]decisionRecord), cap: debugRingCapacity}
}

func debugKey(username, endpoint string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(username)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(endpoint)
	return h.Sum64()
}

// Record stores the latest decision for (username, endpoint), moving the
// pair to the newest position and evicting the least recently recorded
// distinct pair once the ring is at capacity.
func (d *DecisionDebugLog) Record(username, endpoint, decision, ruleSource string, at time.Time) {
	key := debugKey(username, endpoint)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.entries[key]; exists {
		for i, k := range d.order {
			if k == key {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	} else if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.entries, oldest)
	}
	d.order = append(d.order, key)
	d.entries[key] = decisionRecord{
		Username:   username,
		Endpoint:   endpoint,
		Decision:   decision,
		RuleSource: ruleSource,
		At:         at,
	}
}

// Recent returns up to n of the most recently recorded entries, newest
// first. Intended for an operator inspecting /health?debug=1, not for
// any decision-making path.
func (d *DecisionDebugLog) Recent(n int) []decisionRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > len(d.order) {
		n = len(d.order)
	}
	out := make([]decisionRecord, 0, n)
	for i := len(d.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, d.entries[d.order[i]])
	}
	return out
}

// Len reports the number of distinct (username, endpoint) pairs held.
func (d *DecisionDebugLog) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
