// Package outcome accumulates the per-domain results of a run and derives
// the rewritten watch list and the notification text from them.
package outcome

import (
	"fmt"
	"sort"
	"sync"

	"github.com/benithors/dotgrab/internal/domain"
)

type Status string

const (
	StatusPurchased   Status = "purchased"
	StatusUnavailable Status = "unavailable"
	StatusFailed      Status = "failed"
)

// Record is the terminal result for one watch-list entry.
type Record struct {
	Domain      string `json:"domain"`
	Name        string `json:"name,omitempty"` // normalized domain, empty for invalid entries
	Status      Status `json:"status"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	OrderID     int64  `json:"order_id,omitempty"`
	OrderURL    string `json:"order_url,omitempty"`
	Price       string `json:"price,omitempty"`
	PaymentMean string `json:"payment_mean,omitempty"`
}

// Message is the notification line for the record. Unavailable records have none.
func (r Record) Message() string {
	switch r.Status {
	case StatusPurchased:
		return fmt.Sprintf("- %s: Payment successful. Order #%d (%s) paid with %s. Congratulations on purchasing a new domain name!",
			r.Domain, r.OrderID, r.Price, r.PaymentMean)
	case StatusFailed:
		return fmt.Sprintf("- %s: %s", r.Domain, r.Reason)
	default:
		return ""
	}
}

type Tracker struct {
	mu      sync.Mutex
	records []Record
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Record(r Record) {
	t.mu.Lock()
	t.records = append(t.records, r)
	t.mu.Unlock()
}

// Records returns the records in the order they were recorded.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Record(nil), t.records...)
}

func (t *Tracker) Purchased() []Record { return t.filter(StatusPurchased) }

func (t *Tracker) Failed() []Record { return t.filter(StatusFailed) }

func (t *Tracker) Counts() map[Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[Status]int{}
	for _, r := range t.records {
		out[r.Status]++
	}
	return out
}

// Remaining returns original without the entries naming a domain that was
// purchased during the run, whatever their spelling. Order, duplicates and
// formatting of the other entries are kept.
func (t *Tracker) Remaining(original []string) []string {
	purchased := map[string]struct{}{}
	for _, r := range t.Purchased() {
		purchased[r.Domain] = struct{}{}
		if r.Name != "" {
			purchased[r.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(original))
	for _, entry := range original {
		if _, ok := purchased[entry]; ok {
			continue
		}
		if name, err := domain.Normalize(entry); err == nil {
			if _, ok := purchased[name]; ok {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// Summary returns the sorted notification lines for purchases and failures.
func (t *Tracker) Summary() []string {
	var out []string
	for _, r := range t.Records() {
		if msg := r.Message(); msg != "" {
			out = append(out, msg)
		}
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) filter(s Status) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Record
	for _, r := range t.records {
		if r.Status == s {
			out = append(out, r)
		}
	}
	return out
}
