// Package metrics provides a lightweight in-process counter collector for
// the message lifecycle. It renders Prometheus exposition text without
// pulling in the prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter names used across the pipeline.
const (
	MessagesIngested  = "messages_ingested_total"
	MessagesChat      = "messages_chat_total"
	MessagesCommand   = "messages_command_total"
	MessagesDiscarded = "messages_discarded_total"
	CommandsRejected  = "commands_rejected_total"
	RepliesDrafted    = "replies_drafted_total"
	RepliesSent       = "replies_sent_total"
	StoreBusySkips    = "store_busy_skips_total"
)

// Collector aggregates monotonically increasing counters.
type Collector struct {
	mu        sync.Mutex
	counters  map[string]int64
	startTime time.Time
}

func New() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		startTime: time.Now(),
	}
}

// Inc increments a counter by 1.
func (c *Collector) Inc(name string) { c.Add(name, 1) }

// Add increments a counter by n.
func (c *Collector) Add(name string, n int64) {
	c.mu.Lock()
	c.counters[name] += n
	c.mu.Unlock()
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Render formats the counters in Prometheus exposition style, sorted by name.
func (c *Collector) Render() string {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "mailbot_uptime_seconds %d\n", int64(c.Uptime().Seconds()))
	for _, name := range names {
		fmt.Fprintf(&b, "mailbot_%s %d\n", name, snap[name])
	}
	return b.String()
}

// Handler returns an http.HandlerFunc that renders the counters in Prometheus
// text format.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}
