package todo

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ItemStatus is the per-line state in the checklist convention.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusInProgress ItemStatus = "in_progress"
	StatusDone       ItemStatus = "done"
)

// Item is one checklist entry. The external agent owns the file and
// rewrites it between iterations; the loop only reads it to pick the
// next unit of work.
type Item struct {
	Text     string
	Status   ItemStatus
	Priority bool
	Blocked  bool
	Line     int
}

// itemExpr matches checklist lines: "- [ ] text" pending,
// "- [~] text" in progress, "- [x] text" done.
var itemExpr = regexp.MustCompile(`^\s*[-*]\s*\[([ ~xX])\]\s*(.+?)\s*$`)

// Parse extracts typed checklist items from markdown content.
// Non-checklist lines are ignored. [HIGH] and [BLOCKED] bracket tags
// anywhere in the item text set the corresponding flags.
func Parse(content string) []Item {
	var items []Item
	for i, line := range strings.Split(content, "\n") {
		m := itemExpr.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		var status ItemStatus
		switch m[1] {
		case " ":
			status = StatusPending
		case "~":
			status = StatusInProgress
		default:
			status = StatusDone
		}

		text := m[2]
		items = append(items, Item{
			Text:     text,
			Status:   status,
			Priority: strings.Contains(text, "[HIGH]"),
			Blocked:  strings.Contains(text, "[BLOCKED]"),
			Line:     i + 1,
		})
	}
	return items
}

// ParseFile reads and parses a checklist file.
func ParseFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	return Parse(string(data)), nil
}

// SelectNext picks the next actionable item: high-priority pending
// first, then in-progress items to resume, then the earliest remaining
// pending item. Blocked items are never selected. Returns nil when
// nothing is actionable.
func SelectNext(items []Item) *Item {
	for i := range items {
		it := &items[i]
		if it.Status == StatusPending && it.Priority && !it.Blocked {
			return it
		}
	}
	for i := range items {
		it := &items[i]
		if it.Status == StatusInProgress && !it.Blocked {
			return it
		}
	}
	for i := range items {
		it := &items[i]
		if it.Status == StatusPending && !it.Blocked {
			return it
		}
	}
	return nil
}

// Remaining counts items that are not done, including blocked ones.
// Reported on limit exhaustion so a caller can decide whether to
// resume with a fresh invocation.
func Remaining(items []Item) int {
	n := 0
	for _, it := range items {
		if it.Status != StatusDone {
			n++
		}
	}
	return n
}
