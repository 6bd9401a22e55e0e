// Package drive implements the Drive Tracker (spec §4.G): pairing
// dev-drive and delegation-drive started/ended events by session and
// prompt, reporting durations, and flagging unmatched starts as open
// intervals rather than silently closing them.
package drive

import (
	"github.com/maceff/macf/internal/breadcrumb"
	"github.com/maceff/macf/internal/eventlog"
)

// Kind distinguishes a primary agent drive from a delegated subagent
// drive; both use the same started/ended pairing shape.
type Kind string

const (
	KindDev  Kind = "dev_drv"
	KindDeleg Kind = "deleg_drv"
)

func (k Kind) startedEvent() string { return string(k) + "_started" }
func (k Kind) endedEvent() string   { return string(k) + "_ended" }

// Interval is one paired (or still-open) drive interval.
type Interval struct {
	SessionID       string
	PromptUUID      string
	StartedAt       float64
	EndedAt         float64 // 0 if Open
	DurationSeconds float64
	Open            bool
}

// Stats pairs *_started/*_ended events of kind for sessionID, in append
// order. Orphaned starts (no matching end yet) are reported as open
// intervals, never silently dropped or closed, per spec §4.G.
func Stats(reader *eventlog.Reader, kind Kind, sessionID string) ([]Interval, error) {
	var open []Interval
	var closed []Interval
	wantSession := breadcrumb.SessionComponent(sessionID)

	err := reader.Stream(false, func(e eventlog.Event) error {
		c, cerr := e.BreadcrumbComponents()
		if cerr != nil || c.Session != wantSession {
			return nil
		}
		switch e.EventName {
		case kind.startedEvent():
			open = append(open, Interval{
				SessionID:  sessionID,
				PromptUUID: c.Prompt,
				StartedAt:  e.Timestamp,
				Open:       true,
			})
		case kind.endedEvent():
			// Find the latest still-open interval for this prompt.
			for i := len(open) - 1; i >= 0; i-- {
				if open[i].Prompt() == c.Prompt {
					iv := open[i]
					iv.EndedAt = e.Timestamp
					iv.DurationSeconds = e.Timestamp - iv.StartedAt
					iv.Open = false
					closed = append(closed, iv)
					open = append(open[:i], open[i+1:]...)
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Interval, 0, len(closed)+len(open))
	out = append(out, closed...)
	out = append(out, open...)
	return out, nil
}

// Prompt is a convenience accessor mirroring the PromptUUID field, used to
// keep the pairing loop above readable.
func (iv Interval) Prompt() string { return iv.PromptUUID }

// OpenCount reports how many intervals in stats are still open.
func OpenCount(stats []Interval) int {
	n := 0
	for _, iv := range stats {
		if iv.Open {
			n++
		}
	}
	return n
}
