package alerts

import (
	"fmt"
	"time"

	"github.com/hardw419/ivr-system/internal/types"
)

// Severity grades how urgently a console should surface an alert
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a wait-pressure annotation shown next to a queued caller
type Alert struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Thresholds control when waiting callers start flagging
type Thresholds struct {
	WarnAfter     time.Duration
	CriticalAfter time.Duration
}

// DefaultThresholds flags callers at half the wait ceiling and again
// shortly before expiry.
func DefaultThresholds(ceiling time.Duration) Thresholds {
	return Thresholds{
		WarnAfter:     ceiling / 2,
		CriticalAfter: ceiling * 9 / 10,
	}
}

// CheckWaitAlerts evaluates wait-pressure rules for queued callers.
// Returned slices are keyed by queue entry ID; entries without alerts
// are absent.
func CheckWaitAlerts(entries []types.QueueEntry, th Thresholds, now time.Time) map[string][]Alert {
	out := make(map[string][]Alert)
	for i := range entries {
		if entries[i].Status != types.QueueWaiting && entries[i].Status != types.QueueRinging {
			continue
		}
		waited := now.Sub(entries[i].WaitStart)
		switch {
		case th.CriticalAfter > 0 && waited > th.CriticalAfter:
			out[entries[i].ID] = append(out[entries[i].ID], Alert{
				Rule:     "wait_near_ceiling",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("Waiting %s, about to expire", formatDuration(waited)),
			})
		case th.WarnAfter > 0 && waited > th.WarnAfter:
			out[entries[i].ID] = append(out[entries[i].ID], Alert{
				Rule:     "wait_long",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Waiting %s", formatDuration(waited)),
			})
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
