package api

import (
	"time"

	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/devlibx/gox-dozeprobe/pkg/journal"
	"github.com/devlibx/gox-dozeprobe/pkg/probe"
	"github.com/devlibx/gox-dozeprobe/pkg/timer"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FromSnapshot builds the status payload from the controller and what the
// display currently shows.
func FromSnapshot(s controller.Snapshot, shown display.Snapshot, now time.Time) StatusResponse {
	resp := StatusResponse{
		State:          s.State.String(),
		SessionID:      s.SessionID,
		Elapsed:        timer.Format(s.Elapsed),
		ElapsedMs:      s.Elapsed.Milliseconds(),
		Status:         shown.Status,
		StatusSeverity: shown.Severity.String(),
		ProbeRunning:   s.ProbeRunning,
		GeneratedAt:    formatTime(now),
	}
	if s.HasProbe {
		v := FromProbeResult(s.Probe)
		resp.LastProbe = &v
	}
	return resp
}

func FromProbeResult(r probe.Result) ProbeView {
	v := ProbeView{
		Status:           r.Status.String(),
		Reason:           r.Reason,
		BytesTransferred: r.BytesTransferred,
		At:               formatTime(r.At),
		Final:            r.Terminal(),
	}
	if r.Kind != probe.KindNone {
		v.Kind = r.Kind.String()
	}
	return v
}

func FromSessions(sessions []journal.Session) []SessionView {
	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, SessionView{
			ID:               s.ID,
			StartedAt:        formatTime(s.StartedAt),
			EndedAt:          formatTime(s.EndedAt),
			Outcome:          s.Outcome,
			Kind:             s.Kind,
			Reason:           s.Reason,
			BytesTransferred: s.BytesTransferred,
		})
	}
	return views
}
