package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BioHazard786/warpcall/internal/call"
	"github.com/BioHazard786/warpcall/internal/negotiation"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderCallSummary writes the end-of-call table: one row per remote
// participant the call negotiated with.
func RenderCallSummary(w io.Writer, s call.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle("📊 Call Summary")

	t.AppendHeader(table.Row{"Participant", "Role", "Negotiation", "Status", "Candidates", "Tracks"})
	for _, st := range s.Sessions {
		t.AppendRow(table.Row{
			st.Peer,
			st.Role.String(),
			st.State.String(),
			st.Status.String(),
			fmt.Sprintf("%d applied, %d queued", st.CandidatesApplied, st.CandidatesQueued),
			trackKinds(st.Tracks),
		})
	}
	if len(s.Sessions) == 0 {
		t.AppendRow(table.Row{"-", "-", "-", "-", "-", "-"})
	}

	t.AppendFooter(table.Row{"Room " + s.RoomID, "", "", "", "Duration", s.Duration.Round(time.Second).String()})
	t.Render()
}

func trackKinds(tracks []negotiation.TrackInfo) string {
	if len(tracks) == 0 {
		return "-"
	}
	kinds := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		kinds = append(kinds, tr.Kind)
	}
	return strings.Join(kinds, ", ")
}
