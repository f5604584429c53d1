package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/warpcall/internal/call"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Audio key.Binding
	Video key.Binding
	Leave key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Audio, k.Video, k.Leave}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Audio: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mute/unmute")),
	Video: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "camera on/off")),
	Leave: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "leave")),
}

type snapshotMsg call.Snapshot

// CallEndedMsg stops the view once the call has returned.
type CallEndedMsg struct{ Err error }

// CallModel is the live call view. It renders snapshots from the call and
// turns key presses into call commands.
type CallModel struct {
	snapshots <-chan call.Snapshot
	commands  chan<- call.Command

	spinner spinner.Model
	help    help.Model

	snap     call.Snapshot
	ready    bool
	quitting bool
	err      error
}

// NewCallModel creates the view. commands should be buffered; a command is
// dropped rather than blocking the view when the buffer is full.
func NewCallModel(snapshots <-chan call.Snapshot, commands chan<- call.Command) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		snapshots: snapshots,
		commands:  commands,
		spinner:   s,
		help:      help.New(),
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *CallModel) listen() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.snapshots
		if !ok {
			return CallEndedMsg{}
		}
		return snapshotMsg(s)
	}
}

func (m *CallModel) send(c call.Command) {
	select {
	case m.commands <- c:
	default:
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Leave):
			m.send(call.Leave)
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Audio):
			m.send(call.ToggleAudio)
		case key.Matches(msg, keys.Video):
			m.send(call.ToggleVideo)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.snap = call.Snapshot(msg)
		m.ready = true
		return m, m.listen()

	case CallEndedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if !m.ready {
		fmt.Fprintf(&b, "\n%s Joining room...\n", m.spinner.View())
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s %s  %s\n",
		IconRoom, TitleStyle.Render("Room "+m.snap.RoomID),
		MutedStyle.Render("you are "+m.snap.SelfID))
	fmt.Fprintf(&b, "%s %s   %s %s\n\n",
		micIcon(m.snap.Audio), onOff(m.snap.Audio),
		camIcon(m.snap.Video), onOff(m.snap.Video))

	if len(m.snap.Participants) == 0 {
		fmt.Fprintf(&b, "%s Waiting for others to join...\n", m.spinner.View())
	} else {
		b.WriteString(ParticipantsView(m.snap.Participants))
		b.WriteString("\n")
	}

	if m.snap.Notice != "" {
		b.WriteString(MutedStyle.Render(m.snap.Notice) + "\n")
	}
	if m.snap.Err != nil {
		b.WriteString(ErrorStyle.Render(IconError+" "+m.snap.Err.Error()) + "\n")
	}

	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

// ParticipantsView renders the roster table.
func ParticipantsView(participants []call.Participant) string {
	rows := make([][]string, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, []string{
			IconPeer + " " + p.ID,
			micIcon(p.Audio),
			camIcon(p.Video),
			StatusStyle(p.Status).Render(p.Status.String()),
			p.State.String(),
		})
	}
	return newTable([]string{"Participant", "Audio", "Video", "Status", "Negotiation"}, rows).Render()
}

func micIcon(on bool) string {
	if on {
		return IconMicOn
	}
	return IconMicOff
}

func camIcon(on bool) string {
	if on {
		return IconCamOn
	}
	return IconCamOff
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return MutedStyle.Render("off")
}
