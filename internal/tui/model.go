// Package tui is the bubbletea front end for a chat session. Finished
// messages are printed above the program; the view holds only the
// progress line and the topic input.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ihavenoenemy/mathcast/internal/chat"
)

const helpText = "Enter a math topic. /save downloads the last video, /new starts over, /quit exits."

var stepLabels = map[chat.State]string{
	chat.StateGenerating: "Generating explanation and animation code...",
	chat.StateRendering:  "Rendering animation...",
	chat.StateAudio:      "Adding narration...",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Downloader fetches a rendered video. *chat.HTTPBackend implements it.
type Downloader interface {
	Download(ctx context.Context, videoPath string, w io.Writer) (int64, error)
}

type Config struct {
	Session    *chat.Session
	Downloader Downloader
	// Server prefixes video paths in printed messages.
	Server string
	// SaveDir receives /save downloads. Defaults to the working directory.
	SaveDir string
}

// TransitionMsg carries a session state change into the program. Send it
// from the session observer with (*tea.Program).Send.
type TransitionMsg chat.Transition

type turnDoneMsg struct {
	turn int
	msg  *chat.Message
	err  error
}

type savedMsg struct {
	name  string
	bytes int64
	err   error
}

type Model struct {
	ctx     context.Context
	cfg     Config
	input   textinput.Model
	spinner spinner.Model
	status  string
	notice  string
	// turn is bumped by /new so a dropped turn's result is not printed.
	turn     int
	busy     bool
	quitting bool
}

func NewModel(ctx context.Context, cfg Config) Model {
	if cfg.SaveDir == "" {
		cfg.SaveDir = "."
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")

	in := textinput.New()
	in.Placeholder = "e.g. the Fourier transform"
	in.Prompt = "> "
	in.CharLimit = 500
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{ctx: ctx, cfg: cfg, input: in, spinner: sp}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.Println(titleStyle.Render("mathcast chat")+" "+dimStyle.Render("("+m.cfg.Server+")")),
		tea.Println(dimStyle.Render(helpText)),
		textinput.Blink,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case TransitionMsg:
		m.status = stepLabels[msg.To]
		return m, nil

	case turnDoneMsg:
		if msg.turn != m.turn {
			return m, nil
		}
		m.busy = false
		m.status = ""
		if errors.Is(msg.err, chat.ErrBusy) {
			m.notice = "Still working on the previous topic."
		}
		if msg.msg == nil {
			return m, nil
		}
		return m, tea.Println(m.formatReply(*msg.msg))

	case savedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Save failed: %v", msg.err)
		} else {
			m.notice = fmt.Sprintf("Saved %s (%d bytes)", msg.name, msg.bytes)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	m.notice = ""

	switch line {
	case "":
		return m, nil
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/new":
		m.turn++
		m.busy = false
		m.status = ""
		// Reset notifies the observer, which sends to the program; it must
		// not run on the event loop.
		session := m.cfg.Session
		reset := func() tea.Msg {
			session.Reset()
			return nil
		}
		return m, tea.Batch(reset, tea.Println(dimStyle.Render("Started a new chat.")))
	case "/save":
		return m, m.save()
	}

	if m.busy {
		m.notice = "Still working on the previous topic."
		return m, nil
	}
	m.busy = true
	m.status = stepLabels[chat.StateGenerating]

	session, ctx, turn := m.cfg.Session, m.ctx, m.turn
	run := func() tea.Msg {
		reply, err := session.Submit(ctx, line)
		return turnDoneMsg{turn: turn, msg: reply, err: err}
	}
	return m, tea.Batch(tea.Println(userStyle.Render("> "+line)), m.spinner.Tick, run)
}

func (m Model) save() tea.Cmd {
	topic, videoPath, ok := m.cfg.Session.LastVideo()
	if !ok {
		return func() tea.Msg { return savedMsg{err: errors.New("no video yet")} }
	}
	if m.cfg.Downloader == nil {
		return func() tea.Msg { return savedMsg{err: errors.New("downloads unavailable")} }
	}
	ctx, dl := m.ctx, m.cfg.Downloader
	name := filepath.Join(m.cfg.SaveDir, chat.DownloadName(topic))
	return func() tea.Msg {
		n, err := download(ctx, dl, videoPath, name)
		return savedMsg{name: name, bytes: n, err: err}
	}
}

// download writes videoPath to name, removing a partial file on failure.
func download(ctx context.Context, dl Downloader, videoPath, name string) (int64, error) {
	f, err := os.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := dl.Download(ctx, videoPath, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return 0, err
	}
	return n, nil
}

func (m Model) formatReply(msg chat.Message) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(msg.Text)
	if msg.VideoPath != "" {
		fmt.Fprintf(&b, "\n\n%s %s%s", dimStyle.Render("Video:"), m.cfg.Server, msg.VideoPath)
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.busy {
		b.WriteString(m.spinner.View() + " " + m.status + "\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}
