package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/i18n"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))  // cyan
	fileStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))            // pink
	successStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))  // green
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))            // gray
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))            // white
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))            // gray
	errStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")) // red
	transcriptStyle = lipgloss.NewStyle().
			Width(72).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))
)

// transcribeState collects session events for the TUI.
type transcribeState struct {
	mu        sync.RWMutex
	status    string
	text      string
	final     string
	errMsg    string
	saved     bool
	done      bool
	startTime time.Time
	endTime   time.Time
}

func newTranscribeState() *transcribeState {
	return &transcribeState{startTime: time.Now()}
}

// apply is the session observer.
func (s *transcribeState) apply(e session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case session.EventStatus:
		s.status = e.Message
	case session.EventPartial:
		s.text = e.Text
	case session.EventFinal:
		s.text = e.Text
		s.final = e.Message
	case session.EventError:
		s.errMsg = e.Message
	}
}

// finish marks the run as over once the transcript is written or the
// session has failed.
func (s *transcribeState) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.saved = err == nil
	s.endTime = time.Now()
	if err != nil && s.errMsg == "" {
		s.errMsg = err.Error()
	}
}

type stateSnapshot struct {
	status, text, final, errMsg string
	saved, done                 bool
	elapsed                     time.Duration
}

func (s *transcribeState) snapshot() stateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	end := s.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return stateSnapshot{
		status:  s.status,
		text:    s.text,
		final:   s.final,
		errMsg:  s.errMsg,
		saved:   s.saved,
		done:    s.done,
		elapsed: end.Sub(s.startTime),
	}
}

type tuiHeader struct {
	filename string
	backend  string
	model    string
	output   string
}

// tickMsg triggers UI updates
type tickMsg time.Time

type transcribeModel struct {
	spinner spinner.Model
	header  tuiHeader
	state   *transcribeState
	t       *i18n.Translations
	cancel  context.CancelFunc
}

func newTranscribeModel(header tuiHeader, state *transcribeState, t *i18n.Translations, cancel context.CancelFunc) transcribeModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return transcribeModel{
		spinner: s,
		header:  header,
		state:   state,
		t:       t,
		cancel:  cancel,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m transcribeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m transcribeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state.snapshot().done {
			return m, tea.Quit
		}
		return m, tickCmd()
	}

	return m, nil
}

func (m transcribeModel) View() string {
	snap := m.state.snapshot()

	var s string
	s += "\n"

	switch {
	case snap.done && snap.errMsg != "":
		s += fmt.Sprintf("  %s %s\n", errStyle.Render("✗"), snap.errMsg)
	case snap.done:
		s += fmt.Sprintf("  %s %s\n", successStyle.Render("✓"), titleStyle.Render(snap.final))
	default:
		status := snap.status
		if status == "" {
			status = m.t.Status.Processing
		}
		s += fmt.Sprintf("  %s %s\n", m.spinner.View(), titleStyle.Render(status))
	}

	s += fmt.Sprintf("  %s %s\n", labelStyle.Render("File:"), fileStyle.Render(m.header.filename))
	s += fmt.Sprintf("  %s %s  %s %s\n",
		labelStyle.Render(m.t.CLI.Backend+":"),
		valueStyle.Render(m.header.backend),
		labelStyle.Render(m.t.CLI.Model+":"),
		valueStyle.Render(m.header.model),
	)

	if snap.text != "" {
		s += "\n" + indent(transcriptStyle.Render(snap.text)) + "\n"
	}

	s += "\n"
	s += fmt.Sprintf("  %s %s\n", labelStyle.Render(m.t.CLI.Elapsed+":"), valueStyle.Render(formatElapsed(snap.elapsed)))
	if snap.saved {
		s += fmt.Sprintf("  %s %s\n", labelStyle.Render(m.t.CLI.Saved+":"), fileStyle.Render(m.header.output))
	}
	if !snap.done {
		s += helpStyle.Render("  "+m.t.CLI.QuitHint) + "\n"
	}
	return s
}

func indent(block string) string {
	return lipgloss.NewStyle().PaddingLeft(2).Render(block)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// runTranscribeTUI drives the session in the background while the TUI
// renders its events.
func runTranscribeTUI(ctx context.Context, sess *session.Session, state *transcribeState, upload session.Upload, header tuiHeader, t *i18n.Translations) (*transcriber.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// session logs would tear the TUI
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	type outcome struct {
		result *transcriber.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := runSession(ctx, sess, upload, header.output)
		state.finish(err)
		done <- outcome{res, err}
	}()

	p := tea.NewProgram(newTranscribeModel(header, state, t, cancel))
	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}

	o := <-done
	return o.result, o.err
}
