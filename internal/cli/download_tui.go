package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
)

// downloadState is shared between the download goroutine and the TUI.
type downloadState struct {
	mu         sync.RWMutex
	downloaded int64
	total      int64
	done       bool
	err        error
	startTime  time.Time
}

func (s *downloadState) update(downloaded, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloaded = downloaded
	s.total = total
}

func (s *downloadState) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.err = err
}

func (s *downloadState) get() (downloaded, total int64, done bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.downloaded, s.total, s.done, s.err
}

type downloadModel struct {
	progress progress.Model
	name     string
	state    *downloadState
	cancel   context.CancelFunc
}

func (m downloadModel) Init() tea.Cmd {
	return tickCmd()
}

func (m downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		downloaded, total, done, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		cmds := []tea.Cmd{tickCmd()}
		if total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(downloaded)/float64(total)))
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m downloadModel) View() string {
	downloaded, total, done, err := m.state.get()
	if err != nil {
		return fmt.Sprintf("\n  %s %v\n\n", errStyle.Render("✗"), err)
	}
	if done {
		return fmt.Sprintf("\n  %s %s\n\n", successStyle.Render("✓"), titleStyle.Render(m.name))
	}

	elapsed := time.Since(m.state.startTime)
	speed := ""
	if secs := elapsed.Seconds(); secs > 0 {
		speed = transcriber.FormatBytes(int64(float64(downloaded)/secs)) + "/s"
	}
	size := transcriber.FormatBytes(downloaded)
	if total > 0 {
		size += " / " + transcriber.FormatBytes(total)
	}

	return fmt.Sprintf("\n  %s\n\n  %s\n\n  %s  %s  %s\n  %s\n",
		titleStyle.Render(m.name),
		m.progress.View(),
		valueStyle.Render(size),
		labelStyle.Render("│"),
		valueStyle.Render(speed),
		helpStyle.Render("Press q to cancel"),
	)
}

func runDownloadTUI(ctx context.Context, mm *transcriber.ModelManager, tier, precision string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &downloadState{startTime: time.Now(), total: -1}

	var path string
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		var err error
		path, err = mm.Download(ctx, tier, precision, state.update)
		state.finish(err)
	}()

	model := downloadModel{
		progress: progress.New(
			progress.WithScaledGradient("#FF6B6B", "#4ECDC4"),
			progress.WithWidth(50),
		),
		name:   transcriber.ModelFileName(tier, precision),
		state:  state,
		cancel: cancel,
	}
	if _, err := tea.NewProgram(model).Run(); err != nil {
		cancel()
		<-finished
		return "", err
	}

	<-finished
	_, _, _, err := state.get()
	return path, err
}

// plainDownloadProgress prints a line at every tenth of the download.
func plainDownloadProgress(w io.Writer) transcriber.ProgressFunc {
	last := -1
	return func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		step := int(downloaded * 10 / total)
		if step == last {
			return
		}
		last = step
		fmt.Fprintf(w, "  %3d%%  %s / %s\n", step*10, transcriber.FormatBytes(downloaded), transcriber.FormatBytes(total))
	}
}
