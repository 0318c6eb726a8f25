package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows a live progress view with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *progressModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	tracker := NewProgressTracker()
	model := newProgressModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{cfg: cfg, tracker: tracker, model: model, done: make(chan struct{})}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Apply(event)
	r.send(refreshMsg{})
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.Apply(ProgressEvent{Stage: StageComplete})
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer. It waits briefly for the program to exit so
// the final view is flushed.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-time.After(200 * time.Millisecond):
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

// progressModel is the bubbletea model for corpus and warm-up progress.
type progressModel struct {
	tracker  *ProgressTracker
	title    string
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
}

func newProgressModel(tracker *ProgressTracker, title string) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	return &progressModel{
		tracker: tracker,
		title:   title,
		width:   80,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *progressModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	stats := m.tracker.Stats()
	lines := []string{m.styles.Header.Render(m.title), m.renderStages(stats.Stage)}

	if stats.Total == 0 {
		msg := stats.Message
		if msg == "" {
			msg = stats.Stage.String() + "..."
		}
		lines = append(lines, m.spinner.View()+" "+msg)
	} else {
		pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
		lines = append(lines, m.bar.ViewAs(stats.Progress)+"  "+pct)

		count := fmt.Sprintf("%d / %d chunks", stats.Current, stats.Total)
		if stats.Failed > 0 {
			count += "  " + m.styles.Error.Render(fmt.Sprintf("%d failed", stats.Failed))
		}
		lines = append(lines, m.styles.Label.Render(count))

		speed := fmt.Sprintf("%.1f chunks/s", stats.Rate)
		if stats.ETA > 0 {
			speed += "  •  ETA " + formatDuration(stats.ETA)
		}
		lines = append(lines, m.styles.Label.Render(speed))
	}

	if stats.Warnings > 0 || stats.Errors > 0 {
		lines = append(lines, m.styles.Warning.Render(
			fmt.Sprintf("%d warnings, %d errors", stats.Warnings, stats.Errors)))
	}
	lines = append(lines, m.styles.Dim.Render("q to quit"))
	return strings.Join(lines, "\n") + "\n"
}

func (m *progressModel) renderStages(current Stage) string {
	parts := make([]string, 0, 3)
	for _, s := range []Stage{StageLoading, StageIndexing, StageEmbedding} {
		switch {
		case s < current:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *progressModel) renderComplete() string {
	lines := []string{
		m.styles.Success.Render("✓ Complete"),
		"",
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Documents:"), m.stats.Documents),
		fmt.Sprintf("%s     %d", m.styles.Label.Render("Chunks:"), m.stats.Chunks),
	}
	if m.stats.Embedded > 0 || m.stats.Failed > 0 {
		lines = append(lines, fmt.Sprintf("%s   %d in %d batches", m.styles.Label.Render("Embedded:"), m.stats.Embedded, m.stats.Batches))
	}
	if m.stats.Failed > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d chunks failed", m.stats.Failed)))
	}
	lines = append(lines, fmt.Sprintf("%s   %s", m.styles.Label.Render("Duration:"), formatDuration(m.stats.Duration)))
	if m.stats.Provider.Name != "" {
		lines = append(lines, fmt.Sprintf("%s   %s (%s)", m.styles.Label.Render("Provider:"), m.stats.Provider.Name, m.stats.Provider.Model))
	}
	return m.styles.Panel.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

var _ Renderer = (*TUIRenderer)(nil)
