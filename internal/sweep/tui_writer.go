package sweep

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"netsim-sweep/internal/metrics"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type startMsg struct{ SweepInfo }
type runMsg struct{ RunResult }
type endMsg struct{ summary string }
type logMsg struct{ line string }

const (
	minLogLines  = 3
	tableReserve = 8
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TUIWriter renders sweep progress in a bubbletea program.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
	clampLoss  bool
}

// NewTUIWriter starts the program on the alternate screen. Quitting it
// interrupts the process so the sweep stops as with Ctrl-C.
func NewTUIWriter(clampLoss bool) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{}), clampLoss: clampLoss}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(clampLoss), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

func (w *TUIWriter) StartSweep(info SweepInfo) error {
	w.program.Send(startMsg{info})
	return nil
}

// WriteResult adds the run to the table and the log.
func (w *TUIWriter) WriteResult(r RunResult) error {
	w.program.Send(runMsg{r})
	line := fmt.Sprintf("[%03d] %s %s", r.Index, r.Point, r.Status)
	if r.Error != "" {
		line += ": " + r.Error
	} else if r.SkippedLines > 0 {
		line += fmt.Sprintf(" (%d lines skipped)", r.SkippedLines)
	}
	w.program.Send(logMsg{line: line})
	return nil
}

// EndSweep shows the best and worst points.
func (w *TUIWriter) EndSweep(res *Result) error {
	w.program.Send(endMsg{summary: renderSummary(res, w.clampLoss)})
	return nil
}

// LogWriter returns a writer that shows each written line in the log pane.
// Install it as the log handler output while the TUI owns the terminal.
func (w *TUIWriter) LogWriter() io.Writer { return tuiLog{w.program} }

type tuiLog struct{ p teaProgram }

func (l tuiLog) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		if line != "" {
			l.p.Send(logMsg{line: line})
		}
	}
	return len(b), nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

func renderSummary(res *Result, clamp bool) string {
	pct := func(v float64) float64 {
		if clamp {
			return metrics.ClampPercent(v)
		}
		return v
	}
	counts := res.Counts()
	lines := []string{fmt.Sprintf("finished: ok=%d timeout=%d failed=%d no_events=%d",
		counts[StatusOK], counts[StatusTimeout], counts[StatusFailed], counts[StatusNoEvents])}
	if bestT, bestL, ok := res.Best(); ok {
		worstT, worstL, _ := res.Worst()
		lines = append(lines,
			fmt.Sprintf("best throughput  %s  %.4f Mbps", bestT.Point, bestT.ThroughputMbps),
			fmt.Sprintf("worst throughput %s  %.4f Mbps", worstT.Point, worstT.ThroughputMbps),
			fmt.Sprintf("lowest loss      %s  %.2f %%", bestL.Point, pct(bestL.LossRatePct)),
			fmt.Sprintf("highest loss     %s  %.2f %%", worstL.Point, pct(worstL.LossRatePct)))
	} else {
		lines = append(lines, "no usable runs")
	}
	return strings.Join(lines, "\n")
}

type tuiModel struct {
	info       SweepInfo
	table      table.Model
	bar        progress.Model
	vp         viewport.Model
	rows       []table.Row
	logs       []string
	completed  int
	bad        int
	summary    string
	clampLoss  bool
	wrap       bool
	autoscroll bool
	width      int
	height     int
}

func newTUIModel(clampLoss bool) tuiModel {
	t := table.New(table.WithColumns(runColumns()), table.WithHeight(tableReserve))
	return tuiModel{
		table:      t,
		bar:        progress.New(progress.WithDefaultGradient()),
		vp:         viewport.New(0, minLogLines),
		clampLoss:  clampLoss,
		autoscroll: true,
	}
}

func runColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Point", Width: 28},
		{Title: "Status", Width: 9},
		{Title: "Mbps", Width: 10},
		{Title: "Lat ms", Width: 9},
		{Title: "Loss %", Width: 8},
		{Title: "PDR %", Width: 8},
		{Title: "Tx/Rx", Width: 11},
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(msg.Width-20, 10)
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.layout()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "a":
			m.autoscroll = !m.autoscroll
			m.refreshViewport()
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	case startMsg:
		m.info = msg.SweepInfo
		m.rows = nil
		m.completed, m.bad = 0, 0
		m.summary = ""
		m.table.SetRows(nil)
	case runMsg:
		m.completed++
		if !msg.OK() {
			m.bad++
		}
		m.rows = append(m.rows, m.row(msg.RunResult))
		m.table.SetRows(m.rows)
		if m.autoscroll {
			m.table.GotoBottom()
		}
	case logMsg:
		m.logs = append(m.logs, msg.line)
		m.refreshViewport()
	case endMsg:
		m.summary = msg.summary
		m.layout()
	}
	return m, nil
}

func (m tuiModel) row(r RunResult) table.Row {
	loss, pdr := r.LossRatePct, r.PDRPct
	if m.clampLoss {
		loss, pdr = metrics.ClampPercent(loss), metrics.ClampPercent(pdr)
	}
	return table.Row{
		fmt.Sprint(r.Index),
		r.Point.String(),
		string(r.Status),
		fmt.Sprintf("%.4f", r.ThroughputMbps),
		fmt.Sprintf("%.2f", r.MeanLatencyMs),
		fmt.Sprintf("%.2f", loss),
		fmt.Sprintf("%.2f", pdr),
		fmt.Sprintf("%d/%d", r.TxCount, r.RxCount),
	}
}

// layout splits the height between the run table and the log.
func (m *tuiModel) layout() {
	if m.height == 0 {
		return
	}
	fixed := 4 // title, progress, two dividers
	if m.summary != "" {
		fixed += lipgloss.Height(summaryStyle.Render(m.summary))
	}
	avail := max(m.height-fixed, minLogLines+2)
	logLines := max(avail/3, minLogLines)
	m.table.SetHeight(max(avail-logLines, 2))
	m.vp.Height = logLines
}

func (m *tuiModel) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) percent() float64 {
	if m.info.Points == 0 {
		return 0
	}
	return float64(m.completed) / float64(m.info.Points)
}

func (m tuiModel) View() string {
	title := titleStyle.Render("sweep " + m.info.Name)
	counts := fmt.Sprintf(" %d/%d", m.completed, m.info.Points)
	if m.bad > 0 {
		counts += failStyle.Render(fmt.Sprintf("  %d unusable", m.bad))
	} else if m.completed > 0 {
		counts += okStyle.Render("  all usable")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, dimStyle.Render(counts))
	divider := dimStyle.Render(strings.Repeat("─", max(m.width, 1)))
	sections := []string{
		header,
		m.bar.ViewAs(m.percent()),
		m.table.View(),
		divider,
		m.vp.View(),
	}
	if m.summary != "" {
		sections = append(sections, summaryStyle.Render(m.summary))
	}
	sections = append(sections, divider, warnStyle.Render("q quit  w wrap  a autoscroll  ↑/↓ scroll runs"))
	return strings.Join(sections, "\n")
}
