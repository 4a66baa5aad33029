package controller

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "tbench.dev/pkg/tbench/internal/model"
)

// recentSteps is how many step lines the monitor keeps on screen.
const recentSteps = 12

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	rewardStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// TUI implements UI using Bubble Tea for an interactive episode monitor.
type TUI struct {
	output  io.Writer
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI writing to output.
func NewTUI(output io.Writer) *TUI {
	return &TUI{
		output: output,
		done:   make(chan struct{}),
	}
}

// Start launches the monitor program in the background.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := StartConfig{}
	for _, option := range options {
		option(&cfg)
	}

	p.program = tea.NewProgram(newEpisodeModel(cfg), tea.WithOutput(p.output))

	go func() {
		defer close(p.done)

		if _, err := p.program.Run(); err != nil {
			fmt.Fprintf(p.output, "monitor error: %v\n", err)
		}
	}()

	return nil
}

// Close asks the monitor to quit.
func (p *TUI) Close(_ context.Context) {
	if p.program != nil {
		p.program.Quit()
	}
}

// Wait blocks until the monitor exits (episode done and user pressed a key,
// or q/ctrl+c).
func (p *TUI) Wait(ctx context.Context) {
	if p.program == nil {
		return
	}

	select {
	case <-ctx.Done():
	case <-p.done:
	}
}

// DisplayStep feeds one step result to the monitor.
func (p *TUI) DisplayStep(ctx context.Context, action m.Action, result m.StepResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.program != nil {
		p.program.Send(stepMsg{action: action, result: result})
	}

	return nil
}

// DisplayEpisodeSummary marks the episode terminal on the monitor.
func (p *TUI) DisplayEpisodeSummary(ctx context.Context, state m.EpisodeState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.program != nil {
		p.program.Send(summaryMsg{state: state})
	}

	return nil
}

// DisplayIntegrityReport prints findings directly; integrity checks run
// outside the episode loop the monitor renders.
func (p *TUI) DisplayIntegrityReport(ctx context.Context, report m.IntegrityReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if report.Clean() {
		fmt.Fprintln(p.output, okStyle.Render("fixture inventory verified: no findings"))
		return nil
	}

	for _, path := range report.MissingFiles {
		fmt.Fprintln(p.output, errStyle.Render("missing: "+string(path)))
	}

	for _, path := range report.UndersizedFiles {
		fmt.Fprintln(p.output, errStyle.Render("undersized: "+string(path)))
	}

	for _, path := range report.ChecksumMismatches {
		fmt.Fprintln(p.output, errStyle.Render("checksum mismatch: "+string(path)))
	}

	return nil
}

type stepMsg struct {
	action m.Action
	result m.StepResult
}

type summaryMsg struct {
	state m.EpisodeState
}

type stepLine struct {
	text   string
	failed bool
}

// episodeModel is the Bubble Tea model behind the monitor.
type episodeModel struct {
	cfg      StartConfig
	spin     spinner.Model
	steps    []stepLine
	step     int
	maxSteps int
	passRate float64
	reward   float64
	done     bool
	quitting bool
}

func newEpisodeModel(cfg StartConfig) episodeModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return episodeModel{
		cfg:      cfg,
		spin:     spin,
		maxSteps: cfg.maxSteps,
	}
}

func (em episodeModel) Init() tea.Cmd {
	return em.spin.Tick
}

func (em episodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			em.quitting = true
			return em, tea.Quit
		default:
			if em.done {
				em.quitting = true
				return em, tea.Quit
			}
		}

		return em, nil

	case stepMsg:
		em.step = msg.result.Info.Step
		em.maxSteps = msg.result.Info.MaxSteps
		em.passRate = msg.result.Info.PassRate
		em.reward = msg.result.Reward
		em.steps = append(em.steps, renderStepLine(msg))

		if len(em.steps) > recentSteps {
			em.steps = em.steps[len(em.steps)-recentSteps:]
		}

		return em, nil

	case summaryMsg:
		em.done = true
		em.step = msg.state.StepCount
		em.maxSteps = msg.state.MaxSteps

		if msg.state.LastSummary != nil {
			em.passRate = msg.state.LastSummary.PassRate
		}

		return em, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		em.spin, cmd = em.spin.Update(msg)

		return em, cmd
	}

	return em, nil
}

func (em episodeModel) View() string {
	if em.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("tbench episode monitor"))
	b.WriteString("\n")

	if em.cfg.workspace != "" {
		b.WriteString(labelStyle.Render("workspace: " + em.cfg.workspace))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n",
		labelStyle.Render("step"),
		fmt.Sprintf("%d/%d", em.step, em.maxSteps),
		labelStyle.Render("pass rate"),
		fmt.Sprintf("%.3f", em.passRate),
		labelStyle.Render("reward"),
		rewardStyle.Render(fmt.Sprintf("%+.3f", em.reward)))

	b.WriteString("\n")

	for _, line := range em.steps {
		if line.failed {
			b.WriteString(errStyle.Render(line.text))
		} else {
			b.WriteString(line.text)
		}

		b.WriteString("\n")
	}

	b.WriteString("\n")

	if em.done {
		b.WriteString(okStyle.Render("episode done. press any key to exit"))
	} else {
		b.WriteString(em.spin.View())
		b.WriteString(labelStyle.Render(" waiting for next action (q to quit)"))
	}

	b.WriteString("\n")

	return b.String()
}

func renderStepLine(msg stepMsg) stepLine {
	target := string(msg.action.File)
	if msg.action.Type == m.ActionRunCommand {
		target = msg.action.Command
	}

	text := fmt.Sprintf("%3d  %-12s %-32s reward=%+.3f", msg.result.Info.Step,
		string(msg.action.Type), target, msg.result.Reward)

	if msg.result.Info.Error != "" {
		return stepLine{text: text + "  " + msg.result.Info.Error, failed: true}
	}

	return stepLine{text: text}
}
