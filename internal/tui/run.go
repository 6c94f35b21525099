package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// RefreshInterval bounds how often progress reaches the screen.
const RefreshInterval = 50 * time.Millisecond

// Job runs one simulation with the given reporter attached.
type Job func(ctx context.Context, rep sim.Reporter) (*sim.Result, error)

// Run shows live progress of job until it finishes or the user quits. The
// job's own result and error are returned.
func Run(ctx context.Context, label string, duration float64, particle lab.Particle, job Job, opts ...tea.ProgramOption) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(label, duration, cancel), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	type outcome struct {
		res *sim.Result
		err error
	}
	out := make(chan outcome, 1)
	go func() {
		res, err := job(ctx, NewReporter(p, particle, RefreshInterval))
		p.Send(DoneMsg{Result: res, Err: err})
		out <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-out
		return nil, err
	}
	cancel()
	o := <-out
	return o.res, o.err
}

// Headless returns options that render to out and read no keys.
func Headless(out io.Writer) []tea.ProgramOption {
	return []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(out), tea.WithoutSignalHandler()}
}
