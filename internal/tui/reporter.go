package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/physics"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// Events carried by ProgressMsg.
const (
	EventProgress  = "progress"
	EventNodeEnter = "node_enter"
	EventNodeExit  = "node_exit"
	EventFreeEnter = "free_enter"
	EventFreeExit  = "free_exit"
)

// ProgressMsg is a snapshot of the particle in lab coordinates.
type ProgressMsg struct {
	Event       string
	Time        float64
	Regime      sim.Regime
	Node        int
	Interaction int
	Position    r3.Vec
	Momentum    r3.Vec
	Energy      float64
}

// DoneMsg ends the run.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

// Sender is implemented by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter forwards trajectory callbacks to a Sender. Progress is throttled
// to one message per interval; transitions always go through.
type Reporter struct {
	send     Sender
	particle lab.Particle
	every    time.Duration
	now      func() time.Time
	last     time.Time

	t          float64
	enterT     float64
	enterLocal float64
	snap       ProgressMsg
}

var _ sim.Reporter = (*Reporter)(nil)

func NewReporter(send Sender, particle lab.Particle, every time.Duration) *Reporter {
	return &Reporter{send: send, particle: particle, every: every, now: time.Now}
}

func (r *Reporter) emit(event string, force bool) {
	if !force {
		now := r.now()
		if now.Sub(r.last) < r.every {
			return
		}
		r.last = now
	}
	msg := r.snap
	msg.Event = event
	r.send.Send(msg)
}

func (r *Reporter) global(t float64, g lab.GlobalState) {
	r.t = t
	r.snap.Time = t
	r.snap.Regime = sim.Free
	r.snap.Position = g.Position.Narrow()
	r.snap.Momentum = g.Momentum
	r.snap.Energy = physics.KineticEnergy(r.particle, g.Momentum)
}

func (r *Reporter) OnNodeEnter(id int, node *lab.Node, localTime float64) error {
	r.enterT, r.enterLocal = r.t, localTime
	r.snap.Regime = sim.Laser
	r.snap.Node = node.ID()
	r.snap.Interaction = id
	r.emit(EventNodeEnter, true)
	return nil
}

func (r *Reporter) OnNodeProgress(_ int, node *lab.Node, localTime float64, s lab.LocalState, _ field.Sample) error {
	g := lab.ToGlobal(s, node)
	r.t = r.enterT + localTime - r.enterLocal
	r.snap.Time = r.t
	r.snap.Position = g.Position.Narrow()
	r.snap.Momentum = g.Momentum
	r.snap.Energy = physics.KineticEnergy(r.particle, g.Momentum)
	r.emit(EventProgress, false)
	return nil
}

func (r *Reporter) OnNodeExit(int, *lab.Node, float64) error {
	r.emit(EventNodeExit, true)
	return nil
}

func (r *Reporter) OnFreeEnter(t float64, g lab.GlobalState) error {
	r.global(t, g)
	r.emit(EventFreeEnter, true)
	return nil
}

func (r *Reporter) OnFreeProgress(t float64, g lab.GlobalState) error {
	r.global(t, g)
	r.emit(EventProgress, false)
	return nil
}

func (r *Reporter) OnFreeExit(t float64, g lab.GlobalState) error {
	r.global(t, g)
	r.emit(EventFreeExit, true)
	return nil
}
