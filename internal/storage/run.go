package storage

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// Trajectory events.
const (
	EventEnter    = "enter"
	EventProgress = "progress"
	EventExit     = "exit"
)

var (
	freeHeader  = []string{"event", "segment", "t", "x", "y", "z", "px", "py", "pz"}
	laserHeader = []string{"event", "interaction", "node", "local_time", "x", "y", "z", "px", "py", "pz", "ex", "ey", "ez", "bx", "by", "bz"}
)

// Run writes one trajectory to disk. It implements sim.Reporter.
type Run struct {
	dir  string
	meta RunMetadata

	files   []*os.File
	closers []io.Closer
	free    *csv.Writer
	laser   *csv.Writer
	segment int
}

var _ sim.Reporter = (*Run)(nil)

func (r *Run) ID() string        { return r.meta.ID }
func (r *Run) Dir() string       { return r.dir }
func (r *Run) Meta() RunMetadata { return r.meta }

func (r *Run) open(compress bool) error {
	var err error
	if r.free, err = r.create(freeFile, compress); err != nil {
		return err
	}
	if r.laser, err = r.create(laserFile, compress); err != nil {
		return err
	}
	if err := r.free.Write(freeHeader); err != nil {
		return err
	}
	return r.laser.Write(laserHeader)
}

func (r *Run) create(name string, compress bool) (*csv.Writer, error) {
	if compress {
		name += zstdExt
	}
	f, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return nil, err
	}
	r.files = append(r.files, f)
	if !compress {
		return csv.NewWriter(f), nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, enc)
	return csv.NewWriter(enc), nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r *Run) writeFree(event string, t float64, g lab.GlobalState) error {
	pos := g.Position.Strings()
	return r.free.Write([]string{
		event, strconv.Itoa(r.segment), format(t),
		pos[0], pos[1], pos[2],
		format(g.Momentum.X), format(g.Momentum.Y), format(g.Momentum.Z),
	})
}

func (r *Run) OnFreeEnter(t float64, g lab.GlobalState) error {
	return r.writeFree(EventEnter, t, g)
}

func (r *Run) OnFreeProgress(t float64, g lab.GlobalState) error {
	return r.writeFree(EventProgress, t, g)
}

func (r *Run) OnFreeExit(t float64, g lab.GlobalState) error {
	err := r.writeFree(EventExit, t, g)
	r.segment++
	return err
}

func (r *Run) OnNodeEnter(id int, node *lab.Node, localTime float64) error {
	return r.laser.Write(append([]string{EventEnter, strconv.Itoa(id), strconv.Itoa(node.ID()), format(localTime)},
		make([]string, len(laserHeader)-4)...))
}

func (r *Run) OnNodeProgress(id int, node *lab.Node, localTime float64, s lab.LocalState, f field.Sample) error {
	return r.laser.Write([]string{
		EventProgress, strconv.Itoa(id), strconv.Itoa(node.ID()), format(localTime),
		format(s.Position.X), format(s.Position.Y), format(s.Position.Z),
		format(s.Momentum.X), format(s.Momentum.Y), format(s.Momentum.Z),
		format(f.E.X), format(f.E.Y), format(f.E.Z),
		format(f.B.X), format(f.B.Y), format(f.B.Z),
	})
}

func (r *Run) OnNodeExit(id int, node *lab.Node, localTime float64) error {
	return r.laser.Write(append([]string{EventExit, strconv.Itoa(id), strconv.Itoa(node.ID()), format(localTime)},
		make([]string, len(laserHeader)-4)...))
}

// Finish flushes the trajectory and records the outcome. runErr is the
// error returned by the simulation, if any.
func (r *Run) Finish(res *sim.Result, runErr error, metrics map[string]float64) error {
	closeErr := r.close()

	r.meta.Status = StatusComplete
	if runErr != nil {
		r.meta.Status = StatusFailed
		r.meta.Error = runErr.Error()
	}
	if res != nil {
		r.meta.Result = res
		r.meta.FinalRegime = res.Regime.String()
		final := NewStateRecord(res.Final)
		r.meta.Final = &final
	}
	r.meta.Metrics = metrics

	return errors.Join(closeErr, writeMetadata(r.dir, &r.meta))
}

func (r *Run) close() error {
	var errs []error
	for _, w := range []*csv.Writer{r.free, r.laser} {
		if w == nil {
			continue
		}
		w.Flush()
		errs = append(errs, w.Error())
	}
	r.free, r.laser = nil, nil
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	for _, f := range r.files {
		errs = append(errs, f.Close())
	}
	r.files = nil
	return errors.Join(errs...)
}
