package lab

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

// StateDim is the length of a packed phase-space state.
const StateDim = 6

// GlobalState is the particle in the lab frame.
type GlobalState struct {
	Position vec.Wide
	Momentum r3.Vec
}

func (g GlobalState) IsValid() bool {
	return g.Position.IsFinite() && vec.IsFiniteVec(g.Momentum)
}

func (g GlobalState) String() string {
	return fmt.Sprintf("x=%s p=(%g, %g, %g)", g.Position, g.Momentum.X, g.Momentum.Y, g.Momentum.Z)
}

// LocalState is the particle in a node frame, or a displacement relative to
// a reference point during free flight.
type LocalState struct {
	Position r3.Vec
	Momentum r3.Vec
}

func (l LocalState) IsValid() bool {
	return vec.IsFiniteVec(l.Position) && vec.IsFiniteVec(l.Momentum)
}

// Pack writes l into dst as [x y z px py pz], allocating when dst is short.
func (l LocalState) Pack(dst dynamo.State) dynamo.State {
	if len(dst) < StateDim {
		dst = make(dynamo.State, StateDim)
	}
	vec.Put(dst[0:3], l.Position)
	vec.Put(dst[3:6], l.Momentum)
	return dst
}

func Unpack(s dynamo.State) LocalState {
	return LocalState{
		Position: vec.FromSlice(s[0:3]),
		Momentum: vec.FromSlice(s[3:6]),
	}
}
