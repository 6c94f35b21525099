package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

// selectNode returns the node whose influence sphere contains pos, or nil.
// Nodes are scanned in ascending id order.
func selectNode(l *lab.Lab, pos vec.Wide, radius float64, policy Selection) *lab.Node {
	var best *lab.Node
	bestDist := 0.0
	for _, n := range l.Nodes() {
		d := n.Distance(pos)
		if d > radius {
			continue
		}
		if policy == SelectFirst {
			return n
		}
		if best == nil || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// leaving reports whether a laser episode is over: the local clock has run
// past the window or the particle is outside the influence sphere.
func leaving(local lab.LocalState, localTime, halfDuration, radius float64) bool {
	if halfDuration > 0 && localTime >= halfDuration {
		return true
	}
	return r3.Norm(local.Position) > radius
}
