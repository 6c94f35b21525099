package lab

import "github.com/micrenda/circlesim-sub000/internal/vec"

// ToLocal expresses g in the frame of n. The origin is subtracted in
// extended precision before narrowing.
func ToLocal(g GlobalState, n *Node) LocalState {
	return LocalState{
		Position: n.rotate(g.Position.Sub(n.position)),
		Momentum: n.rotate(g.Momentum),
	}
}

// ToGlobal is the inverse of ToLocal.
func ToGlobal(l LocalState, n *Node) GlobalState {
	return GlobalState{
		Position: n.position.Add(vec.Widen(n.unrotate(l.Position))),
		Momentum: n.unrotate(l.Momentum),
	}
}
