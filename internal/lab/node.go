package lab

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

// snapEps is the magnitude below which rotation entries are set to zero.
const snapEps = 1e-15

// Node is a laser interaction site. Its local z axis points along the polar
// angle theta and azimuth phi of the lab frame; x and y are carried rigidly
// by the same offset, so theta = phi = 0 gives the lab axes.
type Node struct {
	id       int
	position vec.Wide
	theta    float64
	phi      float64
	axes     [3]r3.Vec // rows of the global->local rotation
}

func NewNode(id int, position vec.Wide, theta, phi float64) (*Node, error) {
	if id < 0 {
		return nil, dynamo.Configf("node id must be non-negative, got %d", id)
	}
	if !position.IsFinite() {
		return nil, dynamo.Configf("node %d: position must be finite", id)
	}
	for _, a := range [2]float64{theta, phi} {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, dynamo.Configf("node %d: orientation angles must be finite", id)
		}
	}

	n := &Node{id: id, position: position, theta: theta, phi: phi}
	n.axes[0] = vec.SnapZero(vec.FromSpherical(1, theta+math.Pi/2, phi), snapEps)
	n.axes[1] = vec.SnapZero(vec.FromSpherical(1, math.Pi/2, phi+math.Pi/2), snapEps)
	n.axes[2] = vec.SnapZero(vec.FromSpherical(1, theta, phi), snapEps)
	return n, nil
}

func (n *Node) ID() int            { return n.id }
func (n *Node) Position() vec.Wide { return n.position }
func (n *Node) Theta() float64     { return n.theta }
func (n *Node) Phi() float64       { return n.phi }

// Axes returns the local x, y and z unit vectors in lab coordinates.
func (n *Node) Axes() (x, y, z r3.Vec) {
	return n.axes[0], n.axes[1], n.axes[2]
}

// Rotation returns the 3x3 global->local rotation. Rows are the local axes.
func (n *Node) Rotation() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i, a := range n.axes {
		m.SetRow(i, []float64{a.X, a.Y, a.Z})
	}
	return m
}

// rotate takes a lab-frame vector into the node frame.
func (n *Node) rotate(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: r3.Dot(n.axes[0], v),
		Y: r3.Dot(n.axes[1], v),
		Z: r3.Dot(n.axes[2], v),
	}
}

// unrotate is the transpose of rotate.
func (n *Node) unrotate(v r3.Vec) r3.Vec {
	out := r3.Scale(v.X, n.axes[0])
	out = r3.Add(out, r3.Scale(v.Y, n.axes[1]))
	return r3.Add(out, r3.Scale(v.Z, n.axes[2]))
}

// Distance returns the lab-frame distance between p and the node origin.
func (n *Node) Distance(p vec.Wide) float64 {
	return p.Distance(n.position)
}

// Lab is the immutable set of nodes, ordered by ascending ID.
type Lab struct {
	nodes []*Node
	byID  map[int]*Node
}

func NewLab(nodes ...*Node) (*Lab, error) {
	l := &Lab{
		nodes: make([]*Node, 0, len(nodes)),
		byID:  make(map[int]*Node, len(nodes)),
	}
	for _, n := range nodes {
		if n == nil {
			return nil, dynamo.Configf("nil node")
		}
		if _, dup := l.byID[n.id]; dup {
			return nil, dynamo.Configf("duplicate node id %d", n.id)
		}
		l.byID[n.id] = n
		l.nodes = append(l.nodes, n)
	}
	sort.Slice(l.nodes, func(i, j int) bool { return l.nodes[i].id < l.nodes[j].id })
	return l, nil
}

// Nodes returns the nodes in ascending ID order. The slice must not be modified.
func (l *Lab) Nodes() []*Node {
	return l.nodes
}

func (l *Lab) Node(id int) (*Node, bool) {
	n, ok := l.byID[id]
	return n, ok
}

func (l *Lab) Len() int {
	return len(l.nodes)
}
