// Package lab models the laboratory: the particle, its global and local
// phase-space states, and the laser interaction nodes with their rotated
// reference frames.
//
// A [Node] is immutable once built and may be shared between concurrent runs.
// [ToLocal] and [ToGlobal] move a state across a node's frame boundary; the
// global position is carried in extended precision ([vec.Wide]) and narrowed
// to float64 only after the node origin has been subtracted.
package lab
