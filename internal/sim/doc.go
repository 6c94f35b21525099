// Package sim drives one charged particle through a laboratory of laser
// interaction nodes.
//
// A run alternates between two regimes. In [Free] the particle flies
// ballistically in the lab frame and its extended-precision position is
// advanced once per output interval. In [Laser] it is integrated in the local
// frame of a single node under that node's field, on a local clock.
// Transitions are decided once per output interval on the updated state.
//
// Trajectory data leaves the simulator only through a [Reporter]. Callbacks
// are ordered: OnFreeEnter < OnFreeProgress* < OnFreeExit for every free
// segment and OnNodeEnter < OnNodeProgress* < OnNodeExit for every
// interaction episode. Episode ids start at 0 and increase by one per
// episode. A run that fails stops without any exit callback for the failing
// interval.
package sim
