// Package graph holds the operation graph built from a modeling script and
// the resolver that turns it into kernel solids.
//
// The graph is a stack of levels: level L holds every node created while
// the script's nesting depth was L. Nodes name their parent by (Kind, ID)
// instead of the parent holding a child list, so a container's children are
// found by scanning. That lets the graph be built in one linear pass even
// though a container's children are only known once its block closes.
package graph
