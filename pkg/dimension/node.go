package dimension

import "github.com/gridcube/gridcube/pkg/gridcube"

// memberNode adapts a member id to gonum's graph.Node interface so the
// hierarchy can be held in a gonum WeightedDirectedGraph.
type memberNode gridcube.MemberID

func (n memberNode) ID() int64 { return int64(n) }
