// Package analysis builds the reference graph of a story and checks it for
// authoring mistakes: targets that do not exist, unlocks that promote
// nothing, variants nothing can ever select, and reference cycles.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// RefKind classifies a reference from one variant to another.
type RefKind string

const (
	RefUnlock  RefKind = "unlock"  // trigger target
	RefAction  RefKind = "action"  // active action target
	RefPending RefKind = "pending" // inactive action target, live once promoted
)

// Reference is one target found in a variant's markup.
type Reference struct {
	Kind        RefKind `json:"kind"`
	FromID      string  `json:"from_id"`
	FromVariant int     `json:"from_variant"`
	Token       string  `json:"token"`
	Flag        string  `json:"flag,omitempty"`
	ToID        string  `json:"to_id"`
	ToVariant   int     `json:"to_variant"`
	UnlockLabel string  `json:"unlock_label,omitempty"`
}

// VariantKey names a node of the reference graph.
func VariantKey(timeID string, variant int) string {
	return fmt.Sprintf("%s:%d", timeID, variant)
}

// ReferenceGraph is a directed graph with one node per entry variant and one
// edge per resolvable reference.
type ReferenceGraph struct {
	store     *timeline.Store
	g         *simple.DirectedGraph
	keyToNode map[string]int64
	nodeToKey map[int64]string
	refs      []Reference
	tokens    int
	grants    map[string][]string // flag -> variants whose tokens grant it
	selfLoops []string
	undecoded []Finding
}

// NewReferenceGraph compiles every variant of every entry in store.
func NewReferenceGraph(store *timeline.Store) *ReferenceGraph {
	rg := &ReferenceGraph{
		store:     store,
		g:         simple.NewDirectedGraph(),
		keyToNode: make(map[string]int64),
		nodeToKey: make(map[int64]string),
		grants:    make(map[string][]string),
	}

	// 1. Nodes
	for _, e := range store.Entries() {
		for v := range e.Scripts {
			n := rg.g.NewNode()
			rg.g.AddNode(n)
			key := VariantKey(e.TimeID, v)
			rg.keyToNode[key] = n.ID()
			rg.nodeToKey[n.ID()] = key
		}
	}

	// 2. References and edges
	for _, e := range store.Entries() {
		for v, script := range e.Scripts {
			from := VariantKey(e.TimeID, v)
			for _, tok := range markup.Compile(script).Segments {
				if !tok.Interactive() && tok.Kind != markup.InactiveAction {
					continue
				}
				rg.tokens++
				for _, item := range tok.Undecodable {
					rg.undecoded = append(rg.undecoded, Finding{
						Severity: SeverityError, Kind: KindUndecodableTarget, TimeID: e.TimeID, Variant: v,
						Message: fmt.Sprintf("token %q: target %q has a variant index that does not fit an int", tok.Label, item),
					})
				}
				if tok.Flag != "" {
					rg.grants[tok.Flag] = append(rg.grants[tok.Flag], from)
				}
				for _, u := range tok.Unlocks {
					rg.addRef(Reference{Kind: RefUnlock, FromID: e.TimeID, FromVariant: v, Token: tok.Label, Flag: tok.Flag,
						ToID: u.TimeID, ToVariant: u.Variant, UnlockLabel: u.Label})
				}
				kind := RefAction
				if tok.Kind == markup.InactiveAction {
					kind = RefPending
				}
				for _, a := range tok.Actions {
					rg.addRef(Reference{Kind: kind, FromID: e.TimeID, FromVariant: v, Token: tok.Label, Flag: tok.Flag,
						ToID: a.TimeID, ToVariant: a.Variant})
				}
			}
		}
	}
	return rg
}

func (rg *ReferenceGraph) addRef(ref Reference) {
	rg.refs = append(rg.refs, ref)
	u, ok := rg.keyToNode[VariantKey(ref.FromID, ref.FromVariant)]
	if !ok {
		return
	}
	v, ok := rg.keyToNode[VariantKey(ref.ToID, ref.ToVariant)]
	if !ok {
		return
	}
	if u == v {
		// simple graphs reject self edges; remember them as one-node cycles
		rg.selfLoops = append(rg.selfLoops, rg.nodeToKey[u])
		return
	}
	rg.g.SetEdge(rg.g.NewEdge(rg.g.Node(u), rg.g.Node(v)))
}

// References returns every target found, resolvable or not, in story order.
func (rg *ReferenceGraph) References() []Reference {
	return rg.refs
}

// NodeCount returns the number of variants.
func (rg *ReferenceGraph) NodeCount() int {
	return rg.g.Nodes().Len()
}

// EdgeCount returns the number of distinct resolvable references.
func (rg *ReferenceGraph) EdgeCount() int {
	return rg.g.Edges().Len()
}

// TokenCount returns the number of interactive and inactive tokens.
func (rg *ReferenceGraph) TokenCount() int {
	return rg.tokens
}

// FlagSources returns the variants whose tokens grant flag.
func (rg *ReferenceGraph) FlagSources(flag string) []string {
	return rg.grants[flag]
}

// OutDegree returns how many distinct variants key references.
func (rg *ReferenceGraph) OutDegree(key string) int {
	id, ok := rg.keyToNode[key]
	if !ok {
		return 0
	}
	return rg.g.From(id).Len()
}

// InDegree returns how many distinct variants reference key.
func (rg *ReferenceGraph) InDegree(key string) int {
	id, ok := rg.keyToNode[key]
	if !ok {
		return 0
	}
	return rg.g.To(id).Len()
}

// Influence ranks variants by PageRank over the reference graph.
func (rg *ReferenceGraph) Influence() map[string]float64 {
	out := make(map[string]float64)
	// PageRank panics on an empty graph
	if rg.NodeCount() == 0 {
		return out
	}
	for id, score := range network.PageRank(rg.g, 0.85, 1e-6) {
		out[rg.nodeToKey[id]] = score
	}
	return out
}

// Cycles returns reference cycles, each as a closed list of variant keys.
// Search stops after maxCycles cycles or when timeout passes.
func (rg *ReferenceGraph) Cycles(maxCycles int, timeout time.Duration) (cycles [][]string, truncated bool) {
	for _, key := range rg.selfLoops {
		cycles = append(cycles, []string{key, key})
	}

	hasCycles := false
	for _, scc := range topo.TarjanSCC(rg.g) {
		if len(scc) > 1 {
			hasCycles = true
			break
		}
	}
	if !hasCycles {
		return cycles, false
	}

	done := make(chan [][]graph.Node, 1)
	go func() {
		done <- topo.DirectedCyclesIn(rg.g)
	}()

	select {
	case found := <-done:
		for _, cycle := range found {
			if maxCycles > 0 && len(cycles) >= maxCycles {
				truncated = true
				break
			}
			keys := make([]string, 0, len(cycle))
			for _, n := range cycle {
				keys = append(keys, rg.nodeToKey[n.ID()])
			}
			cycles = append(cycles, keys)
		}
	case <-time.After(timeout):
		truncated = true
	}
	sort.SliceStable(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, truncated
}

// Order returns variant keys so that every variant comes before the variants
// it references. ok is false when the graph has a cycle.
func (rg *ReferenceGraph) Order() (keys []string, ok bool) {
	sorted, err := topo.Sort(rg.g)
	if err != nil {
		return nil, false
	}
	for _, n := range sorted {
		keys = append(keys, rg.nodeToKey[n.ID()])
	}
	return keys, true
}
