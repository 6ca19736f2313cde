package workflow

import "fmt"

// Graph is the compiled global workflow: every agent subgraph's nodes
// merged into one node table plus the static fallback edges between them.
// Node.Run's returned Command.Goto is consulted first; Graph's edges are
// the fallback when a node doesn't name an explicit successor.
type Graph struct {
	nodes     map[string]Node
	policies  map[string]NodePolicy
	edges     []Edge
	startNode string
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]Node), policies: make(map[string]NodePolicy)}
}

// Add registers a node with its policy. Registering the same node id twice
// is a graph-compile error.
func (g *Graph) Add(n Node, policy NodePolicy) error {
	if _, exists := g.nodes[n.ID()]; exists {
		return fmt.Errorf("%w: duplicate node id %q", ErrGraphCompiled, n.ID())
	}
	g.nodes[n.ID()] = n
	g.policies[n.ID()] = policy
	return nil
}

// StartAt declares the graph's entry node.
func (g *Graph) StartAt(nodeID string) {
	g.startNode = nodeID
}

// Connect adds a fallback edge, used when a node's Command doesn't name an
// explicit successor.
func (g *Graph) Connect(from, to string, when Predicate) {
	if when == nil {
		when = Always
	}
	g.edges = append(g.edges, Edge{From: from, To: to, When: when})
}

// Compile validates the graph is internally consistent: a start node is
// declared, every node and edge endpoint is known, and no node violates
// the thinness rule's structural proxy (a NodeFunc with a nil Fn).
func (g *Graph) Compile() error {
	if g.startNode == "" {
		return fmt.Errorf("%w: no start node declared", ErrGraphCompiled)
	}
	if _, ok := g.nodes[g.startNode]; !ok {
		return fmt.Errorf("%w: start node %q not registered", ErrGraphCompiled, g.startNode)
	}
	for id, n := range g.nodes {
		if f, ok := n.(NodeFunc); ok && f.Fn == nil {
			return fmt.Errorf("%w: node %q has a nil Fn", ErrGraphCompiled, id)
		}
	}
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return fmt.Errorf("%w: edge references unknown node %q", ErrGraphCompiled, e.From)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return fmt.Errorf("%w: edge references unknown node %q", ErrGraphCompiled, e.To)
		}
	}
	return nil
}

// fallbackNext evaluates edges from nodeID against state, returning the
// first matching successor.
func (g *Graph) fallbackNext(nodeID string, state ThreadState) (string, bool) {
	for _, e := range g.edges {
		if e.From != nodeID {
			continue
		}
		if e.When(state) {
			return e.To, true
		}
	}
	return "", false
}
