// This file is part of N64Build.
//
// N64Build is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// N64Build is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with N64Build.  If not, see <https://www.gnu.org/licenses/>.


package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/bradleyjkemp/memviz"
	"github.com/jetsetilly/n64build/curated"
)

// Sentinel error patterns for graph construction.
const (
	DuplicateNode     = "pipeline: duplicate node (%s)"
	DuplicateOutput   = "pipeline: %s and %s both write %s"
	UnknownDependency = "pipeline: %s: unknown dependency (%s)"
	DependencyCycle   = "pipeline: dependency cycle (%s)"
)

// Node is a single step of the build.
type Node struct {
	// the stage is used as the logging tag of the node
	Stage string

	// the principal artifact of the node. used to identify the node in
	// error messages and in the log
	Artifact string

	// files read and written by the node. every input must exist before the
	// node runs and every output must exist after it completes
	Inputs  []string
	Outputs []string

	// nodes that must complete before this node in addition to the nodes
	// that write the inputs. identified by ID()
	After []string

	run func(ctx context.Context) error
}

// NewNode is the preferred method of initialisation for the Node type.
func NewNode(stage string, artifact string, run func(ctx context.Context) error) *Node {
	return &Node{
		Stage:    stage,
		Artifact: artifact,
		run:      run,
	}
}

// ID returns the unique identifier of the node in the graph.
func (n *Node) ID() string {
	return fmt.Sprintf("%s %s", n.Stage, n.Artifact)
}

func (n *Node) String() string {
	return n.ID()
}

// Graph is the set of nodes of a build.
type Graph struct {
	nodes   []*Node
	ids     map[string]*Node
	outputs map[string]*Node
}

// NewGraph is the preferred method of initialisation for the Graph type.
func NewGraph() *Graph {
	return &Graph{
		ids:     make(map[string]*Node),
		outputs: make(map[string]*Node),
	}
}

// Add a node to the graph. Returns DuplicateOutput if an output of the node
// is written by a node already in the graph.
func (g *Graph) Add(n *Node) error {
	if _, ok := g.ids[n.ID()]; ok {
		return curated.Errorf(DuplicateNode, n.ID())
	}

	for _, o := range n.Outputs {
		o = filepath.Clean(o)
		if other, ok := g.outputs[o]; ok {
			return curated.Errorf(DuplicateOutput, other.ID(), n.ID(), o)
		}
	}

	for _, o := range n.Outputs {
		g.outputs[filepath.Clean(o)] = n
	}
	g.ids[n.ID()] = n
	g.nodes = append(g.nodes, n)

	return nil
}

// Nodes returns the nodes in the order they were added.
func (g *Graph) Nodes() []*Node {
	return append([]*Node{}, g.nodes...)
}

// Find the node with the ID. Returns nil if there is no such node.
func (g *Graph) Find(id string) *Node {
	return g.ids[id]
}

// Writer returns the node that writes the file. Returns nil if the file is
// not written by any node.
func (g *Graph) Writer(filename string) *Node {
	return g.outputs[filepath.Clean(filename)]
}

// Dependencies returns the nodes that must complete before the node can run.
// The list is in the order the nodes were added to the graph.
func (g *Graph) Dependencies(n *Node) ([]*Node, error) {
	seen := make(map[*Node]bool)

	for _, i := range n.Inputs {
		if w := g.Writer(i); w != nil && w != n {
			seen[w] = true
		}
	}

	for _, a := range n.After {
		d, ok := g.ids[a]
		if !ok {
			return nil, curated.Errorf(UnknownDependency, n.ID(), a)
		}
		seen[d] = true
	}

	var deps []*Node
	for _, d := range g.nodes {
		if seen[d] {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

// Order returns the nodes in an order in which every node comes after its
// dependencies. Nodes that are not constrained keep the order in which they
// were added.
func (g *Graph) Order() ([]*Node, error) {
	index := make(map[*Node]int, len(g.nodes))
	for i, n := range g.nodes {
		index[n] = i
	}

	pending := make(map[*Node]int, len(g.nodes))
	dependents := make(map[*Node][]*Node)

	for _, n := range g.nodes {
		deps, err := g.Dependencies(n)
		if err != nil {
			return nil, err
		}
		pending[n] = len(deps)
		for _, d := range deps {
			dependents[d] = append(dependents[d], n)
		}
	}

	var ready []*Node
	for _, n := range g.nodes {
		if pending[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, d := range dependents[n] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
		sort.SliceStable(ready, func(i, j int) bool {
			return index[ready[i]] < index[ready[j]]
		})
	}

	if len(order) != len(g.nodes) {
		for _, n := range g.nodes {
			if pending[n] > 0 {
				return nil, curated.Errorf(DependencyCycle, n.ID())
			}
		}
	}

	return order, nil
}

// Prune returns a new graph containing only the named nodes and the nodes
// they depend on.
func (g *Graph) Prune(ids ...string) (*Graph, error) {
	keep := make(map[*Node]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if keep[n] {
			return nil
		}
		keep[n] = true
		deps, err := g.Dependencies(n)
		if err != nil {
			return err
		}
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range ids {
		n, ok := g.ids[id]
		if !ok {
			return nil, curated.Errorf(UnknownDependency, "prune", id)
		}
		if err := visit(n); err != nil {
			return nil, err
		}
	}

	p := NewGraph()
	for _, n := range g.nodes {
		if keep[n] {
			if err := p.Add(n); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// graphView is the structure written by Dump(). It is a simplified view of
// the graph without the functions that make up each node.
type graphView struct {
	Nodes []*nodeView
}

type nodeView struct {
	Stage     string
	Artifact  string
	Outputs   []string
	DependsOn []*nodeView
}

// Dump writes the graph to w in the graphviz dot format.
func (g *Graph) Dump(w io.Writer) error {
	order, err := g.Order()
	if err != nil {
		return err
	}

	views := make(map[*Node]*nodeView, len(order))
	view := &graphView{}

	for _, n := range order {
		v := &nodeView{
			Stage:    n.Stage,
			Artifact: n.Artifact,
			Outputs:  n.Outputs,
		}
		deps, _ := g.Dependencies(n)
		for _, d := range deps {
			v.DependsOn = append(v.DependsOn, views[d])
		}
		views[n] = v
		view.Nodes = append(view.Nodes, v)
	}

	memviz.Map(w, view)

	return nil
}
