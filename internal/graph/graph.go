// Package graph implements the Graph Assembler (spec ch. 4.4): it joins the
// Job Registry into a DAG keyed on inputs/outputs, plus one phony aggregator
// per pipeline and per CI stage so run-build can filter by either.
package graph

import (
	"fmt"
	"sort"

	"github.com/litani-build/litani/internal/model"
)

// Node is one DAG node: either a real job or a phony aggregator with no
// command (spec GLOSSARY, "Phony").
type Node struct {
	JobID   string // empty for phony nodes
	Target  string // synthetic target name for phony nodes, status_file path for job nodes
	Phony   bool
	Inputs  []string
	Outputs []string
	Pool    string // never set on a phony node (spec ch. 9, open question (c))
	Job     *model.JobSpec
}

// Graph is the assembled DAG: nodes plus an index from every declared output
// path to the node that produces it, used by the dispatcher to resolve a
// job's inputs to upstream jobs (spec ch. 4.5, "Readiness").
type Graph struct {
	Nodes       []*Node
	byJobID     map[string]*Node
	producerOf  map[string][]*Node // literal output path -> producing nodes (may be >1, spec ch. 3 invariant)
}

// Assemble builds the DAG from every job in the registry (spec ch. 4.4).
// One rule/build-edge per job, plus phony aggregators per pipeline_name and
// per ci_stage value actually present among jobs.
func Assemble(jobs []model.JobSpec) (*Graph, error) {
	g := &Graph{
		byJobID:    make(map[string]*Node, len(jobs)),
		producerOf: make(map[string][]*Node),
	}

	pipelines := map[string][]string{} // pipeline -> synthetic output targets of its jobs
	stages := map[string][]string{}

	for i := range jobs {
		j := &jobs[i]
		outputs := append([]string{}, j.Outputs...)
		// Including the status file as an output guarantees every job has at
		// least one output and therefore participates in the DAG (spec ch. 4.4).
		outputs = append(outputs, j.StatusFile)

		n := &Node{
			JobID:   j.JobID,
			Target:  j.StatusFile,
			Inputs:  j.Inputs,
			Outputs: outputs,
			Pool:    j.Pool,
			Job:     j,
		}
		g.Nodes = append(g.Nodes, n)
		g.byJobID[j.JobID] = n
		for _, out := range outputs {
			g.producerOf[out] = append(g.producerOf[out], n)
		}

		pipelines[j.PipelineName] = append(pipelines[j.PipelineName], j.StatusFile)
		if j.CIStage != "" {
			stages[string(j.CIStage)] = append(stages[string(j.CIStage)], j.StatusFile)
		}
	}

	addPhony := func(field, value string, inputs []string) {
		target := fmt.Sprintf("__litani_%s_%s", field, value)
		n := &Node{Target: target, Phony: true, Inputs: inputs, Outputs: []string{target}}
		g.Nodes = append(g.Nodes, n)
		g.producerOf[target] = append(g.producerOf[target], n)
	}
	for _, p := range sortedKeys(pipelines) {
		addPhony("pipeline", p, pipelines[p])
	}
	for _, s := range sortedKeys(stages) {
		addPhony("ci_stage", s, stages[s])
	}

	if err := detectCycle(g); err != nil {
		return nil, err
	}
	return g, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Producers returns every node that declares path as an output.
func (g *Graph) Producers(path string) []*Node {
	return g.producerOf[path]
}

// ByJobID looks up the node for a job.
func (g *Graph) ByJobID(id string) *Node {
	return g.byJobID[id]
}

// PhonyTarget returns the aggregator node for a pipeline or ci_stage value,
// or nil if no job declared that value.
func (g *Graph) PhonyTarget(field, value string) *Node {
	return g.producerOfSingle(fmt.Sprintf("__litani_%s_%s", field, value))
}

func (g *Graph) producerOfSingle(target string) *Node {
	ns := g.producerOf[target]
	if len(ns) == 0 {
		return nil
	}
	return ns[0]
}

func detectCycle(g *Graph) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var visit func(n *Node) error
	visit = func(n *Node) error {
		key := n.Target
		switch color[key] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("graph: dependency cycle detected at %s", key)
		}
		color[key] = gray
		for _, in := range n.Inputs {
			for _, up := range g.producerOf[in] {
				if err := visit(up); err != nil {
					return err
				}
			}
		}
		color[key] = black
		return nil
	}
	for _, n := range g.Nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// AncestorsOf returns every job node that target (and its transitive
// dependencies) requires, used to prune execution to --pipelines/--ci-stage
// selections (spec ch. 4.5, "Cancellation/filtering").
func (g *Graph) AncestorsOf(targets ...*Node) map[string]*Node {
	seen := make(map[string]*Node)
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil {
			return
		}
		if !n.Phony {
			if _, ok := seen[n.JobID]; ok {
				return
			}
			seen[n.JobID] = n
		}
		for _, in := range n.Inputs {
			for _, up := range g.producerOf[in] {
				visit(up)
			}
		}
	}
	for _, t := range targets {
		visit(t)
	}
	return seen
}
