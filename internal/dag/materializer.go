package dag

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// NodeStatus is the per-node outcome of one materialization run.
type NodeStatus string

const (
	NodeStatusSucceeded NodeStatus = "succeeded"
	NodeStatusFailed    NodeStatus = "failed"
	// NodeStatusSkipped: a dependency failed or was skipped, or the run
	// was cancelled before the node started.
	NodeStatusSkipped NodeStatus = "skipped"
)

// NodeReport is the execution record for one node.
type NodeReport struct {
	Name     string
	Status   NodeStatus
	Duration time.Duration
	Err      error
}

// RunReport accounts for every node selected for a run.
type RunReport struct {
	Nodes map[string]*NodeReport
}

// Failed reports whether any node failed or was skipped.
func (r *RunReport) Failed() bool {
	for _, n := range r.Nodes {
		if n.Status != NodeStatusSucceeded {
			return true
		}
	}
	return false
}

// Materializer executes a graph with a bounded worker pool. Nodes with
// all dependencies satisfied run concurrently; a node starts only after
// every dependency succeeded.
type Materializer struct {
	graph   *Graph
	workers int
	logger  *log.Logger
}

// MaterializerOptions configures a Materializer.
type MaterializerOptions struct {
	Graph *Graph

	// Workers bounds concurrent node execution. Defaults to 4.
	Workers int

	// Logger for node lifecycle diagnostics. Defaults to the standard logger.
	Logger *log.Logger
}

// NewMaterializer creates a Materializer for a validated graph.
func NewMaterializer(opts MaterializerOptions) (*Materializer, error) {
	if opts.Graph == nil {
		return nil, fmt.Errorf("materializer: graph is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Materializer{graph: opts.Graph, workers: workers, logger: logger}, nil
}

type completion struct {
	name   string
	output Dataset
	err    error
	took   time.Duration
}

// Run materializes the targets and their ancestors. An empty target set
// runs the whole graph. Cancellation is cooperative: no new node starts
// after ctx is done, in-flight nodes finish, and unstarted nodes are
// reported skipped.
//
// Run returns an error only for selection failures; node failures are
// reported per node in the RunReport.
func (m *Materializer) Run(ctx context.Context, targets []string) (*RunReport, error) {
	selected, err := m.graph.Select(targets)
	if err != nil {
		return nil, err
	}

	report := &RunReport{Nodes: make(map[string]*NodeReport, len(selected))}

	inSelection := make(map[string]bool, len(selected))
	pendingDeps := make(map[string]int, len(selected))
	for _, name := range selected {
		inSelection[name] = true
	}
	for _, name := range selected {
		for _, dep := range m.graph.Node(name).DependsOn {
			if inSelection[dep] {
				pendingDeps[name]++
			}
		}
	}

	outputs := make(map[string]Dataset, len(selected))
	completions := make(chan completion)
	launched := make(map[string]bool, len(selected))
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.workers)

	launch := func(name string) {
		launched[name] = true
		node := m.graph.Node(name)
		in := make(Inputs, len(node.DependsOn))
		for _, dep := range node.DependsOn {
			in[dep] = outputs[dep]
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			started := time.Now()
			out, err := node.Compute(ctx, in)
			if err == nil && node.Materialization == MaterializationTable {
				err = node.Persist(ctx, out)
			}
			completions <- completion{name: name, output: out, err: err, took: time.Since(started)}
		}()
	}

	// skip marks a node and, transitively, its selected dependents.
	// Launched nodes are never skipped: their completion reports the
	// real outcome.
	var skip func(name string)
	skip = func(name string) {
		if report.Nodes[name] != nil || launched[name] {
			return
		}
		report.Nodes[name] = &NodeReport{Name: name, Status: NodeStatusSkipped}
		for _, dep := range m.graph.Dependents(name) {
			if inSelection[dep] {
				skip(dep)
			}
		}
	}

	running := 0
	for _, name := range selected {
		if pendingDeps[name] == 0 {
			launch(name)
			running++
		}
	}

	for running > 0 {
		c := <-completions
		running--

		if c.err != nil {
			m.logger.Printf("[dag] node %s failed after %s: %v", c.name, c.took, c.err)
			report.Nodes[c.name] = &NodeReport{Name: c.name, Status: NodeStatusFailed, Duration: c.took, Err: c.err}
			for _, dep := range m.graph.Dependents(c.name) {
				if inSelection[dep] {
					skip(dep)
				}
			}
		} else {
			m.logger.Printf("[dag] node %s succeeded in %s", c.name, c.took)
			report.Nodes[c.name] = &NodeReport{Name: c.name, Status: NodeStatusSucceeded, Duration: c.took}
			outputs[c.name] = c.output
		}

		cancelled := ctx.Err() != nil
		for _, name := range selected {
			// Each node is launched at most once; in-flight nodes have
			// no report entry yet.
			if launched[name] || report.Nodes[name] != nil {
				continue
			}
			ready := true
			for _, dep := range m.graph.Node(name).DependsOn {
				if inSelection[dep] && (report.Nodes[dep] == nil || report.Nodes[dep].Status != NodeStatusSucceeded) {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if cancelled {
				skip(name)
				continue
			}
			launch(name)
			running++
		}
	}

	wg.Wait()

	// Anything never reached (cancelled mid-run) is skipped.
	for _, name := range selected {
		if report.Nodes[name] == nil {
			report.Nodes[name] = &NodeReport{Name: name, Status: NodeStatusSkipped}
		}
	}

	return report, nil
}
