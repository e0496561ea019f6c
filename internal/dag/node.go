// Package dag implements the transformation graph: staged and derived
// datasets declared as nodes with explicit dependencies, ordered
// topologically and materialized by a bounded worker pool.
package dag

import "context"

// Materialization controls what happens to a node's computed output.
type Materialization string

const (
	// MaterializationEphemeral keeps the output in-memory for dependents
	// only; nothing is persisted.
	MaterializationEphemeral Materialization = "ephemeral"
	// MaterializationView registers the node as a re-runnable definition;
	// the output feeds dependents and is recomputed on every run.
	MaterializationView Materialization = "view"
	// MaterializationTable persists the output through the node's sink.
	MaterializationTable Materialization = "table"
)

// IndexDecl is index metadata a table node declares for its sink.
// Consumed at materialization time only; it never affects computation.
type IndexDecl struct {
	Name    string
	Columns []string
}

// Dataset is the unit passed along graph edges. Nodes downcast to the
// concrete row type they expect from each dependency.
type Dataset interface{}

// Inputs maps dependency node names to their computed datasets.
type Inputs map[string]Dataset

// ComputeFunc derives a node's dataset from its dependencies' outputs.
// Implementations must be deterministic: identical inputs produce
// identical outputs, so transforms sort their rows canonically.
type ComputeFunc func(ctx context.Context, in Inputs) (Dataset, error)

// PersistFunc writes a table node's dataset to its sink.
type PersistFunc func(ctx context.Context, data Dataset) error

// Node is one dataset definition in the transformation graph.
type Node struct {
	Name            string
	DependsOn       []string
	Materialization Materialization
	Indexes         []IndexDecl

	// Compute is required; Persist only for table nodes.
	Compute ComputeFunc
	Persist PersistFunc
}
