package dag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func noopCompute(_ context.Context, _ Inputs) (Dataset, error) {
	return nil, nil
}

func simpleNode(name string, deps ...string) *Node {
	return &Node{
		Name:            name,
		DependsOn:       deps,
		Materialization: MaterializationEphemeral,
		Compute:         noopCompute,
	}
}

func TestNewGraph_TopologicalOrder(t *testing.T) {
	g, err := NewGraph([]*Node{
		simpleNode("mart_a", "int_a"),
		simpleNode("int_a", "stg_a", "stg_b"),
		simpleNode("stg_a"),
		simpleNode("stg_b"),
	})
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	order := g.Order()
	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}

	if pos["stg_a"] > pos["int_a"] || pos["stg_b"] > pos["int_a"] {
		t.Errorf("Staging must precede intermediate: %v", order)
	}
	if pos["int_a"] > pos["mart_a"] {
		t.Errorf("Intermediate must precede mart: %v", order)
	}
}

func TestNewGraph_OrderDeterministic(t *testing.T) {
	build := func() []string {
		g, err := NewGraph([]*Node{
			simpleNode("c"),
			simpleNode("a"),
			simpleNode("b"),
			simpleNode("d", "a", "b", "c"),
		})
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}
		return g.Order()
	}

	first := build()
	for i := 0; i < 10; i++ {
		if got := build(); !reflect.DeepEqual(got, first) {
			t.Fatalf("Order not deterministic: %v vs %v", first, got)
		}
	}
	if !reflect.DeepEqual(first, []string{"a", "b", "c", "d"}) {
		t.Errorf("Expected name-ordered roots, got %v", first)
	}
}

func TestNewGraph_CycleDetected(t *testing.T) {
	_, err := NewGraph([]*Node{
		simpleNode("a", "c"),
		simpleNode("b", "a"),
		simpleNode("c", "b"),
	})

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
	if len(cycleErr.Cycle) < 3 {
		t.Errorf("Cycle must name its members, got %v", cycleErr.Cycle)
	}
	if !strings.Contains(cycleErr.Error(), "->") {
		t.Errorf("Error must render the cycle path: %s", cycleErr.Error())
	}
}

func TestNewGraph_SelfCycle(t *testing.T) {
	_, err := NewGraph([]*Node{simpleNode("a", "a")})

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
}

func TestNewGraph_UnknownDependency(t *testing.T) {
	_, err := NewGraph([]*Node{simpleNode("a", "ghost")})
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("Expected unknown dependency error, got %v", err)
	}
}

func TestNewGraph_DuplicateName(t *testing.T) {
	_, err := NewGraph([]*Node{simpleNode("a"), simpleNode("a")})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Expected duplicate name error, got %v", err)
	}
}

func TestNewGraph_TableRequiresPersist(t *testing.T) {
	_, err := NewGraph([]*Node{{
		Name:            "mart_a",
		Materialization: MaterializationTable,
		Compute:         noopCompute,
	}})
	if err == nil || !strings.Contains(err.Error(), "persist") {
		t.Errorf("Expected persist requirement error, got %v", err)
	}
}

func TestGraph_SelectAncestors(t *testing.T) {
	g, err := NewGraph([]*Node{
		simpleNode("stg_a"),
		simpleNode("stg_b"),
		simpleNode("int_a", "stg_a"),
		simpleNode("mart_a", "int_a"),
		simpleNode("mart_b", "stg_b"),
	})
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	selected, err := g.Select([]string{"mart_a"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !reflect.DeepEqual(selected, []string{"stg_a", "int_a", "mart_a"}) {
		t.Errorf("Selection mismatch: %v", selected)
	}

	_, err = g.Select([]string{"ghost"})
	if err == nil {
		t.Errorf("Expected error for unknown target")
	}

	all, err := g.Select(nil)
	if err != nil {
		t.Fatalf("Select all failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Empty target set selects whole graph, got %v", all)
	}
}

func TestGraph_Dependents(t *testing.T) {
	g, err := NewGraph([]*Node{
		simpleNode("stg_a"),
		simpleNode("int_a", "stg_a"),
		simpleNode("int_b", "stg_a"),
	})
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	deps := g.Dependents("stg_a")
	if !reflect.DeepEqual(deps, []string{"int_a", "int_b"}) {
		t.Errorf("Dependents mismatch: %v", deps)
	}
}
