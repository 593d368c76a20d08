package component

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInline_FusedAdapterAcrossInstances(t *testing.T) {
	fn := FunctionType{Params: "(i32)", Results: "(i32)"}

	child := &ComponentDef{
		Initializers: []Initializer{
			{CanonLift: true, InstanceID: 1, Func: fn, Options: CanonOptions{Realloc: -1, PostReturn: -1}},
		},
		ExportNames: map[string]int{"run": 0},
	}

	root := &ComponentDef{
		Initializers: []Initializer{
			{InlineComponent: child},
			{CanonLower: true, InstanceID: 0, Func: fn, Options: CanonOptions{Realloc: -1, PostReturn: -1}},
		},
		ExportNames: map[string]int{"run": 1},
	}

	in := NewInliner()
	item := in.Inline(root)

	require.Len(t, in.Adapters, 1)
	require.Equal(t, 1, in.Adapters[0].LiftID)
	require.Equal(t, 0, in.Adapters[0].LowerID)
	require.Contains(t, item.Exports, "run")

	lowerNode := in.Nodes[item.Exports["run"].NodeID]
	require.Equal(t, NodeLower, lowerNode.Kind)
}

func TestInline_SameInstanceElidesToAlwaysTrap(t *testing.T) {
	fn := FunctionType{Params: "(i32)", Results: "(i32)"}

	def := &ComponentDef{
		Initializers: []Initializer{
			{CanonLift: true, InstanceID: 0, Func: fn},
			{CanonLower: true, InstanceID: 0, Func: fn},
		},
		ExportNames: map[string]int{"run": 1},
	}

	in := NewInliner()
	item := in.Inline(def)

	require.Empty(t, in.Adapters)
	node := in.Nodes[item.Exports["run"].NodeID]
	require.Equal(t, NodeAlwaysTrap, node.Kind)
}

func TestInline_AlwaysTrapNodesInternAcrossIdenticalCallees(t *testing.T) {
	fn := FunctionType{Params: "()", Results: "()"}

	def := &ComponentDef{
		Initializers: []Initializer{
			{CanonLift: true, InstanceID: 0, Func: fn},
			{CanonLower: true, InstanceID: 0, Func: fn},
			{CanonLift: true, InstanceID: 0, Func: fn},
			{CanonLower: true, InstanceID: 0, Func: fn},
		},
		ExportNames: map[string]int{"a": 1, "b": 3},
	}

	in := NewInliner()
	item := in.Inline(def)

	require.Equal(t, item.Exports["a"].NodeID, item.Exports["b"].NodeID)
}

func TestInline_MemoryExportNodeInterned(t *testing.T) {
	def := &ComponentDef{
		Initializers: []Initializer{
			{EmitNode: &Node{Kind: NodeMemoryExport, Key: "mem0"}},
			{EmitNode: &Node{Kind: NodeMemoryExport, Key: "mem0"}},
		},
		ExportNames: map[string]int{"first": 0, "second": 1},
	}

	in := NewInliner()
	item := in.Inline(def)

	require.Equal(t, item.Exports["first"].NodeID, item.Exports["second"].NodeID)
	require.Len(t, in.Nodes, 1)
}
