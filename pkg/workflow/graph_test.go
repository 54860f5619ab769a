package workflow

import "testing"

func linearWorkflow() *Workflow {
	w := NewWorkflow("Test", "desc", "a")
	w.AddState(State{ID: "a"})
	w.AddState(State{ID: "b"})
	w.AddState(State{ID: "c", IsTerminal: true})
	w.AddState(State{ID: "unreachable"})
	w.AddTransition(Transition{FromState: "a", ToState: "b"})
	w.AddTransition(Transition{FromState: "b", ToState: "c"})
	return w
}

func TestReachableStates(t *testing.T) {
	g := NewGraphAnalyzer(linearWorkflow())
	reachable := g.ReachableStates("a")
	for _, want := range []string{"a", "b", "c"} {
		if !reachable[want] {
			t.Errorf("expected %q to be reachable", want)
		}
	}
	if reachable["unreachable"] {
		t.Error("did not expect 'unreachable' to be reachable from 'a'")
	}
}

func TestUnreachableStates(t *testing.T) {
	g := NewGraphAnalyzer(linearWorkflow())
	unreachable := g.UnreachableStates()
	if len(unreachable) != 1 || unreachable[0] != "unreachable" {
		t.Fatalf("got %v", unreachable)
	}
}

func TestDetectCycleFromNoCycle(t *testing.T) {
	g := NewGraphAnalyzer(linearWorkflow())
	if cycle := g.DetectCycleFrom("a"); cycle != nil {
		t.Fatalf("expected no cycle, got %v", cycle)
	}
}

func TestDetectCycleFromWithCycle(t *testing.T) {
	w := NewWorkflow("Test", "desc", "a")
	w.AddState(State{ID: "a"})
	w.AddState(State{ID: "b"})
	w.AddTransition(Transition{FromState: "a", ToState: "b"})
	w.AddTransition(Transition{FromState: "b", ToState: "a"})

	g := NewGraphAnalyzer(w)
	cycle := g.DetectCycleFrom("a")
	if cycle == nil {
		t.Fatal("expected a cycle to be detected")
	}
}

func TestTopologicalSortLinear(t *testing.T) {
	g := NewGraphAnalyzer(linearWorkflow())
	order := g.TopologicalSort()
	if order == nil {
		t.Fatal("expected a valid topological order")
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Fatalf("got invalid order %v", order)
	}
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	w := NewWorkflow("Test", "desc", "a")
	w.AddState(State{ID: "a"})
	w.AddState(State{ID: "b"})
	w.AddTransition(Transition{FromState: "a", ToState: "b"})
	w.AddTransition(Transition{FromState: "b", ToState: "a"})

	g := NewGraphAnalyzer(w)
	if order := g.TopologicalSort(); order != nil {
		t.Fatalf("expected nil for a cyclic graph, got %v", order)
	}
}
