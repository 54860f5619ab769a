package workflow

// GraphAnalyzer computes reachability, cycles, and topological order over a
// Workflow's transition graph. Ported from
// original_source/swissarmyhammer/src/workflow/graph.rs's
// WorkflowGraphAnalyzer.
type GraphAnalyzer struct {
	workflow *Workflow
}

// NewGraphAnalyzer constructs an analyzer for w.
func NewGraphAnalyzer(w *Workflow) *GraphAnalyzer {
	return &GraphAnalyzer{workflow: w}
}

// ReachableStates returns every state reachable from from via a BFS over
// outgoing transitions, including from itself.
func (g *GraphAnalyzer) ReachableStates(from string) map[string]bool {
	reachable := make(map[string]bool)
	queue := []string{from}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		for _, t := range g.workflow.Transitions {
			if t.FromState == id {
				queue = append(queue, t.ToState)
			}
		}
	}
	return reachable
}

// UnreachableStates returns every declared state not reachable from the
// workflow's initial state.
func (g *GraphAnalyzer) UnreachableStates() []string {
	reachable := g.ReachableStates(g.workflow.InitialState)
	var out []string
	for id := range g.workflow.States {
		if !reachable[id] {
			out = append(out, id)
		}
	}
	return out
}

// DetectCycleFrom runs a DFS from start, returning the first cycle found (as
// the ordered list of state IDs that form it) or nil if none exists.
func (g *GraphAnalyzer) DetectCycleFrom(start string) []string {
	visited := make(map[string]bool)
	var path []string
	if g.hasCycleDFS(start, visited, &path) {
		return path
	}
	return nil
}

func (g *GraphAnalyzer) hasCycleDFS(state string, visited map[string]bool, path *[]string) bool {
	for _, s := range *path {
		if s == state {
			// Trim path down to just the cycle.
			idx := indexOf(*path, state)
			*path = append((*path)[idx:], state)
			return true
		}
	}
	if visited[state] {
		return false
	}
	visited[state] = true
	*path = append(*path, state)

	for _, t := range g.workflow.Transitions {
		if t.FromState == state && g.hasCycleDFS(t.ToState, visited, path) {
			return true
		}
	}
	*path = (*path)[:len(*path)-1]
	return false
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// AdjacencyList builds a from-state -> to-states map covering every declared
// state, even those with no outgoing transitions.
func (g *GraphAnalyzer) AdjacencyList() map[string][]string {
	adjacency := make(map[string][]string, len(g.workflow.States))
	for id := range g.workflow.States {
		adjacency[id] = nil
	}
	for _, t := range g.workflow.Transitions {
		adjacency[t.FromState] = append(adjacency[t.FromState], t.ToState)
	}
	return adjacency
}

// TopologicalSort performs Kahn's algorithm over the workflow's states,
// returning nil if the graph contains a cycle.
func (g *GraphAnalyzer) TopologicalSort() []string {
	adjacency := g.AdjacencyList()
	inDegree := make(map[string]int, len(g.workflow.States))
	for id := range g.workflow.States {
		inDegree[id] = 0
	}
	for _, neighbors := range adjacency {
		for _, n := range neighbors {
			inDegree[n]++
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	var sorted []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, n := range adjacency[id] {
			inDegree[n]--
			if inDegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}

	if len(sorted) != len(g.workflow.States) {
		return nil
	}
	return sorted
}
