package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/pkg/serrors"
)

var ErrNoUsableRows = serrors.NewError("HIERARCHY_NO_USABLE_ROWS", "staged input has no usable rows", "")

// BuildStats counts row-level anomalies absorbed during construction.
// Anomalous rows degrade (bad parents become root candidates, duplicates keep
// the first occurrence); they never abort the build.
type BuildStats struct {
	Rows          int
	Duplicates    int
	BadIDs        int
	BadParents    int
	SelfParents   int
	RootCandidates int
	Unreachable   int
}

// Hierarchy is the sanitized single-rooted forest in arena form: nodes are
// indexed by position, parentIdx holds the parent's arena index (-1 for the
// root) and children is the derived adjacency with deterministic ordering.
type Hierarchy struct {
	Nodes []area.Area

	parentIdx []int
	children  [][]int
	byID      map[int64]int

	RootIndex int
	Synthetic bool
	Stats     BuildStats
}

// BuildHierarchy sanitizes raw uploaded rows into a rooted forest.
//
// Parent references that are empty, non-numeric, unknown or self-referential
// are reinterpreted as "no parent", making the row a root candidate. With
// exactly one candidate that node is the root as-is; with more than one (or
// none, which only happens when every row sits on a cycle) a synthetic root is
// introduced and all candidates reparented to it.
func BuildHierarchy(rows []area.RawRow, surveyID int64) (*Hierarchy, error) {
	stats := BuildStats{Rows: len(rows)}

	type parsed struct {
		id     int64
		name   string
		parent string
	}

	seen := make(map[int64]struct{}, len(rows))
	nodes := make([]parsed, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.ParseInt(strings.TrimSpace(row.ID), 10, 64)
		if err != nil {
			stats.BadIDs++
			continue
		}
		if _, dup := seen[id]; dup {
			stats.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		nodes = append(nodes, parsed{id: id, name: strings.TrimSpace(row.Name), parent: row.Parent})
	}
	if len(nodes) == 0 {
		if len(rows) == 0 {
			return &Hierarchy{byID: map[int64]int{}, RootIndex: -1, Stats: stats}, nil
		}
		return nil, ErrNoUsableRows
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })

	// Parent normalization against the accepted id set.
	parentOf := make([]*int64, len(nodes))
	for i, n := range nodes {
		raw := strings.TrimSpace(n.parent)
		if raw == "" {
			continue
		}
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			stats.BadParents++
			continue
		}
		if pid == n.id {
			stats.SelfParents++
			continue
		}
		if _, ok := seen[pid]; !ok {
			stats.BadParents++
			continue
		}
		p := pid
		parentOf[i] = &p
	}

	candidates := make([]int, 0, 4)
	for i := range nodes {
		if parentOf[i] == nil {
			candidates = append(candidates, i)
		}
	}
	stats.RootCandidates = len(candidates)

	h := &Hierarchy{Stats: stats}
	if len(candidates) == 1 {
		// Single top-level node: retained as the root, no synthetic node.
		h.Nodes = make([]area.Area, 0, len(nodes))
		for i, n := range nodes {
			h.Nodes = append(h.Nodes, area.Area{
				ID:       n.id,
				Name:     n.name,
				ParentID: parentOf[i],
				Level:    area.UnassignedLevel,
				SurveyID: surveyID,
			})
		}
	} else {
		// Zero or multiple candidates: introduce the reserved root and
		// reparent every candidate to it. A staged row reusing the reserved
		// id is dropped as a duplicate of the synthetic root.
		h.Synthetic = true
		h.Nodes = make([]area.Area, 0, len(nodes)+1)
		h.Nodes = append(h.Nodes, area.Area{
			ID:       area.RootID,
			Name:     area.RootName,
			Level:    area.UnassignedLevel,
			SurveyID: surveyID,
		})
		rootID := area.RootID
		for i, n := range nodes {
			if n.id == area.RootID {
				h.Stats.Duplicates++
				continue
			}
			parent := parentOf[i]
			if parent == nil || *parent == area.RootID {
				p := rootID
				parent = &p
			}
			h.Nodes = append(h.Nodes, area.Area{
				ID:       n.id,
				Name:     n.name,
				ParentID: parent,
				Level:    area.UnassignedLevel,
				SurveyID: surveyID,
			})
		}
	}

	h.index()
	h.AssignLevels()
	return h, nil
}

// HierarchyFromAreas rebuilds the arena from already-sanitized persisted rows.
func HierarchyFromAreas(areas []area.Area) *Hierarchy {
	nodes := make([]area.Area, len(areas))
	copy(nodes, areas)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	h := &Hierarchy{Nodes: nodes, Stats: BuildStats{Rows: len(areas)}}
	h.index()
	return h
}

func (h *Hierarchy) index() {
	h.byID = make(map[int64]int, len(h.Nodes))
	for i, n := range h.Nodes {
		h.byID[n.ID] = i
	}

	h.RootIndex = -1
	h.parentIdx = make([]int, len(h.Nodes))
	h.children = make([][]int, len(h.Nodes))
	for i, n := range h.Nodes {
		h.parentIdx[i] = -1
		if n.ParentID == nil {
			if h.RootIndex == -1 {
				h.RootIndex = i
			}
			continue
		}
		if pi, ok := h.byID[*n.ParentID]; ok && pi != i {
			h.parentIdx[i] = pi
			h.children[pi] = append(h.children[pi], i)
		} else if h.RootIndex == -1 {
			h.RootIndex = i
		}
	}
	// Arena is id-sorted, so child lists are already ascending by node id;
	// keep the invariant explicit for traversal determinism.
	for _, ch := range h.children {
		sort.Ints(ch)
	}
}

// AssignLevels walks breadth-first from the root assigning each node the first
// depth at which it is reached. An explicit visited set guards against cycles;
// nodes unreachable from the root keep UnassignedLevel and are counted.
func (h *Hierarchy) AssignLevels() {
	for i := range h.Nodes {
		h.Nodes[i].Level = area.UnassignedLevel
	}
	if h.RootIndex < 0 {
		h.Stats.Unreachable = len(h.Nodes)
		return
	}

	visited := make([]bool, len(h.Nodes))
	queue := []int{h.RootIndex}
	visited[h.RootIndex] = true
	h.Nodes[h.RootIndex].Level = 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ch := range h.children[cur] {
			if visited[ch] {
				continue
			}
			visited[ch] = true
			h.Nodes[ch].Level = h.Nodes[cur].Level + 1
			queue = append(queue, ch)
		}
	}

	unreachable := 0
	for _, n := range h.Nodes {
		if n.Level == area.UnassignedLevel {
			unreachable++
		}
	}
	h.Stats.Unreachable = unreachable
}

// SubtreeIndex returns, per arena index, the node's descendant arena indexes
// including itself. Rebuilt per aggregation run, never mutated incrementally.
func (h *Hierarchy) SubtreeIndex() [][]int {
	out := make([][]int, len(h.Nodes))
	for i := range h.Nodes {
		out[i] = h.subtreeOf(i)
	}
	return out
}

// SubtreeIDs returns the ids of the subtree rooted at the given area id,
// including itself. Unknown ids yield nil.
func (h *Hierarchy) SubtreeIDs(areaID int64) []int64 {
	i, ok := h.byID[areaID]
	if !ok {
		return nil
	}
	idx := h.subtreeOf(i)
	out := make([]int64, 0, len(idx))
	for _, j := range idx {
		out = append(out, h.Nodes[j].ID)
	}
	return out
}

func (h *Hierarchy) subtreeOf(i int) []int {
	visited := make([]bool, len(h.Nodes))
	stack := []int{i}
	subtree := make([]int, 0, 8)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		subtree = append(subtree, cur)
		for _, ch := range h.children[cur] {
			if !visited[ch] {
				stack = append(stack, ch)
			}
		}
	}
	sort.Ints(subtree)
	return subtree
}

// ParentID returns the parent id of the given node, or nil for the root.
func (h *Hierarchy) ParentID(areaID int64) *int64 {
	i, ok := h.byID[areaID]
	if !ok {
		return nil
	}
	pi := h.parentIdx[i]
	if pi < 0 {
		return nil
	}
	id := h.Nodes[pi].ID
	return &id
}

// Lookup returns the node with the given id.
func (h *Hierarchy) Lookup(areaID int64) (area.Area, bool) {
	i, ok := h.byID[areaID]
	if !ok {
		return area.Area{}, false
	}
	return h.Nodes[i], true
}
