package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
)

func TestBuildHierarchy(t *testing.T) {
	t.Run("SingleRootIsRetainedAsIs", func(t *testing.T) {
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "10", Name: "Company", Parent: ""},
			{ID: "11", Name: "Engineering", Parent: "10"},
			{ID: "12", Name: "Sales", Parent: "10"},
		}, 1)
		require.NoError(t, err)
		require.False(t, h.Synthetic)
		require.Len(t, h.Nodes, 3)

		root, ok := h.Lookup(10)
		require.True(t, ok)
		require.Nil(t, root.ParentID)
		require.Equal(t, 0, root.Level)

		eng, _ := h.Lookup(11)
		require.Equal(t, 1, eng.Level)
		require.Equal(t, int64(10), *eng.ParentID)
	})

	t.Run("TwoIndependentRootsGetSyntheticRoot", func(t *testing.T) {
		// Two forests; the synthetic root adopts both and shifts every
		// original level by one.
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "10", Name: "North", Parent: ""},
			{ID: "11", Name: "North Ops", Parent: "10"},
			{ID: "20", Name: "South", Parent: ""},
			{ID: "21", Name: "South Ops", Parent: "20"},
		}, 1)
		require.NoError(t, err)
		require.True(t, h.Synthetic)
		require.Len(t, h.Nodes, 5)

		root, ok := h.Lookup(area.RootID)
		require.True(t, ok)
		require.Equal(t, area.RootName, root.Name)
		require.Equal(t, 0, root.Level)

		for _, id := range []int64{10, 20} {
			n, _ := h.Lookup(id)
			require.Equal(t, 1, n.Level)
			require.Equal(t, area.RootID, *n.ParentID)
		}
		for _, id := range []int64{11, 21} {
			n, _ := h.Lookup(id)
			require.Equal(t, 2, n.Level)
		}
	})

	t.Run("SelfParentBecomesRootCandidate", func(t *testing.T) {
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "5", Name: "Loop", Parent: "5"},
		}, 1)
		require.NoError(t, err)
		require.False(t, h.Synthetic)
		require.Equal(t, 1, h.Stats.SelfParents)

		n, _ := h.Lookup(5)
		require.Nil(t, n.ParentID)
		require.Equal(t, 0, n.Level)
	})

	t.Run("SelfParentJoinsOtherRootsUnderSyntheticRoot", func(t *testing.T) {
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "5", Name: "Loop", Parent: "5"},
			{ID: "6", Name: "Other", Parent: ""},
		}, 1)
		require.NoError(t, err)
		require.True(t, h.Synthetic)

		n, _ := h.Lookup(5)
		require.Equal(t, area.RootID, *n.ParentID)
		require.Equal(t, 1, n.Level)
	})

	t.Run("UnknownAndMalformedParentsDegrade", func(t *testing.T) {
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "1", Name: "A", Parent: "999"},
			{ID: "2", Name: "B", Parent: "abc"},
			{ID: "3", Name: "C", Parent: "1"},
		}, 1)
		require.NoError(t, err)
		require.True(t, h.Synthetic)
		require.Equal(t, 2, h.Stats.BadParents)

		c, _ := h.Lookup(3)
		require.Equal(t, int64(1), *c.ParentID)
		require.Equal(t, 2, c.Level)
	})

	t.Run("DuplicateIDsKeepFirstOccurrence", func(t *testing.T) {
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "1", Name: "First", Parent: ""},
			{ID: "1", Name: "Second", Parent: ""},
		}, 1)
		require.NoError(t, err)
		require.Equal(t, 1, h.Stats.Duplicates)
		require.Len(t, h.Nodes, 1)
		require.Equal(t, "First", h.Nodes[0].Name)
	})

	t.Run("PureCycleSynthesizesRootAndLeavesNodesUnassigned", func(t *testing.T) {
		h, err := BuildHierarchy([]area.RawRow{
			{ID: "1", Name: "A", Parent: "2"},
			{ID: "2", Name: "B", Parent: "1"},
		}, 1)
		require.NoError(t, err)
		require.True(t, h.Synthetic)
		require.Equal(t, 2, h.Stats.Unreachable)

		for _, id := range []int64{1, 2} {
			n, _ := h.Lookup(id)
			require.Equal(t, area.UnassignedLevel, n.Level)
		}
	})

	t.Run("NoUsableRowsFails", func(t *testing.T) {
		_, err := BuildHierarchy([]area.RawRow{
			{ID: "abc", Name: "A"},
			{ID: "", Name: "B"},
		}, 1)
		require.ErrorIs(t, err, ErrNoUsableRows)
	})

	t.Run("EmptyInputYieldsEmptyHierarchy", func(t *testing.T) {
		h, err := BuildHierarchy(nil, 1)
		require.NoError(t, err)
		require.Empty(t, h.Nodes)
	})

	t.Run("Deterministic", func(t *testing.T) {
		rows := []area.RawRow{
			{ID: "3", Name: "C", Parent: "1"},
			{ID: "1", Name: "A", Parent: ""},
			{ID: "2", Name: "B", Parent: "1"},
			{ID: "4", Name: "D", Parent: ""},
		}
		first, err := BuildHierarchy(rows, 1)
		require.NoError(t, err)
		second, err := BuildHierarchy(rows, 1)
		require.NoError(t, err)
		require.Equal(t, first.Nodes, second.Nodes)
	})
}

func TestHierarchyInvariants(t *testing.T) {
	h, err := BuildHierarchy([]area.RawRow{
		{ID: "1", Name: "Root", Parent: ""},
		{ID: "2", Name: "A", Parent: "1"},
		{ID: "3", Name: "B", Parent: "1"},
		{ID: "4", Name: "A1", Parent: "2"},
		{ID: "5", Name: "A2", Parent: "2"},
	}, 1)
	require.NoError(t, err)

	t.Run("LevelEqualsParentChainLength", func(t *testing.T) {
		for _, n := range h.Nodes {
			steps := 0
			cur := n
			for cur.ParentID != nil {
				parent, ok := h.Lookup(*cur.ParentID)
				require.True(t, ok)
				cur = parent
				steps++
				require.LessOrEqual(t, steps, len(h.Nodes))
			}
			require.Equal(t, n.Level, steps)
		}
	})

	t.Run("SubtreeIDsIncludeSelfAndDescendants", func(t *testing.T) {
		require.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, h.SubtreeIDs(1))
		require.ElementsMatch(t, []int64{2, 4, 5}, h.SubtreeIDs(2))
		require.Equal(t, []int64{4}, h.SubtreeIDs(4))
		require.Nil(t, h.SubtreeIDs(99))
	})

	t.Run("SubtreeIndexMatchesSubtreeIDs", func(t *testing.T) {
		subtrees := h.SubtreeIndex()
		for i, node := range h.Nodes {
			ids := make([]int64, 0, len(subtrees[i]))
			for _, j := range subtrees[i] {
				ids = append(ids, h.Nodes[j].ID)
			}
			require.ElementsMatch(t, h.SubtreeIDs(node.ID), ids)
		}
	})
}
