package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/agentflow/workflow"
)

func TestMergeKeyWiseLastWriterWins(t *testing.T) {
	state := workflow.NewThreadState()
	diffs := []workflow.StateDiff{
		{Slots: map[string]map[string]any{"n1": {"a": 1, "b": 2}}},
		{Slots: map[string]map[string]any{"n1": {"b": 3}}},
	}

	merged, err := workflow.Merge(state, diffs)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.Slots["n1"]["a"])
	assert.Equal(t, 3, merged.Slots["n1"]["b"])
}

func TestMergeAppendsMessages(t *testing.T) {
	state := workflow.NewThreadState()
	diffs := []workflow.StateDiff{
		{AppendMessages: []workflow.Message{{ID: "m1", Content: "hello"}}},
		{AppendMessages: []workflow.Message{{ID: "m2", Content: "world"}}},
	}

	merged, err := workflow.Merge(state, diffs)
	require.NoError(t, err)
	require.Len(t, merged.Messages, 2)
	assert.Equal(t, "m1", merged.Messages[0].ID)
	assert.Equal(t, "m2", merged.Messages[1].ID)
}

func TestMergeNodeStatusConflictErrors(t *testing.T) {
	state := workflow.NewThreadState()
	diffs := []workflow.StateDiff{
		{NodeStatuses: map[string]workflow.NodeStatus{"join": workflow.StatusDone}},
		{NodeStatuses: map[string]workflow.NodeStatus{"join": workflow.StatusError}},
	}

	_, err := workflow.Merge(state, diffs)
	var conflict *workflow.ErrMergeConflict
	require.ErrorAs(t, err, &conflict)
}

func TestMergeNodeStatusAgreementIsNotAConflict(t *testing.T) {
	state := workflow.NewThreadState()
	diffs := []workflow.StateDiff{
		{NodeStatuses: map[string]workflow.NodeStatus{"n1": workflow.StatusDone}},
		{NodeStatuses: map[string]workflow.NodeStatus{"n1": workflow.StatusDone}},
	}

	merged, err := workflow.Merge(state, diffs)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDone, merged.NodeStatuses["n1"])
}

func TestSortByNodeIDIsDeterministicRegardlessOfInputOrder(t *testing.T) {
	diffsA := []workflow.StateDiff{
		{Slots: map[string]map[string]any{"news.scan": {"order": 1}}},
		{Slots: map[string]map[string]any{"fundamental.report": {"order": 2}}},
		{Slots: map[string]map[string]any{"technical.analyze": {"order": 3}}},
	}
	orderA := []string{"news.scan", "fundamental.report", "technical.analyze"}

	diffsB := []workflow.StateDiff{
		{Slots: map[string]map[string]any{"technical.analyze": {"order": 3}}},
		{Slots: map[string]map[string]any{"news.scan": {"order": 1}}},
		{Slots: map[string]map[string]any{"fundamental.report": {"order": 2}}},
	}
	orderB := []string{"technical.analyze", "news.scan", "fundamental.report"}

	sortedA := workflow.SortByNodeID(orderA, diffsA)
	sortedB := workflow.SortByNodeID(orderB, diffsB)

	require.Len(t, sortedA, 3)
	require.Len(t, sortedB, 3)
	for i := range sortedA {
		assert.Equal(t, sortedA[i].Slots["fundamental.report"], sortedB[i].Slots["fundamental.report"])
		assert.Equal(t, sortedA[i].Slots["news.scan"], sortedB[i].Slots["news.scan"])
		assert.Equal(t, sortedA[i].Slots["technical.analyze"], sortedB[i].Slots["technical.analyze"])
	}
}
