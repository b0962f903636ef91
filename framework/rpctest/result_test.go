package rpctest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestIDString(t *testing.T) {
	assert.Equal(t, "", TestID{}.String())
	assert.Equal(t, "lifecycle", TestID{"lifecycle"}.String())
	assert.Equal(t, "lifecycle/initialize", TestID{"lifecycle", "initialize"}.String())
}

func TestTestIDPlus(t *testing.T) {
	assert.Equal(t, TestID{"lifecycle"}, TestID{}.Plus("lifecycle"))

	// Calling Plus does not modify the original value
	id1 := TestID{"hover"}
	id2a := id1.Plus("basic")
	id2b := id1.Plus("markdown")
	assert.Equal(t, TestID{"hover"}, id1)
	assert.Equal(t, TestID{"hover", "basic"}, id2a)
	assert.Equal(t, TestID{"hover", "markdown"}, id2b)
}

func TestResultsCountsOnlyLeaves(t *testing.T) {
	r := Results{Tests: []TestResult{
		{TestID: TestID{"a", "1"}, Leaf: true},
		{TestID: TestID{"a", "2"}, Leaf: true, Errors: []error{assert.AnError}},
		{TestID: TestID{"a"}},
		{TestID: nil},
	}}
	total, passed := r.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, passed)
}
