package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestChangeOp_IsValid tests change op validation
func TestChangeOp_IsValid(t *testing.T) {
	assert.True(t, OpAdd.IsValid())
	assert.True(t, OpModify.IsValid())
	assert.True(t, OpDelete.IsValid())
	assert.True(t, OpRename.IsValid())
	assert.False(t, ChangeOp("copy").IsValid())
	assert.False(t, ChangeOp("").IsValid())
}

// TestChangeset_IsEmpty tests empty detection
func TestChangeset_IsEmpty(t *testing.T) {
	var nilSet *Changeset
	assert.True(t, nilSet.IsEmpty())

	assert.True(t, (&Changeset{}).IsEmpty())

	set := &Changeset{Records: []ChangeRecord{{Op: OpModify, Path: "a.md"}}}
	assert.False(t, set.IsEmpty())
}
