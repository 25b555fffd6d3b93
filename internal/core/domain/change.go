package domain

// ChangeOp identifies the kind of change reported for a source path.
type ChangeOp string

const (
	// OpAdd reports a newly created file. Treated identically to OpModify.
	OpAdd ChangeOp = "add"

	// OpModify reports a changed file.
	OpModify ChangeOp = "modify"

	// OpDelete reports a removed file. The engine records it and does
	// nothing: remote pages are never deleted in response.
	OpDelete ChangeOp = "delete"

	// OpRename reports a moved file. The page identity is re-keyed to the
	// new path, the remote page is kept.
	OpRename ChangeOp = "rename"
)

// IsValid returns true if the change op is recognised.
func (o ChangeOp) IsValid() bool {
	switch o {
	case OpAdd, OpModify, OpDelete, OpRename:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (o ChangeOp) String() string {
	return string(o)
}

// ChangeRecord is one entry of a changeset, naming an operation on a
// source path. NewPath is set for renames only.
type ChangeRecord struct {
	// Op is the reported operation.
	Op ChangeOp

	// Path is the tree-relative path the operation applies to.
	// For renames this is the old path.
	Path string

	// NewPath is the destination path of a rename, empty otherwise.
	NewPath string
}

// Changeset is an ordered list of change records, either parsed from a
// change listing or synthesised from a full tree walk.
type Changeset struct {
	// Records holds the changes in input order.
	Records []ChangeRecord

	// Full marks a changeset synthesised from a complete tree walk
	// rather than parsed from a change listing.
	Full bool
}

// IsEmpty returns true if the changeset carries no records.
func (c *Changeset) IsEmpty() bool {
	return c == nil || len(c.Records) == 0
}
