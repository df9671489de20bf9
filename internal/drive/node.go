// Package drive implements the DigiData metadata core: a hierarchical
// file/folder store with trash, starring, sharing, per-owner quota
// accounting, and read views (drive, recent, starred, shared, trash,
// search). All state mutations run inside a single consistency domain
// guarded by the Store lock; callers supply the acting principal on
// every operation.
package drive

import "time"

// Kind distinguishes folders from files.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Permission is an access level a principal holds on a node.
type Permission string

const (
	PermissionOwner  Permission = "owner"
	PermissionEditor Permission = "editor"
	PermissionViewer Permission = "viewer"
	PermissionNone   Permission = "none"
)

// RootName is the display name of the synthetic root in breadcrumbs.
const RootName = "My Drive"

// Node is a file or folder in the hierarchy. ParentID is empty for
// root-level nodes. Files carry a ContentHandle pointing into the blob
// store; folders always have SizeBytes 0.
type Node struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	ParentID      string    `json:"parent_id,omitempty"`
	Name          string    `json:"name"`
	Kind          Kind      `json:"kind"`
	ContentHandle string    `json:"-"`
	ThumbHandle   string    `json:"-"`
	SizeBytes     int64     `json:"size_bytes"`
	MimeHint      string    `json:"mime_hint,omitempty"`
	Starred       bool      `json:"is_starred"`
	Trashed       bool      `json:"is_trashed"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
	TrashedAt     time.Time `json:"trashed_at,omitempty"`
}

// IsFolder reports whether the node can contain children.
func (n *Node) IsFolder() bool { return n.Kind == KindFolder }

// clone returns a copy of the node so callers never alias store state.
func (n *Node) clone() *Node {
	c := *n
	return &c
}

// Grant records a direct sharing permission on a node for a non-owner
// principal. Grants are never inherited down the tree; visibility and
// permission checks look at direct grants only.
type Grant struct {
	NodeID     string     `json:"node_id"`
	Grantee    string     `json:"grantee"`
	Permission Permission `json:"permission"`
}
