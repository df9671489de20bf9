package drive

import (
	"fmt"
	"time"

	"github.com/arjunkorath02/DigiData/internal/metrics"
)

// observe records per-operation metrics. Registered with defer so the
// duration covers lock wait plus the operation itself.
func (s *Store) observe(op string, start time.Time, err *error) {
	metrics.RecordDriveOp(op, time.Since(start), *err)
}

// CreateFolder creates a folder under parentID (empty for the owner's
// root). The parent must be a live folder the owner may write to.
func (s *Store) CreateFolder(owner, parentID, name string) (node *Node, err error) {
	defer s.observe("create_folder", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	if err := s.writableFolder(owner, parentID); err != nil {
		return nil, fmt.Errorf("create folder %q: %w", name, err)
	}
	if s.nameInUse(owner, parentID, name, "") {
		return nil, fmt.Errorf("create folder %q: %w", name, ErrNameConflict)
	}

	now := s.now()
	n := &Node{
		ID:         s.newID(),
		OwnerID:    owner,
		ParentID:   parentID,
		Name:       name,
		Kind:       KindFolder,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	s.nodes[n.ID] = n
	return n.clone(), nil
}

// CreateFile creates a file node referencing already-stored content.
// The owner's quota is checked and charged in the same critical
// section, so two concurrent uploads cannot both pass the check.
func (s *Store) CreateFile(owner, parentID, name, contentHandle string, sizeBytes int64, mimeHint string) (node *Node, err error) {
	defer s.observe("create_file", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	if err := s.writableFolder(owner, parentID); err != nil {
		return nil, fmt.Errorf("create file %q: %w", name, err)
	}
	if s.nameInUse(owner, parentID, name, "") {
		return nil, fmt.Errorf("create file %q: %w", name, ErrNameConflict)
	}
	if err := s.reserve(owner, sizeBytes); err != nil {
		return nil, fmt.Errorf("create file %q: %w", name, err)
	}

	now := s.now()
	n := &Node{
		ID:            s.newID(),
		OwnerID:       owner,
		ParentID:      parentID,
		Name:          name,
		Kind:          KindFile,
		ContentHandle: contentHandle,
		SizeBytes:     sizeBytes,
		MimeHint:      mimeHint,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	s.nodes[n.ID] = n
	return n.clone(), nil
}

// ReplaceContent swaps a live file's content handle and size. Allowed
// for the owner or a direct editor grantee; the quota delta is charged
// to the file's owner. Returns the updated node and the previous
// content handle so the caller can delete the superseded blob.
func (s *Store) ReplaceContent(principal, nodeID, contentHandle string, sizeBytes int64) (node *Node, oldHandle string, err error) {
	defer s.observe("replace_content", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, "", err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.Trashed || n.Kind != KindFile {
		return nil, "", fmt.Errorf("replace content %s: %w", nodeID, ErrNotFound)
	}
	if n.OwnerID != principal && s.grants[nodeID][principal] != PermissionEditor {
		return nil, "", fmt.Errorf("replace content %s: %w", nodeID, ErrNotFound)
	}
	if err := s.reserve(n.OwnerID, sizeBytes-n.SizeBytes); err != nil {
		return nil, "", fmt.Errorf("replace content %q: %w", n.Name, err)
	}

	oldHandle = n.ContentHandle
	n.ContentHandle = contentHandle
	n.SizeBytes = sizeBytes
	n.ModifiedAt = s.now()
	return n.clone(), oldHandle, nil
}

// SetThumbHandle records the thumbnail blob key for a file. Bookkeeping
// only: no permission check and no modified_at bump.
func (s *Store) SetThumbHandle(nodeID, thumbHandle string) error {
	if err := s.mu.lock(); err != nil {
		return err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil {
		return fmt.Errorf("set thumb %s: %w", nodeID, ErrNotFound)
	}
	n.ThumbHandle = thumbHandle
	return nil
}

// Move reparents a live node. Rejected if the destination sits inside
// the node's own subtree (the parent graph must stay a forest) or if a
// live sibling at the destination claims the name.
func (s *Store) Move(principal, nodeID, newParentID string) (node *Node, err error) {
	defer s.observe("move", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.Trashed || n.OwnerID != principal {
		return nil, fmt.Errorf("move %s: %w", nodeID, ErrNotFound)
	}
	if err := s.writableFolder(principal, newParentID); err != nil {
		return nil, fmt.Errorf("move %q: %w", n.Name, err)
	}
	inside, err := s.isDescendant(newParentID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("move %q: %w", n.Name, err)
	}
	if inside {
		return nil, fmt.Errorf("move %q: %w", n.Name, ErrCycleDetected)
	}
	if s.nameInUse(n.OwnerID, newParentID, n.Name, n.ID) {
		return nil, fmt.Errorf("move %q: %w", n.Name, ErrNameConflict)
	}

	n.ParentID = newParentID
	n.ModifiedAt = s.now()
	return n.clone(), nil
}

// Rename changes a live node's display name, checking the new name
// against its current live siblings.
func (s *Store) Rename(principal, nodeID, newName string) (node *Node, err error) {
	defer s.observe("rename", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.Trashed || n.OwnerID != principal {
		return nil, fmt.Errorf("rename %s: %w", nodeID, ErrNotFound)
	}
	if s.nameInUse(n.OwnerID, n.ParentID, newName, n.ID) {
		return nil, fmt.Errorf("rename to %q: %w", newName, ErrNameConflict)
	}

	n.Name = newName
	n.ModifiedAt = s.now()
	return n.clone(), nil
}

// ResolvePath returns breadcrumbs for a node: the synthetic root,
// then ancestors oldest-first, then the node itself. If an ancestor
// was purged the chain is partial from the deepest survivor; that is
// not an error. A cycle in the parent graph is, and reports
// ErrCorruptHierarchy without touching the subtree.
func (s *Store) ResolvePath(nodeID string) (path []*Node, err error) {
	defer s.observe("resolve_path", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	n := s.node(nodeID)
	if n == nil {
		return nil, fmt.Errorf("resolve path %s: %w", nodeID, ErrNotFound)
	}
	return s.breadcrumbsLocked(n)
}

// ChildFilter selects which lifecycle state ListChildren returns.
type ChildFilter string

const (
	FilterLive    ChildFilter = "live"
	FilterTrashed ChildFilter = "trashed"
)

// ListChildren returns the direct children of a folder in the given
// lifecycle state. Order is unspecified; callers sort for display.
func (s *Store) ListChildren(folderID string, filter ChildFilter) (children []*Node, err error) {
	defer s.observe("list_children", time.Now(), &err)
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	folder := s.node(folderID)
	if folder == nil || !folder.IsFolder() {
		return nil, fmt.Errorf("list children %s: %w", folderID, ErrNotFound)
	}
	for _, n := range s.nodes {
		if n.ParentID != folderID {
			continue
		}
		if (filter == FilterTrashed) != n.Trashed {
			continue
		}
		children = append(children, n.clone())
	}
	return children, nil
}
