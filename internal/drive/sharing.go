package drive

import (
	"fmt"
	"time"
)

// Share upserts a direct grant on a live node. Re-sharing with the
// same grantee overwrites the previous permission. Grants never
// cascade: sharing a folder says nothing about files added to it
// later.
func (s *Store) Share(principal, nodeID, grantee string, perm Permission) (err error) {
	defer s.observe("share", time.Now(), &err)
	if perm != PermissionViewer && perm != PermissionEditor {
		return fmt.Errorf("share %s: invalid permission %q", nodeID, perm)
	}
	if err := s.mu.lock(); err != nil {
		return err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.Trashed || n.OwnerID != principal {
		return fmt.Errorf("share %s: %w", nodeID, ErrNotFound)
	}
	if grantee == n.OwnerID {
		return fmt.Errorf("share %q: %w", n.Name, ErrSelfShare)
	}

	m := s.grants[nodeID]
	if m == nil {
		m = make(map[string]Permission)
		s.grants[nodeID] = m
	}
	m[grantee] = perm
	return nil
}

// Unshare removes a grant. Removing an absent grant is a no-op.
func (s *Store) Unshare(principal, nodeID, grantee string) (err error) {
	defer s.observe("unshare", time.Now(), &err)
	if err := s.mu.lock(); err != nil {
		return err
	}
	defer s.mu.unlock()

	n := s.node(nodeID)
	if n == nil || n.OwnerID != principal {
		return fmt.Errorf("unshare %s: %w", nodeID, ErrNotFound)
	}
	delete(s.grants[nodeID], grantee)
	return nil
}

// PermissionOf reports the principal's access to a node: owner
// implicitly holds full rights, otherwise only a direct grant counts.
func (s *Store) PermissionOf(nodeID, principal string) (Permission, error) {
	if err := s.mu.rlock(); err != nil {
		return PermissionNone, err
	}
	defer s.mu.runlock()

	n := s.node(nodeID)
	if n == nil {
		return PermissionNone, fmt.Errorf("permission of %s: %w", nodeID, ErrNotFound)
	}
	if n.OwnerID == principal {
		return PermissionOwner, nil
	}
	if p, ok := s.grants[nodeID][principal]; ok {
		return p, nil
	}
	return PermissionNone, nil
}

// Grants returns the direct grants on a node, owner only.
func (s *Store) Grants(principal, nodeID string) ([]Grant, error) {
	if err := s.mu.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.runlock()

	n := s.node(nodeID)
	if n == nil || n.OwnerID != principal {
		return nil, fmt.Errorf("grants %s: %w", nodeID, ErrNotFound)
	}
	var out []Grant
	for grantee, perm := range s.grants[nodeID] {
		out = append(out, Grant{NodeID: nodeID, Grantee: grantee, Permission: perm})
	}
	return out, nil
}

// permissionLocked is PermissionOf for callers already holding a lock.
func (s *Store) permissionLocked(n *Node, principal string) Permission {
	if n.OwnerID == principal {
		return PermissionOwner
	}
	if p, ok := s.grants[n.ID][principal]; ok {
		return p
	}
	return PermissionNone
}
