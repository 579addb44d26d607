package sandbox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// workspaceIDBytes yields a 16 hex character id
const workspaceIDBytes = 8

// Workspace is the private directory of a single execution
type Workspace struct {
	ID   string
	Path string
	fs   FileSystem
}

// NewWorkspace creates a fresh, uniquely named directory under root.
// The leaf is created with Mkdir so an existing directory is never reused.
func NewWorkspace(fs FileSystem, root string) (*Workspace, error) {
	id, err := newWorkspaceID()
	if err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(root, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}
	path := filepath.Join(root, id)
	if err := fs.Mkdir(path, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{ID: id, Path: path, fs: fs}, nil
}

// WriteFile writes data to name inside the workspace and returns its path
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(w.Path, name)
	if err := w.fs.WriteFile(path, data, FilePermission); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes the workspace and everything in it
func (w *Workspace) Remove() error {
	return w.fs.RemoveAll(w.Path)
}

func newWorkspaceID() (string, error) {
	buf := make([]byte, workspaceIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate workspace id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
