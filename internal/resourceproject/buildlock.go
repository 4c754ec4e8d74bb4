package resourceproject

import (
	"fmt"
	"os"
)

// BuildLock is the `<workspace>.build_lock` sentinel file held for the
// duration of a resource build: its presence signals another build is in
// progress against the same workspace.
type BuildLock struct {
	path string
}

// AcquireBuildLock creates the lock file exclusively, failing if one
// already exists for workspaceDir.
func AcquireBuildLock(workspaceDir string) (*BuildLock, error) {
	path := workspaceDir + ".build_lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("resourceproject: build already in progress for %q: %w", workspaceDir, err)
	}
	f.Close()
	return &BuildLock{path: path}, nil
}

// Release removes the lock file. Builds must release the lock on every
// exit path, success or failure, so a crashed build doesn't wedge future
// runs — callers typically `defer lock.Release()` immediately after
// acquiring it.
func (l *BuildLock) Release() error {
	return os.Remove(l.path)
}
