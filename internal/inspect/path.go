package inspect

import (
	"path"
	"strings"
)

// VolumePath is an absolute, cleaned path on the flash volume.
type VolumePath struct {
	// always starts with /
	path string
}

// NewVolumePath cleans p and makes it absolute.
func NewVolumePath(p string) *VolumePath {
	cleaned := path.Clean("/" + strings.TrimSpace(p))
	return &VolumePath{path: cleaned}
}

// String returns the string representation of the path
func (vp *VolumePath) String() string {
	return vp.path
}

// Join returns the child path name below vp.
func (vp *VolumePath) Join(name string) *VolumePath {
	return NewVolumePath(vp.path + "/" + name)
}

// Parent returns a VolumePath representing the parent directory
func (vp *VolumePath) Parent() *VolumePath {
	return NewVolumePath(path.Dir(vp.path))
}

// Base returns the last element of the path
func (vp *VolumePath) Base() string {
	return path.Base(vp.path)
}

// IsRoot returns true if this is the volume root "/"
func (vp *VolumePath) IsRoot() bool {
	return vp.path == "/"
}
