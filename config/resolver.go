package config

import (
	"fmt"
	"path/filepath"

	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/core/record"
)

// Resolver maps idx markers to archive pairs under an install folder.
//
// Marker i selects Containers[i]. With one index file and several
// containers every marker shares IndexFiles[0]; otherwise marker i uses
// IndexFiles[i]. The archive name is the index file name.
type Resolver struct {
	profile    Profile
	installDir string
	layout     record.Layout
}

// NewResolver validates p and returns a resolver rooted at installDir.
func NewResolver(p Profile, installDir string) (*Resolver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	layout, err := p.RecordLayout()
	if err != nil {
		return nil, err
	}
	return &Resolver{profile: p, installDir: installDir, layout: layout}, nil
}

// Profile returns the profile the resolver was built from.
func (r *Resolver) Profile() Profile {
	return r.profile
}

// Resolve implements modcore.Resolver.
func (r *Resolver) Resolve(marker uint8) (modcore.Target, error) {
	i := int(marker)
	if i >= len(r.profile.Containers) {
		return modcore.Target{}, fmt.Errorf("%s has %d containers", r.profile.ID, len(r.profile.Containers))
	}
	idx := r.indexFor(i)
	container := r.profile.Containers[i]
	return modcore.Target{
		Archive:   modcore.NormalizeArchive(idx),
		IndexPath: filepath.Join(r.installDir, filepath.FromSlash(idx)),
		BlobName:  container,
		BlobPath:  filepath.Join(r.installDir, filepath.FromSlash(container)),
		Layout:    r.layout,
	}, nil
}

func (r *Resolver) indexFor(i int) string {
	if len(r.profile.IndexFiles) == 1 {
		return r.profile.IndexFiles[0]
	}
	return r.profile.IndexFiles[i]
}

// Archives lists the archive names the profile defines.
func (r *Resolver) Archives() []string {
	var out []string
	seen := make(map[string]bool)
	for i := range r.profile.Containers {
		name := modcore.NormalizeArchive(r.indexFor(i))
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

var _ modcore.Resolver = (*Resolver)(nil)
