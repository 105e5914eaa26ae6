package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

// loadProfiles reads the optional profiles file (default .qualitykeeper.yaml)
// from the workspace root. A missing file is not an error — it simply means
// no named profiles are available. A present-but-malformed file is
// InvalidProfile.
func loadProfiles(root, profilesFile string) (map[string]Profile, error) {
	path := profilesFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, profilesFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, pipelineerr.Newf(pipelineerr.InvalidProfile, "cannot read profiles file %s: %v", path, err)
	}

	var doc profilesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pipelineerr.Newf(pipelineerr.InvalidProfile, "malformed profiles file %s: %v", path, err)
	}
	if doc.Profiles == nil {
		doc.Profiles = map[string]Profile{}
	}
	return doc.Profiles, nil
}

// ResolveProfile looks up a named profile, returning InvalidProfile if the
// name is non-empty but unknown.
func (c *ResolvedConfig) ResolveProfile(name string) (Profile, error) {
	if name == "" {
		return Profile{}, nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, pipelineerr.Newf(pipelineerr.InvalidProfile, "unknown profile: %s", name)
	}
	return p, nil
}
