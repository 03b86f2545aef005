package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ModuleManifest represents the manifest.yaml structure for a widget module
type ModuleManifest struct {
	Type            string `yaml:"type" json:"type"`
	Name            string `yaml:"name" json:"name"`
	Summary         string `yaml:"summary" json:"summary"`
	Description     string `yaml:"desc" json:"description"`
	Author          string `yaml:"author" json:"author"`
	PreviewIcon     string `yaml:"previewIcon" json:"previewIcon"`
	RenderAs        string `yaml:"renderAs" json:"renderAs"`
	DefaultDuration int    `yaml:"defaultDuration" json:"defaultDuration"`

	// Runtime fields (not in manifest)
	DirectoryPath   string `yaml:"-" json:"directoryPath,omitempty"`
	PreviewIconPath string `yaml:"-" json:"previewIconPath,omitempty"`
}

// ParseManifest decodes manifest YAML without touching the filesystem
func ParseManifest(data []byte) (*ModuleManifest, error) {
	var manifest ModuleManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest file: %w", err)
	}
	if manifest.Type == "" {
		return nil, fmt.Errorf("manifest is missing a module type")
	}
	return &manifest, nil
}

// LoadManifest loads a manifest.yaml file from the given module directory
func LoadManifest(moduleDir string) (*ModuleManifest, error) {
	manifestPath := filepath.Join(moduleDir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	manifest.DirectoryPath = moduleDir
	if manifest.PreviewIcon != "" {
		manifest.PreviewIconPath = filepath.Join(moduleDir, manifest.PreviewIcon)
		if _, err := os.Stat(manifest.PreviewIconPath); err != nil {
			return nil, fmt.Errorf("preview icon not found: %s", manifest.PreviewIconPath)
		}
	}

	return manifest, nil
}

// ManifestRegistry holds the manifests of the installed modules, keyed by type
type ManifestRegistry struct {
	manifests map[string]*ModuleManifest
	logger    *zap.Logger
}

// NewManifestRegistry creates an empty manifest registry
func NewManifestRegistry(logger *zap.Logger) *ManifestRegistry {
	return &ManifestRegistry{
		manifests: make(map[string]*ModuleManifest),
		logger:    logger,
	}
}

// Add registers a manifest, replacing any manifest of the same type
func (r *ManifestRegistry) Add(manifest *ModuleManifest) {
	r.manifests[manifest.Type] = manifest
}

// LoadDir scans modulesDir for {module}/manifest.yaml and adds every valid manifest.
// Manifests found on disk override ones added earlier.
func (r *ManifestRegistry) LoadDir(modulesDir string) error {
	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return fmt.Errorf("failed to read modules directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		moduleDir := filepath.Join(modulesDir, entry.Name())
		manifest, err := LoadManifest(moduleDir)
		if err != nil {
			r.logger.Warn("Skipping module directory",
				zap.String("dir", moduleDir),
				zap.Error(err))
			continue
		}

		r.logger.Debug("Loaded module manifest", zap.String("type", manifest.Type))
		r.manifests[manifest.Type] = manifest
	}

	return nil
}

// Get returns a manifest by module type
func (r *ManifestRegistry) Get(moduleType string) (*ModuleManifest, bool) {
	manifest, exists := r.manifests[moduleType]
	return manifest, exists
}

// List returns all manifests ordered by type
func (r *ManifestRegistry) List() []*ModuleManifest {
	list := make([]*ModuleManifest, 0, len(r.manifests))
	for _, manifest := range r.manifests {
		list = append(list, manifest)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })
	return list
}
