package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/furniture.json
var defaultCatalog []byte

// Load reads a catalog file. JSON and YAML are selected by extension.
// An empty path loads the embedded default catalog.
func Load(logger *slog.Logger, path string) (*Catalog, error) {
	if path == "" {
		logger.Info("loading embedded persona catalog")
		return Parse(logger, defaultCatalog, ".json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	c, err := Parse(logger, data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	logger.Info("loaded persona catalog", "path", path, "personas", c.Len())
	return c, nil
}

// Parse decodes a sequence of persona records. ext is a file extension
// such as ".json" or ".yaml".
func Parse(logger *slog.Logger, data []byte, ext string) (*Catalog, error) {
	var records []Profile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	case ".json", "":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	return New(logger, records), nil
}
