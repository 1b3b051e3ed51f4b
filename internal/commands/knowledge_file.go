package commands

import (
	"os"
	"path/filepath"
)

// writeKnowledgeFile writes the rendered knowledge text to outputPath,
// resolved relative to repoRoot when it isn't already absolute.
func writeKnowledgeFile(repoRoot, outputPath, knowledge string) error {
	path := outputPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return os.WriteFile(path, []byte(knowledge), 0o644)
}
