package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const gitRevParseTimeout = 5 * time.Second

// resolveRepo turns a user-supplied repo path into an absolute root and a
// revision identifier: the commit hash when the path sits inside a git
// work tree, otherwise a content digest over the tree's file paths, sizes,
// and mod times. Mirrors the precedent set by step input fingerprints
// (sha256 over stable inputs) rather than introducing a new hash scheme.
//
// outputPath is the repo-relative knowledge file path (app.Settings.Output.
// Path) and is excluded from the content digest: it's an artifact raidme
// itself writes into the repo root, and hashing it would make every commands
// revision drift the moment analyze ran once, defeating resumability for
// repos with no git history.
func resolveRepo(path, outputPath string) (root, revision string, err error) {
	root, err = filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve repo path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", "", fmt.Errorf("stat repo path: %w", err)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("repo path %q is not a directory", root)
	}

	if rev, ok := gitRevision(root); ok {
		return root, rev, nil
	}

	rev, err := contentDigest(root, outputPath)
	if err != nil {
		return "", "", fmt.Errorf("compute content digest: %w", err)
	}
	return root, rev, nil
}

func gitRevision(root string) (string, bool) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), gitRevParseTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "-C", root, "rev-parse", "HEAD").Output() //nolint:gosec // G204: git is a known system tool
	if err != nil {
		return "", false
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", false
	}
	return rev, true
}

// contentDigest hashes every regular file's relative path, size, and mod
// time under root, skipping the same .git directory a git-backed revision
// would otherwise key off of, plus the knowledge file outputPath names.
// Deterministic regardless of walk order since entries are sorted before
// hashing.
func contentDigest(root, outputPath string) (string, error) {
	type entry struct {
		path string
		size int64
		mod  int64
	}
	var entries []entry

	outputRel := filepath.Clean(outputPath)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if !filepath.IsAbs(outputPath) && rel == outputRel {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		entries = append(entries, entry{path: rel, size: info.Size(), mod: info.ModTime().UnixNano()})
		return nil
	})
	if walkErr != nil {
		return "", walkErr
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", e.path, e.size, e.mod)
	}
	return "digest_" + hex.EncodeToString(h.Sum(nil))[:24], nil
}
