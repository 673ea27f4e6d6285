package index

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type claudeFile struct {
	Path       string
	ProjectDir string
}

// discoverClaudeFiles lists top-level *.jsonl transcripts under every
// project directory in root. Nested directories hold sub-agent runs and are
// not descended into.
func discoverClaudeFiles(entries []os.DirEntry, root string, exclude []string, diag Diagnostics) []claudeFile {
	files := make([]claudeFile, 0, 64)
	for _, entry := range entries {
		if !isDirOrSymlink(entry, root) {
			continue
		}
		projDir := filepath.Join(root, entry.Name())
		sessionFiles, err := os.ReadDir(projDir)
		if err != nil {
			diag.Skipped(SourceClaude, projDir, err)
			continue
		}
		for _, sf := range sessionFiles {
			name := sf.Name()
			if sf.IsDir() || !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			if excluded(name, exclude) {
				continue
			}
			files = append(files, claudeFile{
				Path:       filepath.Join(projDir, name),
				ProjectDir: entry.Name(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files
}

// discoverOpenCodeSessions lists the per-session directories under
// storage/message.
func discoverOpenCodeSessions(entries []os.DirEntry, messageRoot string) []string {
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !isDirOrSymlink(entry, messageRoot) {
			continue
		}
		dirs = append(dirs, filepath.Join(messageRoot, entry.Name()))
	}
	sort.Strings(dirs)
	return dirs
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// isDirOrSymlink reports whether entry is a directory or a symlink that
// resolves to one.
func isDirOrSymlink(entry os.DirEntry, parentDir string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(parentDir, entry.Name()))
	return err == nil && fi.IsDir()
}

// jsonFiles returns the sorted *.json file names in dir.
func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
