package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/chataigne-ai/chataigne/internal/tool"
)

const listLimit = 500

type listFilesRequest struct {
	Path string `mapstructure:"path"`
}

// ListFiles returns a tool that lists files under root, honouring the
// workspace's .gitignore and always skipping .git. Paths in requests
// are relative to root; escaping it is rejected.
func ListFiles(root string) tool.Definition {
	return tool.Typed("list_files", "List files under a directory of the workspace, respecting .gitignore.",
		&tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path": {Type: tool.TypeString, Description: "directory relative to the workspace root, empty for the root itself"},
			},
		},
		func(ctx context.Context, req listFilesRequest) (string, error) {
			return listFiles(ctx, root, req.Path)
		},
	)
}

func listFiles(ctx context.Context, root, rel string) (string, error) {
	start := filepath.Join(root, filepath.Clean("/"+rel))
	if !strings.HasPrefix(start, filepath.Clean(root)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}

	matcher, err := newIgnoreMatcher(root)
	if err != nil {
		return "", fmt.Errorf("load .gitignore: %w", err)
	}

	var lines []string
	truncated := false
	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if relPath == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || matcher.ShouldIgnore(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.ShouldIgnore(relPath, false) {
			return nil
		}
		if len(lines) >= listLimit {
			truncated = true
			return filepath.SkipAll
		}
		lines = append(lines, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(lines) == 0 {
		return "(no files)", nil
	}
	if truncated {
		lines = append(lines, fmt.Sprintf("... truncated at %d entries", listLimit))
	}
	return strings.Join(lines, "\n"), nil
}
