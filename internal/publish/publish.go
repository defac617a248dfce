package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/taskstore"
)

const tasksDir = "tasks"

type WriteOptions struct {
	// RootID limits the export to one task and its subtasks.
	RootID    string
	Title     string
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteTree writes index.md and one page per task under toDir/tasks.
func WriteTree(tasks []model.Task, cat grouping.Catalog, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	ix := taskstore.IndexOf(tasks)
	roots := ix.Roots()
	if id := strings.TrimSpace(opt.RootID); id != "" {
		if _, ok := ix.Task(id); !ok {
			return WriteResult{}, mutate.NotFoundError{Kind: "task", ID: id}
		}
		roots = []string{id}
	}
	title := strings.TrimSpace(opt.Title)
	if title == "" {
		title = "Tasks"
	}

	pagesDir := filepath.Join(toDir, tasksDir)
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	indexPath := filepath.Join(toDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderIndexMarkdown(ix, title, roots)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stops on the first error; earlier pages stay written.
	written := []string{indexPath}
	for _, root := range roots {
		for _, id := range append([]string{root}, ix.Descendants(root)...) {
			md, err := RenderTaskMarkdown(ix, cat, id, RenderOptions{Links: true, Breadcrumb: true})
			if err != nil {
				return WriteResult{Written: written}, err
			}
			p := filepath.Join(pagesDir, id+".md")
			if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
				return WriteResult{Written: written}, err
			}
			written = append(written, p)
		}
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
