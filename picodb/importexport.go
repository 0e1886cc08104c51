package picodb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/edgestore-io/picodb/document"
	"github.com/edgestore-io/picodb/status"
)

// exportPause is the short sleep export_to_json_async takes between
// emitted records so a large export doesn't monopolize the device
// (spec.md §4.6).
const exportPause = 100 * time.Microsecond

// ImportSummary reports per-item outcomes of ImportFromJSONFile
// (spec.md §4.6's "Reports per-item success/failure counts").
type ImportSummary struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// ImportFromJSONFile reads a JSON array of document bodies from path and
// creates one document per element, using the element's "_id" field as the
// document id when present. Per-item failures are collected rather than
// aborting the whole import.
func (c *Collection) ImportFromJSONFile(path string) (ImportSummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, status.Wrap(status.IoError, err, "picodb: read import file %q", path).WithCollection(c.name)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ImportSummary{}, status.Wrap(status.InvalidArgument, err, "picodb: import file %q is not a JSON array", path).WithCollection(c.name)
	}

	var summary ImportSummary
	for _, item := range items {
		var body document.Value
		if err := body.UnmarshalJSON(item); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, err)
			continue
		}
		id := ""
		if idv, ok := body.Field("_id"); ok && idv.Kind() == document.String {
			id = idv.String()
		}
		if _, err := c.CreateDocument(id, body); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, err)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

// exportState tracks one collection's in-flight export so WaitExport can
// block on it and a second concurrent export can be rejected.
type exportState struct {
	done chan struct{}
	err  error
}

// ExportToJSONAsync streams every document in the collection to
// <dir>/<name>.dump as a JSON array, then renames the file to
// <dir>/<name>.json on success. It runs on the DB's shared background
// group; use WaitExport to block until it finishes.
func (c *Collection) ExportToJSONAsync(dir string) error {
	c.exportMu.Lock()
	if c.export != nil {
		select {
		case <-c.export.done:
		default:
			c.exportMu.Unlock()
			return status.New(status.InvalidArgument, "export already in progress").WithCollection(c.name)
		}
	}
	state := &exportState{done: make(chan struct{})}
	c.export = state
	c.exportMu.Unlock()

	c.db.runBackground(func(ctx context.Context) error {
		defer close(state.done)
		state.err = c.runExport(ctx, dir)
		return nil
	})
	return nil
}

// WaitExport blocks until the collection's most recent export finishes, or
// ctx is cancelled. It returns nil if no export was ever started.
func (c *Collection) WaitExport(ctx context.Context) error {
	c.exportMu.Lock()
	state := c.export
	c.exportMu.Unlock()
	if state == nil {
		return nil
	}
	select {
	case <-state.done:
		return state.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collection) runExport(ctx context.Context, dir string) error {
	dumpPath := filepath.Join(dir, c.name+".dump")
	finalPath := filepath.Join(dir, c.name+".json")

	f, err := os.Create(dumpPath)
	if err != nil {
		return status.Wrap(status.IoError, err, "picodb: create export file %q", dumpPath).WithCollection(c.name)
	}

	if err := c.writeExport(ctx, f); err != nil {
		f.Close()
		os.Remove(dumpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(dumpPath)
		return status.Wrap(status.IoError, err, "picodb: close export file %q", dumpPath).WithCollection(c.name)
	}
	if err := os.Rename(dumpPath, finalPath); err != nil {
		os.Remove(dumpPath)
		return status.Wrap(status.IoError, err, "picodb: rename export file to %q", finalPath).WithCollection(c.name)
	}
	return nil
}

func (c *Collection) writeExport(ctx context.Context, f *os.File) error {
	cur, err := c.Cursor()
	if err != nil {
		return err
	}

	if _, err := f.WriteString("[\n"); err != nil {
		return status.Wrap(status.IoError, err, "picodb: write export file").WithCollection(c.name)
	}
	first := true
	for cur.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		env := cur.Document()
		data, err := env.Data.MarshalJSON()
		if err != nil {
			return status.Wrap(status.InternalError, err, "picodb: encode exported document").WithCollection(c.name).WithKey(env.ID)
		}
		if !first {
			if _, err := f.WriteString(",\n"); err != nil {
				return status.Wrap(status.IoError, err, "picodb: write export file").WithCollection(c.name)
			}
		}
		first = false
		if _, err := f.Write(data); err != nil {
			return status.Wrap(status.IoError, err, "picodb: write export file").WithCollection(c.name)
		}
		time.Sleep(exportPause)
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if _, err := f.WriteString("\n]\n"); err != nil {
		return status.Wrap(status.IoError, err, "picodb: write export file").WithCollection(c.name)
	}
	return nil
}
