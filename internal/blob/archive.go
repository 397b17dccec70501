package blob

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"barcoder/pkg/domain"
)

// Archive copies generated artifacts into a Store under
//
//	batches/<project>/<batch dir name>/<file>
//	sheets/<project>/<file>
type Archive struct {
	store Store
}

// NewArchive wraps store.
func NewArchive(store Store) *Archive { return &Archive{store: store} }

// Store returns the wrapped store.
func (a *Archive) Store() Store { return a.store }

// BatchPrefix is the key prefix of a project's archived batches.
func BatchPrefix(project string) string { return path.Join("batches", project) + "/" }

// SheetPrefix is the key prefix of a project's archived sheets.
func SheetPrefix(project string) string { return path.Join("sheets", project) + "/" }

// ArchiveBatch uploads every file of batch. Files that fail are collected and
// the remaining ones are still uploaded.
func (a *Archive) ArchiveBatch(ctx context.Context, project string, batch domain.PrintBatch) ([]Object, error) {
	if project == "" {
		return nil, fmt.Errorf("archive batch: project required")
	}
	prefix := BatchPrefix(project) + filepath.Base(batch.Dir) + "/"
	meta := map[string]string{"project": project, "created_at": batch.CreatedAt.UTC().Format(time.RFC3339)}
	var objs []Object
	var errs *multierror.Error
	for _, name := range batch.Files {
		obj, err := a.upload(ctx, filepath.Join(batch.Dir, name), prefix+name, meta)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		objs = append(objs, obj)
	}
	return objs, errs.ErrorOrNil()
}

// ArchiveSheet uploads a generated sample sheet document.
func (a *Archive) ArchiveSheet(ctx context.Context, project, file string) (Object, error) {
	if project == "" {
		return Object{}, fmt.Errorf("archive sheet: project required")
	}
	return a.upload(ctx, file, SheetPrefix(project)+filepath.Base(file), map[string]string{"project": project})
}

// List returns archived objects below prefix.
func (a *Archive) List(ctx context.Context, prefix string) ([]Object, error) {
	return a.store.List(ctx, prefix)
}

func (a *Archive) upload(ctx context.Context, file, key string, meta map[string]string) (Object, error) {
	f, err := os.Open(file) // #nosec G304 -- files come from the results tree
	if err != nil {
		return Object{}, fmt.Errorf("archive %s: %w", key, err)
	}
	defer f.Close()
	obj, err := a.store.Put(ctx, key, f, PutOptions{ContentType: contentType(file), Metadata: meta})
	if err != nil {
		return Object{}, fmt.Errorf("archive %s: %w", key, err)
	}
	return obj, nil
}

func contentType(file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	switch ext {
	case ".doc":
		return "application/msword"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
