// Package file provides file-based persistence: every record is a JSON document
// under a root directory. Suitable for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/agencyflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// A single mutex serializes writers, which gives compare-and-swap and
// multi-document updates within one process.
type Persistence struct {
	root string
	mu   sync.Mutex

	definitionRepo *DefinitionRepository
	runRepo        *RunRepository
	dashboardRepo  *DashboardRepository
	rotationCursor *RotationCursor
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.definitionRepo = &DefinitionRepository{store: p}
	p.runRepo = &RunRepository{store: p}
	p.dashboardRepo = &DashboardRepository{store: p}
	p.rotationCursor = &RotationCursor{store: p}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return fp.definitionRepo
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

func (fp *Persistence) DashboardRepository() persistence.DashboardRepository {
	return fp.dashboardRepo
}

func (fp *Persistence) RotationCursor() persistence.RotationCursor {
	return fp.rotationCursor
}

func (fp *Persistence) path(collection, id string) string {
	return filepath.Clean(filepath.Join(fp.root, collection, id+".json"))
}

// read decodes one document. found is false when the file does not exist.
func (fp *Persistence) read(collection, id string, target any) (bool, error) {
	body, err := os.ReadFile(fp.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
	}

	return true, nil
}

// write stores one document through a temp file and rename so readers never
// observe a partial write.
func (fp *Persistence) write(collection, id string, value any) error {
	dir := filepath.Join(fp.root, collection)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s/%s: %w", collection, id, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close %s/%s: %w", collection, id, err)
	}

	if err := os.Rename(tmp.Name(), fp.path(collection, id)); err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", collection, id, err)
	}

	return nil
}

func (fp *Persistence) remove(collection, id string) (bool, error) {
	err := os.Remove(fp.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return true, nil
}

// ids lists document ids of a collection.
func (fp *Persistence) ids(collection string) ([]string, error) {
	root := os.DirFS(filepath.Join(fp.root, collection))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

// readAll decodes every document of a collection.
func readAll[T any](fp *Persistence, collection string) ([]*T, error) {
	ids, err := fp.ids(collection)
	if err != nil {
		return nil, err
	}

	items := make([]*T, 0, len(ids))

	for _, id := range ids {
		var item T

		found, err := fp.read(collection, id, &item)
		if err != nil {
			return nil, err
		}

		if found {
			items = append(items, &item)
		}
	}

	return items, nil
}
