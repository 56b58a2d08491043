// Package importer reads tabular voucher batches (CSV, TSV, XLSX), groups
// rows into voucher candidates, resolves their accounts and commits the clean
// candidates as DRAFT vouchers.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Row is one data row keyed by header name.
type Row map[string]string

// Table is a parsed sheet: the header row and the data rows under it.
type Table struct {
	Columns []string
	Rows    []Row
}

// Reader converts a file into a Table.
type Reader interface {
	Read(r io.Reader) (Table, error)
	Format() string
}

// Registry holds named readers.
type Registry struct {
	readers map[string]Reader
}

// FileInfo describes a file in the import directory.
type FileInfo struct {
	Name   string
	Path   string
	Size   int64
	Format string
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(format)]
}

// ForFile returns the reader matching the file extension, or nil.
func (r *Registry) ForFile(name string) Reader {
	return r.Get(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Load reads the file at path with the reader for its extension.
func (r *Registry) Load(path string) (Table, error) {
	rd := r.ForFile(path)
	if rd == nil {
		return Table{}, fmt.Errorf("no reader for %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := rd.Read(f)
	if err != nil {
		return Table{}, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// DefaultRegistry returns a registry with all built-in readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DelimitedReader{Name: "csv", Comma: ','})
	r.Register(&DelimitedReader{Name: "tsv", Comma: '\t'})
	r.Register(&XLSXReader{})
	return r
}

// DefaultDir is the import directory under the project root.
const DefaultDir = "import"

const processedSubdir = "processed"

// Scan returns the importable files in <root>/<dir>/. Subdirectories, the
// processed one included, are skipped.
func Scan(root, dir string, reg *Registry) ([]FileInfo, error) {
	if dir == "" {
		dir = DefaultDir
	}
	path := filepath.Join(root, dir)
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rd := reg.ForFile(e.Name())
		if rd == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:   e.Name(),
			Path:   filepath.Join(path, e.Name()),
			Size:   info.Size(),
			Format: rd.Format(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from <dir>/ to <dir>/processed/.
func MarkProcessed(root, dir, fileName string) error {
	if dir == "" {
		dir = DefaultDir
	}
	src := filepath.Join(root, dir, fileName)
	dstDir := filepath.Join(root, dir, processedSubdir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
