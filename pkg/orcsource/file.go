package orcsource

import (
	"fmt"

	"github.com/spf13/afero"
)

// FileSource reads an ORC file through an afero filesystem.
type FileSource struct {
	f    afero.File
	size int64
	path string
}

// OpenFile opens path on fs. The caller must Close the returned source.
func OpenFile(fs afero.Fs, path string) (*FileSource, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: is a directory", path)
	}

	return &FileSource{f: f, size: info.Size(), path: path}, nil
}

// OpenFiles opens every path on fs. On failure, already opened files are closed.
func OpenFiles(fs afero.Fs, paths []string) ([]*FileSource, error) {
	out := make([]*FileSource, 0, len(paths))
	for _, p := range paths {
		src, err := OpenFile(fs, p)
		if err != nil {
			for _, s := range out {
				_ = s.Close()
			}
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *FileSource) Size() (int64, error) { return s.size, nil }

func (s *FileSource) ReadAt(p []byte, off int64, _ DataType) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, fmt.Errorf("%s: %w: [%d, %d) of %d", s.path, ErrOutOfRange, off, off+int64(len(p)), s.size)
	}
	return s.f.ReadAt(p, off)
}

// Path returns the path the source was opened with.
func (s *FileSource) Path() string { return s.path }

// Name returns the path the source was opened with.
func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Close() error { return s.f.Close() }
