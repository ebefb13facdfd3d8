// Package store persists the transformed embedding matrices of a trial as
// a NumPy .npz archive, optionally zstd-compressed and mirrored to Azure
// Blob Storage.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/zstd"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

// EmbedMatsFile is the artifact name for per-checkpoint embedding matrices.
// Each checkpoint is one (rows, dim) array named by CheckpointName.
const EmbedMatsFile = "process2_embed_mats.npz"

// ZstdExt is appended to compressed artifacts.
const ZstdExt = ".zst"

// Key locates one artifact directory.
type Key struct {
	Architecture string
	Evaluation   string
	Data         string
	Process      string
}

// Rel returns <arch>/<eval>/<data>/<process>/<file>.
func (k Key) Rel(file string) string {
	return filepath.Join(k.Architecture, k.Evaluation, k.Data, k.Process, file)
}

// Uploader mirrors an artifact elsewhere.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// Local writes artifacts under a root directory.
type Local struct {
	root     string
	compress bool
	mirror   Uploader
	logger   *slog.Logger
}

// Option configures a Local store.
type Option func(*Local)

// WithCompression writes .npz.zst files instead of plain .npz.
func WithCompression() Option {
	return func(l *Local) { l.compress = true }
}

// WithMirror uploads every artifact after writing it locally.
func WithMirror(u Uploader) Option {
	return func(l *Local) { l.mirror = u }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

// NewLocal returns a store rooted at root.
func NewLocal(root string, opts ...Option) *Local {
	l := &Local{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the file an artifact for key is written to.
func (l *Local) Path(key Key) string {
	name := EmbedMatsFile
	if l.compress {
		name += ZstdExt
	}
	return filepath.Join(l.root, key.Rel(name))
}

// CheckpointName names the array of checkpoint k inside the archive.
func CheckpointName(k int) string {
	return fmt.Sprintf("eval_%03d.npy", k)
}

// SaveEmbedMats writes mats, one array per checkpoint. All matrices must
// share a shape. Directories are created on demand.
func (l *Local) SaveEmbedMats(ctx context.Context, key Key, mats []*mat.Dense) error {
	if len(mats) == 0 {
		return fmt.Errorf("store: no matrices for %s", key.Rel(""))
	}
	rows, cols := mats[0].Dims()
	for i, m := range mats {
		if r, c := m.Dims(); r != rows || c != cols {
			return fmt.Errorf("store: matrix %d is %dx%d, expected %dx%d", i, r, c, rows, cols)
		}
	}

	var buf bytes.Buffer
	if err := l.encode(&buf, mats); err != nil {
		return fmt.Errorf("store: encoding %s: %w", key.Rel(""), err)
	}

	path := l.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", filepath.Dir(path), err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("store: writing %s: %w", path, err)
	}
	l.logger.Debug("saved embedding matrices", "path", path, "checkpoints", len(mats), "rows", rows, "cols", cols)

	if l.mirror != nil {
		rel, _ := filepath.Rel(l.root, path)
		if err := l.mirror.Upload(ctx, filepath.ToSlash(rel), buf.Bytes()); err != nil {
			return fmt.Errorf("store: mirroring %s: %w", rel, err)
		}
	}
	return nil
}

// writeAtomic renames a temp file over path. Trials of one process share a
// path, so the last trial to finish wins and readers never see a torn file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (l *Local) encode(w io.Writer, mats []*mat.Dense) error {
	if !l.compress {
		return writeArchive(w, mats)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := writeArchive(enc, mats); err != nil {
		enc.Close() //nolint:errcheck
		return err
	}
	return enc.Close()
}

func writeArchive(w io.Writer, mats []*mat.Dense) error {
	zw := npz.NewWriter(w)
	for k, m := range mats {
		if err := zw.Write(CheckpointName(k), m); err != nil {
			zw.Close() //nolint:errcheck
			return fmt.Errorf("checkpoint %d: %w", k, err)
		}
	}
	return zw.Close()
}

// LoadEmbedMats reads the matrices written for key in checkpoint order.
func (l *Local) LoadEmbedMats(key Key) ([]*mat.Dense, error) {
	path := l.Path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if l.compress {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if raw, err = dec.DecodeAll(raw, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	zr, err := npz.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	keys := slices.Clone(zr.Keys())
	slices.Sort(keys)

	out := make([]*mat.Dense, len(keys))
	for k, name := range keys {
		hdr := zr.Header(name)
		if hdr == nil || len(hdr.Descr.Shape) != 2 {
			return nil, fmt.Errorf("%s: %s is not a 2-D array", path, name)
		}
		rows, cols := hdr.Descr.Shape[0], hdr.Descr.Shape[1]
		data := make([]float64, rows*cols)
		if err := zr.Read(name, &data); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		out[k] = mat.NewDense(rows, cols, data)
	}
	return out, nil
}
