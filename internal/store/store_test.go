package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sbinet/npyio/npz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type recordingUploader struct {
	names []string
	sizes []int
	err   error
}

func (r *recordingUploader) Upload(_ context.Context, name string, data []byte) error {
	r.names = append(r.names, name)
	r.sizes = append(r.sizes, len(data))
	return r.err
}

func testMats() []*mat.Dense {
	return []*mat.Dense{
		mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		mat.NewDense(2, 3, []float64{6, 5, 4, 3, 2, 1}),
	}
}

var testKey = Key{Architecture: "comparator", Evaluation: "matching", Data: "nyms_syn", Process: "expert"}

func TestLocal_SaveLoad(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			root := t.TempDir()
			var opts []Option
			if compress {
				opts = append(opts, WithCompression())
			}
			s := NewLocal(root, opts...)
			require.NoError(t, s.SaveEmbedMats(context.Background(), testKey, testMats()))

			want := filepath.Join(root, "comparator", "matching", "nyms_syn", "expert", EmbedMatsFile)
			if compress {
				want += ZstdExt
			}
			assert.Equal(t, want, s.Path(testKey))
			_, err := os.Stat(want)
			require.NoError(t, err)

			got, err := s.LoadEmbedMats(testKey)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.True(t, mat.Equal(testMats()[1], got[1]))
		})
	}
}

func TestLocal_ArchiveIsNumPyNpz(t *testing.T) {
	root := t.TempDir()
	s := NewLocal(root)
	require.NoError(t, s.SaveEmbedMats(context.Background(), testKey, testMats()))

	f, err := os.Open(s.Path(testKey))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	info, err := f.Stat()
	require.NoError(t, err)

	zr, err := npz.NewReader(f, info.Size())
	require.NoError(t, err)
	require.Len(t, zr.Keys(), 2)

	name := CheckpointName(1)
	hdr := zr.Header(name)
	require.NotNil(t, hdr)
	assert.Equal(t, []int{2, 3}, hdr.Descr.Shape)
	assert.False(t, hdr.Descr.Fortran)

	data := make([]float64, 6)
	require.NoError(t, zr.Read(name, &data))
	assert.Equal(t, []float64{6, 5, 4, 3, 2, 1}, data)
}

func TestCheckpointName_SortsInOrder(t *testing.T) {
	names := []string{CheckpointName(10), CheckpointName(2), CheckpointName(0)}
	slices.Sort(names)
	assert.Equal(t, []string{CheckpointName(0), CheckpointName(2), CheckpointName(10)}, names)
}

func TestLocal_ShapeMismatch(t *testing.T) {
	s := NewLocal(t.TempDir())
	mats := []*mat.Dense{mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil)}
	assert.Error(t, s.SaveEmbedMats(context.Background(), testKey, mats))
	assert.Error(t, s.SaveEmbedMats(context.Background(), testKey, nil))
}

func TestLocal_Mirror(t *testing.T) {
	up := &recordingUploader{}
	s := NewLocal(t.TempDir(), WithMirror(up))
	require.NoError(t, s.SaveEmbedMats(context.Background(), testKey, testMats()))
	assert.Equal(t, []string{"comparator/matching/nyms_syn/expert/" + EmbedMatsFile}, up.names)
	assert.Greater(t, up.sizes[0], 12*8)

	failing := &recordingUploader{err: errors.New("offline")}
	s = NewLocal(t.TempDir(), WithMirror(failing))
	err := s.SaveEmbedMats(context.Background(), testKey, testMats())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestBlobMirror_Validation(t *testing.T) {
	_, err := NewBlobMirrorWithCredential("", "runs", "", nil)
	assert.Error(t, err)
}

func TestBlobMirror_BlobName(t *testing.T) {
	b := &BlobMirror{prefix: "twoprocess"}
	assert.Equal(t, "twoprocess/a/b.npz", b.BlobName("a/b.npz"))
	b = &BlobMirror{}
	assert.Equal(t, "a/b.npz", b.BlobName("a/b.npz"))
}
