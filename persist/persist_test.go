package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clusterkit/clusterkit/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string
	Vectors [][]float32
	Next    uint64
}

func testSample() sample {
	return sample{
		Name:    "index",
		Vectors: [][]float32{{1, 2, 3}, {4, 5, 6}},
		Next:    7,
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		data, err := Marshal(testSample())
		require.NoError(t, err)

		var got sample
		require.NoError(t, Unmarshal(data, &got))
		assert.Equal(t, testSample(), got)
	})

	t.Run("Compressions", func(t *testing.T) {
		for _, ct := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
			data, err := Marshal(testSample(), func(o *Options) {
				o.Compression = ct
			})
			require.NoError(t, err)

			var got sample
			require.NoError(t, Unmarshal(data, &got))
			assert.Equal(t, testSample(), got)
		}
	})

	t.Run("JSONCodec", func(t *testing.T) {
		data, err := Marshal(testSample(), func(o *Options) {
			o.Codec = codec.JSON{}
		})
		require.NoError(t, err)

		var got sample
		require.NoError(t, Unmarshal(data, &got))
		assert.Equal(t, testSample(), got)
	})
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var got sample
	var bad *ErrBadRecord

	t.Run("TooSmall", func(t *testing.T) {
		err := Unmarshal([]byte{1, 2}, &got)
		require.ErrorAs(t, err, &bad)
	})

	t.Run("BadMagic", func(t *testing.T) {
		data, err := Marshal(testSample())
		require.NoError(t, err)
		data[0] = 'X'

		err = Unmarshal(data, &got)
		require.ErrorAs(t, err, &bad)
	})

	t.Run("BadVersion", func(t *testing.T) {
		data, err := Marshal(testSample())
		require.NoError(t, err)
		data[4] = 99

		err = Unmarshal(data, &got)
		require.ErrorAs(t, err, &bad)
	})

	t.Run("TruncatedBlock", func(t *testing.T) {
		data, err := Marshal(testSample())
		require.NoError(t, err)

		err = Unmarshal(data[:len(data)-4], &got)
		require.ErrorAs(t, err, &bad)
	})
}

func TestFileRoundTrip(t *testing.T) {
	t.Run("WriteRead", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "record.bin")
		require.NoError(t, WriteFile(path, testSample()))

		var got sample
		require.NoError(t, ReadFile(path, &got))
		assert.Equal(t, testSample(), got)
	})

	t.Run("MissingFile", func(t *testing.T) {
		var got sample
		err := ReadFile(filepath.Join(t.TempDir(), "absent.bin"), &got)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.bin")
		require.NoError(t, os.WriteFile(path, []byte("not a record at all"), 0o644))

		var got sample
		var bad *ErrBadRecord
		err := ReadFile(path, &got)
		assert.ErrorAs(t, err, &bad)
	})
}

func TestCompressBlock(t *testing.T) {
	t.Run("CompressibleData", func(t *testing.T) {
		data := make([]byte, 4096) // zeros compress well

		for _, ct := range []CompressionType{CompressionLZ4, CompressionZSTD} {
			block, err := compressBlock(data, ct)
			require.NoError(t, err)
			assert.Less(t, len(block), len(data))

			out, err := decompressBlock(block, ct)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		}
	})

	t.Run("RawFallback", func(t *testing.T) {
		// Tiny inputs do not compress; the block stores them raw.
		data := []byte{1}
		block, err := compressBlock(data, CompressionZSTD)
		require.NoError(t, err)

		out, err := decompressBlock(block, CompressionZSTD)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := compressBlock([]byte{1}, CompressionType(9))
		assert.Error(t, err)
	})
}
