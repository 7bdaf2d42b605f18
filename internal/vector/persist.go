package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Vector file format: dimensions (uint32), count (uint32), then count vectors
// of dimensions*4 bytes each, all little-endian.

func writeVectorFileTemp(path string, dimensions int, vectors [][]float32) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return "", fmt.Errorf("create temp vector file: %w", err)
	}
	tmpPath := f.Name()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(dimensions)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(vectors))); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write count: %w", err)
	}
	for i, vec := range vectors {
		if _, err := w.Write(float32SliceToBytes(vec)); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write vector %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("flush vector file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("sync vector file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close vector file: %w", err)
	}
	return tmpPath, nil
}

func readVectorFile(path string, dimensions int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("%w: file has %d dimensions, index expects %d", ErrCorruptState, dim, dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: read vector %d: %v", ErrCorruptState, i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
