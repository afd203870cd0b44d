package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// On-disk layout: a fixed header followed by count rows of dim little-endian
// float32 values.
//
//	offset 0  magic   "RVIX"
//	offset 4  version uint32 (currently 1)
//	offset 8  dim     uint32
//	offset 12 count   uint32
//	offset 16 vectors count × dim × float32
const (
	fileMagic   = "RVIX"
	fileVersion = 1
)

// WriteFile persists the index to path, replacing any existing file.
func (f *Flat) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vectorindex: create %s: %w", path, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if _, err := w.WriteString(fileMagic); err != nil {
		return fmt.Errorf("vectorindex: write magic: %w", err)
	}
	for _, v := range []uint32{fileVersion, uint32(f.dim), uint32(len(f.vectors))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vectorindex: write header: %w", err)
		}
	}

	buf := make([]byte, 4)
	for _, vec := range f.vectors {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("vectorindex: write vector: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("vectorindex: flush %s: %w", path, err)
	}
	return nil
}

// ReadFile loads an index previously written by WriteFile.
func ReadFile(path string) (*Flat, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open %s: %w", path, err)
	}
	defer in.Close()
	return read(bufio.NewReader(in))
}

func read(r io.Reader) (*Flat, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("vectorindex: read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("vectorindex: bad magic %q", magic)
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("vectorindex: read header: %w", err)
		}
	}
	if version != fileVersion {
		return nil, fmt.Errorf("vectorindex: unsupported version %d", version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("vectorindex: zero dimension")
	}

	f := NewFlat(int(dim))
	row := make([]byte, int(dim)*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("vectorindex: read row %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		f.vectors = append(f.vectors, vec)
	}
	return f, nil
}
