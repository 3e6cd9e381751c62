package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/terralidar/rayalign/internal/raycloud"
)

// countWidth leaves room in the header for the final vertex count, which
// is only known once the last chunk has been written.
const countWidth = 20

// ChunkWriter writes a cloud to disk incrementally so that clouds larger
// than memory can be saved chunk by chunk. Close patches the vertex count
// into the header.
type ChunkWriter struct {
	f        *os.File
	w        *bufio.Writer
	countPos int64
	count    int64
	rays     bool
}

// NewChunkWriter opens path and writes a ray cloud header (rays true) or a
// plain point cloud header (rays false).
func NewChunkWriter(path string, rays bool) (*ChunkWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1<<20)

	pos := int64(0)
	emit := func(s string) {
		w.WriteString(s)
		pos += int64(len(s))
	}
	emit("ply\n")
	emit("format binary_little_endian 1.0\n")
	emit("comment generated by rayalign\n")
	emit("element vertex ")
	countPos := pos
	emit(fmt.Sprintf("%-*d\n", countWidth, 0))
	emit("property float x\n")
	emit("property float y\n")
	emit("property float z\n")
	emit("property double time\n")
	if rays {
		emit("property float nx\n")
		emit("property float ny\n")
		emit("property float nz\n")
	}
	emit("property uchar red\n")
	emit("property uchar green\n")
	emit("property uchar blue\n")
	emit("property uchar alpha\n")
	emit("end_header\n")
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, err
	}

	return &ChunkWriter{f: f, w: w, countPos: countPos, rays: rays}, nil
}

// Write appends the samples of the chunk to the file.
func (cw *ChunkWriter) Write(chunk *raycloud.Cloud) error {
	stride := 24
	if cw.rays {
		stride = 36
	}
	rec := make([]byte, stride)
	for i := 0; i < chunk.Len(); i++ {
		end := chunk.Ends[i]
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(float32(end.X)))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(float32(end.Y)))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(float32(end.Z)))
		binary.LittleEndian.PutUint64(rec[12:], math.Float64bits(chunk.Times[i]))
		off := 20
		if cw.rays {
			n := chunk.Starts[i].Sub(end)
			binary.LittleEndian.PutUint32(rec[20:], math.Float32bits(float32(n.X)))
			binary.LittleEndian.PutUint32(rec[24:], math.Float32bits(float32(n.Y)))
			binary.LittleEndian.PutUint32(rec[28:], math.Float32bits(float32(n.Z)))
			off = 32
		}
		colour := chunk.Colours[i]
		rec[off] = colour.R
		rec[off+1] = colour.G
		rec[off+2] = colour.B
		rec[off+3] = colour.A
		if _, err := cw.w.Write(rec); err != nil {
			return err
		}
	}
	cw.count += int64(chunk.Len())
	return nil
}

// Close flushes buffered data, patches the vertex count and closes the file.
func (cw *ChunkWriter) Close() error {
	if err := cw.w.Flush(); err != nil {
		cw.f.Close()
		return err
	}
	patch := fmt.Sprintf("%-*d", countWidth, cw.count)
	if _, err := cw.f.WriteAt([]byte(patch), cw.countPos); err != nil {
		cw.f.Close()
		return err
	}
	return cw.f.Close()
}
