// Package ply reads and writes ray clouds and point clouds in the binary
// little endian PLY representation. Ray clouds store the sensor offset of
// each sample in the nx/ny/nz properties, so start = end + normal.
package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/terralidar/rayalign/internal/raycloud"
)

const defaultChunkSize = 1 << 20

type property struct {
	name   string
	typ    string
	offset int
	size   int
}

type header struct {
	count  int
	stride int
	props  map[string]property
}

func (h *header) has(names ...string) bool {
	for _, n := range names {
		if _, ok := h.props[n]; !ok {
			return false
		}
	}
	return true
}

func typeSize(typ string) (int, error) {
	switch typ {
	case "char", "uchar", "int8", "uint8":
		return 1, nil
	case "short", "ushort", "int16", "uint16":
		return 2, nil
	case "int", "uint", "int32", "uint32", "float", "float32":
		return 4, nil
	case "double", "float64":
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported property type %q", typ)
}

func readHeader(r *bufio.Reader) (*header, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, errors.New("not a ply file")
	}

	h := &header{count: -1, props: map[string]property{}}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("truncated ply header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "binary_little_endian" {
				return nil, fmt.Errorf("unsupported ply format %q", strings.TrimSpace(line))
			}
		case "element":
			if len(fields) == 3 && fields[1] == "vertex" {
				n, err := strconv.Atoi(fields[2])
				if err != nil {
					return nil, fmt.Errorf("bad vertex count: %w", err)
				}
				h.count = n
			} else if h.count >= 0 {
				return nil, errors.New("ply has elements after vertex; unsupported layout")
			}
		case "property":
			if h.count < 0 || len(fields) != 3 {
				continue
			}
			size, err := typeSize(fields[1])
			if err != nil {
				return nil, err
			}
			h.props[fields[2]] = property{name: fields[2], typ: fields[1], offset: h.stride, size: size}
			h.stride += size
		case "end_header":
			if h.count < 0 {
				return nil, errors.New("ply has no vertex element")
			}
			if !h.has("x", "y", "z") {
				return nil, errors.New("ply has no x,y,z vertex properties")
			}
			return h, nil
		}
	}
}

func (p property) read(rec []byte) float64 {
	b := rec[p.offset:]
	switch p.size {
	case 1:
		return float64(b[0])
	case 2:
		return float64(binary.LittleEndian.Uint16(b))
	case 4:
		if p.typ == "float" || p.typ == "float32" {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
		return float64(int32(binary.LittleEndian.Uint32(b)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

// ReadChunks streams the vertices of the file to fn in bounded-memory
// chunks of at most chunkSize samples. Files without nx/ny/nz are treated
// as point clouds whose rays have zero length; files without a time
// property get monotonic synthetic timestamps.
func ReadChunks(path string, chunkSize int, fn func(chunk *raycloud.Cloud) error) error {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	h, err := readHeader(r)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	px, py, pz := h.props["x"], h.props["y"], h.props["z"]
	hasRays := h.has("nx", "ny", "nz")
	nx, ny, nz := h.props["nx"], h.props["ny"], h.props["nz"]
	hasTime := h.has("time")
	pt := h.props["time"]
	hasColour := h.has("red", "green", "blue")
	pr, pg, pb := h.props["red"], h.props["green"], h.props["blue"]
	pa, hasAlpha := h.props["alpha"]

	buf := make([]byte, h.stride*chunkSize)
	read := 0
	for read < h.count {
		want := h.count - read
		if want > chunkSize {
			want = chunkSize
		}
		if _, err := io.ReadFull(r, buf[:h.stride*want]); err != nil {
			return fmt.Errorf("%s: truncated vertex data: %w", path, err)
		}

		chunk := raycloud.New(want)
		for i := 0; i < want; i++ {
			rec := buf[i*h.stride : (i+1)*h.stride]
			end := r3.Vector{X: px.read(rec), Y: py.read(rec), Z: pz.read(rec)}
			start := end
			if hasRays {
				start = end.Add(r3.Vector{X: nx.read(rec), Y: ny.read(rec), Z: nz.read(rec)})
			}
			t := float64(read + i)
			if hasTime {
				t = pt.read(rec)
			}
			colour := raycloud.White
			if hasColour {
				colour.R = uint8(pr.read(rec))
				colour.G = uint8(pg.read(rec))
				colour.B = uint8(pb.read(rec))
				if hasAlpha {
					colour.A = uint8(pa.read(rec))
				}
			}
			chunk.AddRay(start, end, t, colour)
		}
		if err := fn(chunk); err != nil {
			return err
		}
		read += want
	}
	return nil
}

// Load reads a whole ray cloud or point cloud file into memory.
func Load(path string) (*raycloud.Cloud, error) {
	cloud := raycloud.New(0)
	err := ReadChunks(path, defaultChunkSize, func(chunk *raycloud.Cloud) error {
		cloud.Append(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cloud.Len() == 0 {
		return nil, fmt.Errorf("%s: cloud is empty", path)
	}
	return cloud, nil
}

// Save writes a ray cloud to path in one go.
func Save(path string, cloud *raycloud.Cloud) error {
	w, err := NewChunkWriter(path, true)
	if err != nil {
		return err
	}
	if err := w.Write(cloud); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// SavePoints writes only the end points of the cloud, without ray origins.
func SavePoints(path string, cloud *raycloud.Cloud) error {
	w, err := NewChunkWriter(path, false)
	if err != nil {
		return err
	}
	if err := w.Write(cloud); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
