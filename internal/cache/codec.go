package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/deepnest-next/gonest/internal/model"
)

// Key identifies one NFP: the pair of source shapes, their rotations, and
// whether the fit is inner (B inside A) or outer (B orbiting A).
type Key struct {
	ASource string
	BSource string
	ARot    float64
	BRot    float64
	Inside  bool
}

// String renders the key for map lookup.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%g|%g|%t", k.ASource, k.BSource, k.ARot, k.BRot, k.Inside)
}

// EncodeKey serialises the key little-endian:
// {u32 a_len, a, u32 b_len, b, f64 a_rot, f64 b_rot, u8 inside}.
func EncodeKey(k Key) []byte {
	var buf bytes.Buffer
	writeBytes(&buf, []byte(k.ASource))
	writeBytes(&buf, []byte(k.BSource))
	writeF64(&buf, k.ARot)
	writeF64(&buf, k.BRot)
	if k.Inside {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// DecodeKey parses a key encoded by EncodeKey.
func DecodeKey(data []byte) (Key, error) {
	r := bytes.NewReader(data)
	a, err := readBytes(r)
	if err != nil {
		return Key{}, err
	}
	b, err := readBytes(r)
	if err != nil {
		return Key{}, err
	}
	var arot, brot float64
	if arot, err = readF64(r); err != nil {
		return Key{}, err
	}
	if brot, err = readF64(r); err != nil {
		return Key{}, err
	}
	inside, err := r.ReadByte()
	if err != nil {
		return Key{}, err
	}
	return Key{
		ASource: string(a),
		BSource: string(b),
		ARot:    arot,
		BRot:    brot,
		Inside:  inside != 0,
	}, nil
}

// EncodePolygon serialises a polygon recursively:
// {u32 n, [f64 x, f64 y, u8 exact]*n, u32 children_count, children...}.
// A nil polygon encodes as a zero-vertex, zero-child record, which is how
// a cached "no fit exists" answer is stored.
func EncodePolygon(p *model.Polygon) []byte {
	var buf bytes.Buffer
	encodePolygon(&buf, p)
	return buf.Bytes()
}

func encodePolygon(buf *bytes.Buffer, p *model.Polygon) {
	if p == nil {
		writeU32(buf, 0)
		writeU32(buf, 0)
		return
	}
	writeU32(buf, uint32(len(p.Points)))
	for _, pt := range p.Points {
		writeF64(buf, pt.X)
		writeF64(buf, pt.Y)
		if pt.Exact {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	writeU32(buf, uint32(len(p.Children)))
	for _, child := range p.Children {
		encodePolygon(buf, child)
	}
}

// DecodePolygon parses a polygon encoded by EncodePolygon. A zero-vertex,
// zero-child record decodes to nil.
func DecodePolygon(data []byte) (*model.Polygon, error) {
	r := bytes.NewReader(data)
	p, err := decodePolygon(r)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodePolygon(r *bytes.Reader) (*model.Polygon, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	p := &model.Polygon{}
	for i := uint32(0); i < n; i++ {
		var pt model.Point
		if pt.X, err = readF64(r); err != nil {
			return nil, err
		}
		if pt.Y, err = readF64(r); err != nil {
			return nil, err
		}
		exact, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		pt.Exact = exact != 0
		p.Points = append(p.Points, pt)
	}
	children, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < children; i++ {
		child, err := decodePolygon(r)
		if err != nil {
			return nil, err
		}
		if child == nil {
			child = &model.Polygon{}
		}
		p.Children = append(p.Children, child)
	}
	if n == 0 && children == 0 {
		return nil, nil
	}
	return p, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeF64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	writeU32(buf, uint32(len(data)))
	buf.Write(data)
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readF64(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
