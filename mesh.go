package prerotate

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Vertex matches the pipeline's input layout: position then color.
type Vertex struct {
	Pos   [3]float32
	Color [3]float32
}

// Mesh is the static geometry uploaded once at startup.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

var defaultColor = [3]float32{0.67, 0.1, 0.2}

func square(half float32) []Vertex {
	return []Vertex{
		{Pos: [3]float32{-half, -half, 0}, Color: defaultColor},
		{Pos: [3]float32{half, -half, 0}, Color: defaultColor},
		{Pos: [3]float32{-half, half, 0}, Color: defaultColor},
		{Pos: [3]float32{half, half, 0}, Color: defaultColor},
	}
}

// BuiltinMesh is the geometry each variant draws when no asset is configured:
// a full-screen quad, four points, or four segments joining an inner square
// to an outer one.
func BuiltinMesh(v Variant) Mesh {
	switch v {
	case VariantPoint:
		return Mesh{Vertices: square(0.5), Indices: []uint16{0, 1, 2, 3}}
	case VariantLine:
		return Mesh{
			Vertices: append(square(0.5), square(1)...),
			Indices:  []uint16{0, 5, 1, 7, 2, 4, 3, 6},
		}
	}
	return Mesh{Vertices: square(1), Indices: []uint16{0, 1, 2, 2, 1, 3}}
}

// VertexBytes packs the vertices in the little-endian layout the GPU reads.
func (m Mesh) VertexBytes() []byte {
	out := make([]byte, 0, len(m.Vertices)*vertexStride)
	for _, v := range m.Vertices {
		for _, f := range v.Pos {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		for _, f := range v.Color {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

func (m Mesh) IndexBytes() []byte {
	out := make([]byte, 0, len(m.Indices)*2)
	for _, i := range m.Indices {
		out = binary.LittleEndian.AppendUint16(out, i)
	}
	return out
}

// Validate checks that there is something to draw and every index is in range.
func (m Mesh) Validate() error {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return errors.New("mesh has no vertices or no indices")
	}
	for _, i := range m.Indices {
		if int(i) >= len(m.Vertices) {
			return errors.Errorf("index %d out of range for %d vertices", i, len(m.Vertices))
		}
	}
	return nil
}

// LoadGLTF reads a .gltf or .glb file and converts it with MeshFromDocument.
func LoadGLTF(path string) (Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return Mesh{}, errors.Wrapf(err, "open %s", path)
	}
	m, err := MeshFromDocument(doc)
	return m, errors.Wrap(err, path)
}

// MeshFromDocument takes the first primitive of the first mesh. Positions
// are required; COLOR_0 is used when present, otherwise the default color.
// Indices must fit in 16 bits; a primitive without indices is drawn in
// vertex order.
func MeshFromDocument(doc *gltf.Document) (Mesh, error) {
	if len(doc.Meshes) == 0 || len(doc.Meshes[0].Primitives) == 0 {
		return Mesh{}, errors.New("document has no mesh primitives")
	}
	prim := doc.Meshes[0].Primitives[0]

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return Mesh{}, errors.New("primitive has no POSITION attribute")
	}
	acc, err := accessor(doc, posIdx, "POSITION")
	if err != nil {
		return Mesh{}, err
	}
	positions, err := modeler.ReadPosition(doc, acc, nil)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "read positions")
	}

	var colors [][4]uint8
	if idx, ok := prim.Attributes["COLOR_0"]; ok {
		if acc, err = accessor(doc, idx, "COLOR_0"); err != nil {
			return Mesh{}, err
		}
		if colors, err = modeler.ReadColor(doc, acc, nil); err != nil {
			return Mesh{}, errors.Wrap(err, "read colors")
		}
	}

	m := Mesh{Vertices: make([]Vertex, len(positions))}
	for i, p := range positions {
		m.Vertices[i] = Vertex{Pos: p, Color: defaultColor}
		if i < len(colors) {
			c := colors[i]
			m.Vertices[i].Color = [3]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255}
		}
	}

	if prim.Indices == nil {
		if len(positions) > math.MaxUint16+1 {
			return Mesh{}, errors.Errorf("%d vertices exceed 16-bit indices", len(positions))
		}
		m.Indices = make([]uint16, len(positions))
		for i := range m.Indices {
			m.Indices[i] = uint16(i)
		}
		return m, m.Validate()
	}
	if acc, err = accessor(doc, *prim.Indices, "indices"); err != nil {
		return Mesh{}, err
	}
	indices, err := modeler.ReadIndices(doc, acc, nil)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "read indices")
	}
	m.Indices = make([]uint16, len(indices))
	for i, idx := range indices {
		if idx > math.MaxUint16 {
			return Mesh{}, errors.Errorf("index %d exceeds 16 bits", idx)
		}
		m.Indices[i] = uint16(idx)
	}
	return m, m.Validate()
}

func accessor(doc *gltf.Document, idx int, what string) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) || doc.Accessors[idx] == nil {
		return nil, errors.Errorf("%s accessor %d out of range (%d accessors)", what, idx, len(doc.Accessors))
	}
	return doc.Accessors[idx], nil
}
