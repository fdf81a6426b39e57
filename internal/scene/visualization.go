package scene

import (
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/pkg/errors"
)

// Visualization is the Visualization KeyedObject named in SPEC_FULL.md §3.1, grounded on
// original_source/src/data/Visualization.cpp: it binds a Dataset and a Lighting together
// with the shading parameters a Rendering needs, and carries the global bounding box every
// rank partitions against.
type Visualization struct {
	Dataset  keyed.Key
	Lighting keyed.Key

	GlobalBox geom.Box

	// ReverseLighting selects the reverse-lighting classification in render.Classify, which
	// inverts how blocked and unblocked secondary rays are classified; light directions
	// themselves are left unchanged.
	ReverseLighting bool

	Annotation string
}

// ClassType implements keyed.Object.
func (*Visualization) ClassType() string { return "Visualization" }

// SerialSize implements keyed.Object.
func (v *Visualization) SerialSize() int {
	return 8 + 8 + v.GlobalBox.SerialSize() + 1 + 4 + len(v.Annotation)
}

// Serialize implements keyed.Object.
func (v *Visualization) Serialize(buf []byte) []byte {
	buf = wire.PutInt64(buf, int64(v.Dataset))
	buf = wire.PutInt64(buf, int64(v.Lighting))
	buf = v.GlobalBox.Serialize(buf)
	buf = wire.PutBool(buf, v.ReverseLighting)
	buf = wire.PutBytes(buf, []byte(v.Annotation))
	return buf
}

// Deserialize implements keyed.Object.
func (v *Visualization) Deserialize(buf []byte) ([]byte, error) {
	var err error
	var dataset, lighting int64
	if dataset, buf, err = wire.GetInt64(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing visualization dataset key")
	}
	if lighting, buf, err = wire.GetInt64(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing visualization lighting key")
	}
	v.Dataset, v.Lighting = keyed.Key(dataset), keyed.Key(lighting)

	if buf, err = v.GlobalBox.Deserialize(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing visualization global box")
	}
	if v.ReverseLighting, buf, err = wire.GetBool(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing visualization reverse-lighting flag")
	}

	var annotation []byte
	if annotation, buf, err = wire.GetBytes(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing visualization annotation")
	}
	v.Annotation = string(annotation)
	return buf, nil
}

// LocalCommit implements keyed.Object. Visualization binds pre-existing Dataset/Lighting
// keys; no native resources are allocated here.
func (*Visualization) LocalCommit() error { return nil }
