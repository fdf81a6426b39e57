package scene

import (
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/pkg/errors"
)

// LightType distinguishes a directional light source (position normalized to a direction,
// infinitely far away) from a positional one, matching original_source/src/data/Lighting.cpp's
// light-type encoding (type 0 is directional).
type LightType int32

const (
	LightDirectional LightType = 0
	LightPositional  LightType = 1
)

// Source is one light source: either a direction (for LightDirectional) or a position (for
// LightPositional).
type Source struct {
	Pos  geom.Vector
	Type LightType
}

// Lighting is the Lighting KeyedObject named in SPEC_FULL.md §3.1, grounded on
// original_source/src/data/Lighting.cpp: a set of light sources plus the ambient/diffuse
// coefficients, shadow flag, and ambient-occlusion parameters that shade every hit point.
type Lighting struct {
	Sources []Source

	Ka, Kd  float64 // ambient, diffuse coefficients
	Shadows bool

	AORays   int32
	AORadius float64

	Epsilon float64 // minimum hit distance, to avoid self-shadowing acne
}

// NewLighting returns a Lighting with the original's defaults (Ka=Kd=0.5, no AO, no shadows).
func NewLighting() *Lighting {
	return &Lighting{Ka: 0.5, Kd: 0.5, AORadius: 1.0, Epsilon: 0.0001}
}

// AddDirectional appends a directional light, normalizing dir the way the original does
// (falling back to (1,1,1)-normalized if dir is the zero vector).
func (l *Lighting) AddDirectional(dir geom.Vector) {
	if dir.Zero() {
		dir = geom.Vector{X: 0.577350, Y: 0.577350, Z: 0.577350}
	} else {
		dir = dir.Norm()
	}
	l.Sources = append(l.Sources, Source{Pos: dir, Type: LightDirectional})
}

// AddPositional appends a positional (point) light at pos.
func (l *Lighting) AddPositional(pos geom.Vector) {
	l.Sources = append(l.Sources, Source{Pos: pos, Type: LightPositional})
}

// ClassType implements keyed.Object.
func (*Lighting) ClassType() string { return "Lighting" }

// SerialSize implements keyed.Object.
func (l *Lighting) SerialSize() int {
	return 4 + 1 + 8 + 8 + 8 + 8 + 4 + len(l.Sources)*(3*8+4)
}

// Serialize implements keyed.Object.
func (l *Lighting) Serialize(buf []byte) []byte {
	buf = wire.PutInt32(buf, l.AORays)
	buf = wire.PutBool(buf, l.Shadows)
	buf = wire.PutFloat64(buf, l.Ka)
	buf = wire.PutFloat64(buf, l.Kd)
	buf = wire.PutFloat64(buf, l.AORadius)
	buf = wire.PutFloat64(buf, l.Epsilon)

	buf = wire.PutUint32(buf, uint32(len(l.Sources)))
	for _, s := range l.Sources {
		buf = wire.PutFloat64(buf, s.Pos.X)
		buf = wire.PutFloat64(buf, s.Pos.Y)
		buf = wire.PutFloat64(buf, s.Pos.Z)
		buf = wire.PutInt32(buf, int32(s.Type))
	}
	return buf
}

// Deserialize implements keyed.Object.
func (l *Lighting) Deserialize(buf []byte) ([]byte, error) {
	var err error
	if l.AORays, buf, err = wire.GetInt32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting ao rays")
	}
	if l.Shadows, buf, err = wire.GetBool(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting shadow flag")
	}
	if l.Ka, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting ka")
	}
	if l.Kd, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting kd")
	}
	if l.AORadius, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting ao radius")
	}
	if l.Epsilon, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting epsilon")
	}

	var n uint32
	if n, buf, err = wire.GetUint32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing lighting source count")
	}
	l.Sources = make([]Source, n)
	for i := range l.Sources {
		var t int32
		if l.Sources[i].Pos.X, buf, err = wire.GetFloat64(buf); err != nil {
			return buf, err
		}
		if l.Sources[i].Pos.Y, buf, err = wire.GetFloat64(buf); err != nil {
			return buf, err
		}
		if l.Sources[i].Pos.Z, buf, err = wire.GetFloat64(buf); err != nil {
			return buf, err
		}
		if t, buf, err = wire.GetInt32(buf); err != nil {
			return buf, err
		}
		l.Sources[i].Type = LightType(t)
	}
	return buf, nil
}

// LocalCommit implements keyed.Object. Lighting needs no native resource allocation.
func (*Lighting) LocalCommit() error { return nil }
