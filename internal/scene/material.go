package scene

import (
	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/wire"
)

// Material holds the shading properties of one or more mesh faces, unchanged from the
// teacher's shared/state.Material.
type Material struct {
	Ka, Kd, Ks colour.RGB // ambient, diffuse, specular intensities
	Ns         float64    // specular exponent
}

func materialSerialSize() int { return 8*4*3 + 8 }

func putMaterial(buf []byte, m Material) []byte {
	for _, c := range []colour.RGB{m.Ka, m.Kd, m.Ks} {
		buf = wire.PutFloat64(buf, c.R)
		buf = wire.PutFloat64(buf, c.G)
		buf = wire.PutFloat64(buf, c.B)
		buf = wire.PutFloat64(buf, c.O)
	}
	buf = wire.PutFloat64(buf, m.Ns)
	return buf
}

func getMaterial(buf []byte) (Material, []byte, error) {
	var m Material
	cols := make([]*colour.RGB, 3)
	cols[0], cols[1], cols[2] = &m.Ka, &m.Kd, &m.Ks
	var err error
	for _, c := range cols {
		if c.R, buf, err = wire.GetFloat64(buf); err != nil {
			return m, buf, err
		}
		if c.G, buf, err = wire.GetFloat64(buf); err != nil {
			return m, buf, err
		}
		if c.B, buf, err = wire.GetFloat64(buf); err != nil {
			return m, buf, err
		}
		if c.O, buf, err = wire.GetFloat64(buf); err != nil {
			return m, buf, err
		}
	}
	if m.Ns, buf, err = wire.GetFloat64(buf); err != nil {
		return m, buf, err
	}
	return m, buf, nil
}
