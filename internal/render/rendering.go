package render

import (
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/wire"
)

// Rendering is the {camera, visualization, owner-rank} tuple named in spec.md §3: one
// committed request to trace a Camera against a Visualization and ship the resulting pixels
// to OwnerRank's framebuffer. There is no teacher equivalent (the teacher rendered to its
// own process's window); grounded on spec.md §3's Rendering definition, wired as a
// keyed.Object the same way every other committed scene piece is. Partitioning is carried
// alongside rather than reached through Visualization, since Visualization's wire form is
// shared with the fully-replicated preview path that never partitions anything.
type Rendering struct {
	Camera        keyed.Key
	Visualization keyed.Key
	Partitioning  keyed.Key
	OwnerRank     int32
}

// ClassType implements keyed.Object.
func (*Rendering) ClassType() string { return "Rendering" }

// SerialSize implements keyed.Object.
func (*Rendering) SerialSize() int { return 8 + 8 + 8 + 4 }

// Serialize implements keyed.Object.
func (r *Rendering) Serialize(buf []byte) []byte {
	buf = wire.PutInt64(buf, int64(r.Camera))
	buf = wire.PutInt64(buf, int64(r.Visualization))
	buf = wire.PutInt64(buf, int64(r.Partitioning))
	buf = wire.PutInt32(buf, r.OwnerRank)
	return buf
}

// Deserialize implements keyed.Object.
func (r *Rendering) Deserialize(buf []byte) ([]byte, error) {
	var err error
	var cam, vis, part int64
	if cam, buf, err = wire.GetInt64(buf); err != nil {
		return buf, err
	}
	if vis, buf, err = wire.GetInt64(buf); err != nil {
		return buf, err
	}
	if part, buf, err = wire.GetInt64(buf); err != nil {
		return buf, err
	}
	r.Camera, r.Visualization, r.Partitioning = keyed.Key(cam), keyed.Key(vis), keyed.Key(part)
	if r.OwnerRank, buf, err = wire.GetInt32(buf); err != nil {
		return buf, err
	}
	return buf, nil
}

// LocalCommit implements keyed.Object. A Rendering binds pre-existing keys; no native
// resources are allocated here.
func (*Rendering) LocalCommit() error { return nil }
