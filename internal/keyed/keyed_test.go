package keyed

import (
	"testing"

	"github.com/mwindels/galaxy/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	Value      int32
	committed  int
	classType  string
}

func (f *fakeObject) ClassType() string { return f.classType }
func (f *fakeObject) SerialSize() int   { return 4 }
func (f *fakeObject) Serialize(buf []byte) []byte {
	return wire.PutInt32(buf, f.Value)
}
func (f *fakeObject) Deserialize(buf []byte) ([]byte, error) {
	v, rest, err := wire.GetInt32(buf)
	if err != nil {
		return buf, err
	}
	f.Value = v
	return rest, nil
}
func (f *fakeObject) LocalCommit() error {
	f.committed++
	return nil
}

func TestApplyCommitNonRootDeserializesAndCommits(t *testing.T) {
	master := NewRegistry(0)
	master.RegisterClass("fake", func() Object { return &fakeObject{classType: "fake"} })
	key := master.NewKey()
	master.Insert(key, &fakeObject{classType: "fake", Value: 7})

	payload := SerializeObject(key, master.Get(key))

	replica := NewRegistry(1)
	replica.RegisterClass("fake", func() Object { return &fakeObject{classType: "fake"} })

	err := replica.ApplyCommit("fake", payload, false)
	require.NoError(t, err)

	got := replica.Get(key).(*fakeObject)
	assert.Equal(t, int32(7), got.Value)
	assert.Equal(t, 1, got.committed)
}

func TestApplyCommitRootSkipsDeserializeButCommits(t *testing.T) {
	master := NewRegistry(0)
	master.RegisterClass("fake", func() Object { return &fakeObject{classType: "fake"} })
	key := master.NewKey()
	obj := &fakeObject{classType: "fake", Value: 3}
	master.Insert(key, obj)

	payload := SerializeObject(key, obj)

	err := master.ApplyCommit("fake", payload, true)
	require.NoError(t, err)
	assert.Equal(t, 1, obj.committed)
	assert.Equal(t, int32(3), obj.Value)
}

func TestApplyCommitBadSentinelErrors(t *testing.T) {
	replica := NewRegistry(1)
	replica.RegisterClass("fake", func() Object { return &fakeObject{classType: "fake"} })

	var buf []byte
	buf = wire.PutInt64(buf, 1)
	buf = wire.PutInt32(buf, 99)
	buf = wire.PutUint16(buf, 0)

	err := replica.ApplyCommit("fake", buf, false)
	assert.Error(t, err)
}

func TestApplyCommitUnknownClassErrors(t *testing.T) {
	replica := NewRegistry(1)

	var buf []byte
	buf = wire.PutInt64(buf, 5)
	buf = wire.PutInt32(buf, 1)
	buf = wire.PutUint16(buf, 12345)

	err := replica.ApplyCommit("missing", buf, false)
	assert.Error(t, err)
}
