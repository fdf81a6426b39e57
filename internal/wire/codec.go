// Package wire provides the fixed-width little-endian encoding helpers used by every
// keyed object's serialize/deserialize pair and by the message header.
//
// Every codec in the framework follows the same contract: Serialize appends exactly
// SerialSize bytes to buf and returns the extended slice; Deserialize consumes exactly
// that many bytes from the front of buf and returns what's left.  Callers that chain
// several fields must advance through the same fields in the same order on both ends,
// or the trailing sentinel check in the keyed-object layer will catch the mismatch.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

func PutInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func GetInt32(buf []byte) (int32, []byte, error) {
	if len(buf) < 4 {
		return 0, buf, fmt.Errorf("wire: short buffer for int32")
	}
	return int32(binary.LittleEndian.Uint32(buf[:4])), buf[4:], nil
}

func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func GetUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, buf, fmt.Errorf("wire: short buffer for uint32")
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], nil
}

func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func GetUint16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, buf, fmt.Errorf("wire: short buffer for uint16")
	}
	return binary.LittleEndian.Uint16(buf[:2]), buf[2:], nil
}

func PutInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func GetInt64(buf []byte) (int64, []byte, error) {
	if len(buf) < 8 {
		return 0, buf, fmt.Errorf("wire: short buffer for int64")
	}
	return int64(binary.LittleEndian.Uint64(buf[:8])), buf[8:], nil
}

func PutFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func GetFloat64(buf []byte) (float64, []byte, error) {
	if len(buf) < 8 {
		return 0, buf, fmt.Errorf("wire: short buffer for float64")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])), buf[8:], nil
}

func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func GetBool(buf []byte) (bool, []byte, error) {
	if len(buf) < 1 {
		return false, buf, fmt.Errorf("wire: short buffer for bool")
	}
	return buf[0] != 0, buf[1:], nil
}

func PutBytes(buf []byte, v []byte) []byte {
	buf = PutInt32(buf, int32(len(v)))
	return append(buf, v...)
}

func GetBytes(buf []byte) ([]byte, []byte, error) {
	n, rest, err := GetInt32(buf)
	if err != nil {
		return nil, buf, err
	}
	if int32(len(rest)) < n {
		return nil, buf, fmt.Errorf("wire: short buffer for byte slice of length %d", n)
	}
	return rest[:n], rest[n:], nil
}
