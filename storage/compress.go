package storage

import "github.com/pierrec/lz4/v4"

// compress lz4-block-compresses data. The result starts with a flag byte:
// 1 is followed by a varint of the original length (so decompress can size
// its destination buffer exactly; lz4.UncompressBlock requires dst to
// already be large enough) and the compressed block; 0 is followed by the
// input stored as-is.
func compress(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(data, dst, hashTable[:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible input: lz4 returns n==0 rather than expanding it.
		return append([]byte{0}, data...), nil
	}
	out := appendUvarint([]byte{1}, uint64(len(data)))
	out = append(out, dst[:n]...)
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	if data[0] == 0 {
		return data[1:], nil
	}
	rest := data[1:]
	origLen, n := readUvarint(rest)
	dst := make([]byte, origLen)
	written, err := lz4.UncompressBlock(rest[n:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:written], nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readUvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}
