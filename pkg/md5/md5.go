package md5

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

const (
	Size      = 16
	BlockSize = 64
)

// Digest is a finalized 128-bit checksum.
type Digest [Size]byte

func (d Digest) String() string {
	const hexdigits = "0123456789abcdef"
	var out [Size * 2]byte
	for i, b := range d {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out[:])
}

// ParseDigest decodes 32 hex characters, either case.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != Size*2 {
		return d, fmt.Errorf("digest must be %d hex characters, got %d", Size*2, len(s))
	}
	for i := 0; i < Size; i++ {
		hi, ok1 := hexVal(s[i*2])
		lo, ok2 := hexVal(s[i*2+1])
		if !ok1 || !ok2 {
			return d, fmt.Errorf("invalid hex character in digest %q", s)
		}
		d[i] = hi<<4 | lo
	}
	return d, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// State is a streaming hash context. The zero value is not usable;
// call New or Reset first.
type State struct {
	a, b, c, d uint32
	length     uint64
	block      [BlockSize]byte
	fill       int
}

func New() *State {
	s := &State{}
	s.Reset()
	return s
}

func (s *State) Reset() {
	s.a = 0x67452301
	s.b = 0xefcdab89
	s.c = 0x98badcfe
	s.d = 0x10325476
	s.length = 0
	s.fill = 0
}

// Write absorbs p into the running hash. It never fails; the error
// return satisfies io.Writer.
func (s *State) Write(p []byte) (int, error) {
	n := len(p)
	s.length += uint64(n)

	if s.fill > 0 {
		take := BlockSize - s.fill
		if take > len(p) {
			take = len(p)
		}
		copy(s.block[s.fill:], p[:take])
		s.fill += take
		p = p[take:]
		if s.fill < BlockSize {
			return n, nil
		}
		compress(s, s.block[:])
		s.fill = 0
	}

	for len(p) >= BlockSize {
		compress(s, p[:BlockSize])
		p = p[BlockSize:]
	}

	if len(p) > 0 {
		copy(s.block[:], p)
		s.fill = len(p)
	}
	return n, nil
}

// Sum finalizes a copy of the state, so writes may continue after.
func (s *State) Sum() Digest {
	t := *s

	// One 0x80 byte, zeros to 56 mod 64, then the length in bits
	// as a little-endian 64-bit value.
	var pad [BlockSize + 8]byte
	pad[0] = 0x80
	padLen := 56 - int(t.length%BlockSize)
	if padLen <= 0 {
		padLen += BlockSize
	}
	binary.LittleEndian.PutUint64(pad[padLen:], t.length<<3)
	t.Write(pad[:padLen+8])

	var d Digest
	binary.LittleEndian.PutUint32(d[0:], t.a)
	binary.LittleEndian.PutUint32(d[4:], t.b)
	binary.LittleEndian.PutUint32(d[8:], t.c)
	binary.LittleEndian.PutUint32(d[12:], t.d)
	return d
}

// Sum computes the digest of data in one call.
func Sum(data []byte) Digest {
	s := New()
	s.Write(data)
	return s.Sum()
}

func f1(x, y, z uint32) uint32 { return z ^ (x & (y ^ z)) }
func f2(x, y, z uint32) uint32 { return y ^ (z & (x ^ y)) }
func f3(x, y, z uint32) uint32 { return x ^ y ^ z }
func f4(x, y, z uint32) uint32 { return y ^ (x | ^z) }

func compress(s *State, block []byte) {
	var x [16]uint32
	for i := range x {
		x[i] = binary.LittleEndian.Uint32(block[i*4:])
	}

	a, b, c, d := s.a, s.b, s.c, s.d

	step := func(f func(x, y, z uint32) uint32, w, x, y, z, data uint32, shift int) uint32 {
		w += f(x, y, z) + data
		return bits.RotateLeft32(w, shift) + x
	}

	a = step(f1, a, b, c, d, x[0]+0xd76aa478, 7)
	d = step(f1, d, a, b, c, x[1]+0xe8c7b756, 12)
	c = step(f1, c, d, a, b, x[2]+0x242070db, 17)
	b = step(f1, b, c, d, a, x[3]+0xc1bdceee, 22)
	a = step(f1, a, b, c, d, x[4]+0xf57c0faf, 7)
	d = step(f1, d, a, b, c, x[5]+0x4787c62a, 12)
	c = step(f1, c, d, a, b, x[6]+0xa8304613, 17)
	b = step(f1, b, c, d, a, x[7]+0xfd469501, 22)
	a = step(f1, a, b, c, d, x[8]+0x698098d8, 7)
	d = step(f1, d, a, b, c, x[9]+0x8b44f7af, 12)
	c = step(f1, c, d, a, b, x[10]+0xffff5bb1, 17)
	b = step(f1, b, c, d, a, x[11]+0x895cd7be, 22)
	a = step(f1, a, b, c, d, x[12]+0x6b901122, 7)
	d = step(f1, d, a, b, c, x[13]+0xfd987193, 12)
	c = step(f1, c, d, a, b, x[14]+0xa679438e, 17)
	b = step(f1, b, c, d, a, x[15]+0x49b40821, 22)

	a = step(f2, a, b, c, d, x[1]+0xf61e2562, 5)
	d = step(f2, d, a, b, c, x[6]+0xc040b340, 9)
	c = step(f2, c, d, a, b, x[11]+0x265e5a51, 14)
	b = step(f2, b, c, d, a, x[0]+0xe9b6c7aa, 20)
	a = step(f2, a, b, c, d, x[5]+0xd62f105d, 5)
	d = step(f2, d, a, b, c, x[10]+0x02441453, 9)
	c = step(f2, c, d, a, b, x[15]+0xd8a1e681, 14)
	b = step(f2, b, c, d, a, x[4]+0xe7d3fbc8, 20)
	a = step(f2, a, b, c, d, x[9]+0x21e1cde6, 5)
	d = step(f2, d, a, b, c, x[14]+0xc33707d6, 9)
	c = step(f2, c, d, a, b, x[3]+0xf4d50d87, 14)
	b = step(f2, b, c, d, a, x[8]+0x455a14ed, 20)
	a = step(f2, a, b, c, d, x[13]+0xa9e3e905, 5)
	d = step(f2, d, a, b, c, x[2]+0xfcefa3f8, 9)
	c = step(f2, c, d, a, b, x[7]+0x676f02d9, 14)
	b = step(f2, b, c, d, a, x[12]+0x8d2a4c8a, 20)

	a = step(f3, a, b, c, d, x[5]+0xfffa3942, 4)
	d = step(f3, d, a, b, c, x[8]+0x8771f681, 11)
	c = step(f3, c, d, a, b, x[11]+0x6d9d6122, 16)
	b = step(f3, b, c, d, a, x[14]+0xfde5380c, 23)
	a = step(f3, a, b, c, d, x[1]+0xa4beea44, 4)
	d = step(f3, d, a, b, c, x[4]+0x4bdecfa9, 11)
	c = step(f3, c, d, a, b, x[7]+0xf6bb4b60, 16)
	b = step(f3, b, c, d, a, x[10]+0xbebfbc70, 23)
	a = step(f3, a, b, c, d, x[13]+0x289b7ec6, 4)
	d = step(f3, d, a, b, c, x[0]+0xeaa127fa, 11)
	c = step(f3, c, d, a, b, x[3]+0xd4ef3085, 16)
	b = step(f3, b, c, d, a, x[6]+0x04881d05, 23)
	a = step(f3, a, b, c, d, x[9]+0xd9d4d039, 4)
	d = step(f3, d, a, b, c, x[12]+0xe6db99e5, 11)
	c = step(f3, c, d, a, b, x[15]+0x1fa27cf8, 16)
	b = step(f3, b, c, d, a, x[2]+0xc4ac5665, 23)

	a = step(f4, a, b, c, d, x[0]+0xf4292244, 6)
	d = step(f4, d, a, b, c, x[7]+0x432aff97, 10)
	c = step(f4, c, d, a, b, x[14]+0xab9423a7, 15)
	b = step(f4, b, c, d, a, x[5]+0xfc93a039, 21)
	a = step(f4, a, b, c, d, x[12]+0x655b59c3, 6)
	d = step(f4, d, a, b, c, x[3]+0x8f0ccc92, 10)
	c = step(f4, c, d, a, b, x[10]+0xffeff47d, 15)
	b = step(f4, b, c, d, a, x[1]+0x85845dd1, 21)
	a = step(f4, a, b, c, d, x[8]+0x6fa87e4f, 6)
	d = step(f4, d, a, b, c, x[15]+0xfe2ce6e0, 10)
	c = step(f4, c, d, a, b, x[6]+0xa3014314, 15)
	b = step(f4, b, c, d, a, x[13]+0x4e0811a1, 21)
	a = step(f4, a, b, c, d, x[4]+0xf7537e82, 6)
	d = step(f4, d, a, b, c, x[11]+0xbd3af235, 10)
	c = step(f4, c, d, a, b, x[2]+0x2ad7d2bb, 15)
	b = step(f4, b, c, d, a, x[9]+0xeb86d391, 21)

	s.a += a
	s.b += b
	s.c += c
	s.d += d
}
