package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
	"strconv"
)

const bytesPerRound = sha256.Size

// Stream is the fair byte source for one bet. Round r of the stream is
// HMAC-SHA256(key = serverSeed, msg = "clientSeed:nonce:r").
type Stream struct {
	mac        hash.Hash
	clientSeed string
	nonce      uint64
	round      int
	offset     int
	buf        [bytesPerRound]byte
}

// NewStream starts a stream at the given byte cursor
func NewStream(seeds Seeds, nonce uint64, cursor int) *Stream {
	s := &Stream{
		mac:        hmac.New(sha256.New, []byte(seeds.Server)),
		clientSeed: seeds.Client,
		nonce:      nonce,
		round:      cursor / bytesPerRound,
		offset:     cursor % bytesPerRound,
	}
	s.fill()
	return s
}

func (s *Stream) fill() {
	s.mac.Reset()
	msg := s.clientSeed + ":" + strconv.FormatUint(s.nonce, 10) + ":" + strconv.Itoa(s.round)
	s.mac.Write([]byte(msg))
	copy(s.buf[:], s.mac.Sum(nil))
}

// Byte returns the next byte
func (s *Stream) Byte() byte {
	if s.offset >= bytesPerRound {
		s.round++
		s.offset = 0
		s.fill()
	}
	b := s.buf[s.offset]
	s.offset++
	return b
}

// Float64 consumes 4 bytes and returns a value in [0, 1)
func (s *Stream) Float64() float64 {
	f := 0.0
	div := 1.0
	for i := 0; i < 4; i++ {
		div *= 256
		f += float64(s.Byte()) / div
	}
	return f
}

// Floats returns the first count floats of the stream for (seeds, nonce)
func Floats(seeds Seeds, nonce uint64, count int) []float64 {
	s := NewStream(seeds, nonce, 0)
	floats := make([]float64, count)
	for i := range floats {
		floats[i] = s.Float64()
	}
	return floats
}
