package persistence

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/denizumutdereli/lvcsr-decoder/internal/lattice"
)

// Binary format constants, grounded on this codebase's pkg/persistence
// codec: a magic header, version, flags, length, and checksum, wrapping a
// msgpack payload with optional gzip compression.
const (
	MagicBytes    = "LATB" // lattice binary
	FormatVersion = 1
)

// Header mirrors this codebase's persistence header shape exactly, field
// for field.
type Header struct {
	Magic    [4]byte
	Version  uint16
	Flags    uint16
	DataLen  uint64
	Checksum uint32
}

const (
	FlagCompressed uint16 = 1 << 0
)

// Codec encodes/decodes a *lattice.Lattice to/from this module's binary
// persisted form.
type Codec struct {
	compress  bool
	compLevel int
}

// NewCodec constructs a Codec; compress enables best-speed gzip framing
// when it shrinks the payload.
func NewCodec(compress bool) *Codec {
	return &Codec{compress: compress, compLevel: gzip.BestSpeed}
}

// Encode serializes l to the binary format.
func (c *Codec) Encode(l *lattice.Lattice) ([]byte, error) {
	data, err := msgpack.Marshal(l)
	if err != nil {
		return nil, err
	}

	var flags uint16
	if c.compress {
		compressed, err := c.compressData(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			data = compressed
			flags |= FlagCompressed
		}
	}

	header := Header{
		Version:  FormatVersion,
		Flags:    flags,
		DataLen:  uint64(len(data)),
		Checksum: c.checksum(data),
	}
	copy(header.Magic[:], MagicBytes)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if _, err := buf.Write(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes raw back into a *lattice.Lattice.
func (c *Codec) Decode(raw []byte) (*lattice.Lattice, error) {
	if len(raw) < 20 {
		return nil, errors.New("persistence: data too short for a header")
	}

	buf := bytes.NewReader(raw)
	var header Header
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, errors.New("persistence: invalid magic bytes")
	}
	if header.Version > FormatVersion {
		return nil, errors.New("persistence: unsupported format version")
	}

	data := make([]byte, header.DataLen)
	if _, err := io.ReadFull(buf, data); err != nil {
		return nil, err
	}
	if c.checksum(data) != header.Checksum {
		return nil, errors.New("persistence: checksum mismatch")
	}

	if header.Flags&FlagCompressed != 0 {
		decompressed, err := c.decompressData(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}

	var l lattice.Lattice
	if err := msgpack.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Codec) compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.compLevel)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Codec) decompressData(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// checksum mirrors this codebase's simple polynomial checksum.
func (c *Codec) checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i++ {
		sum = sum*31 + uint32(data[i])
	}
	return sum
}
