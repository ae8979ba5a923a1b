package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	// ErrFormat reports an object that is not a guard blob or carries an
	// unknown version or compression byte.
	ErrFormat = errors.New("archive: malformed guard blob")
	// ErrChecksum reports a guard blob whose trailer does not match its
	// content.
	ErrChecksum = errors.New("archive: guard checksum mismatch")
)

// Compression selects the block compression applied to guard objects.
type Compression uint8

const (
	// NoCompression stores table images as written.
	NoCompression Compression = iota
	// LZ4 favours speed over ratio.
	LZ4
	// Zstd favours ratio over speed.
	Zstd
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool { return c <= Zstd }

var (
	guardMagic = [4]byte{'s', 'g', 'r', 'd'}

	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

const (
	containerVersion = 1

	// magic, version, compression, two reserved bytes, then the block
	// header: uncompressed and compressed sizes. CompressedSize 0 means
	// the payload is stored as written.
	headerSize  = 16
	trailerSize = 4
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// seal wraps payload in the guard container: header, optionally
// compressed block, CRC32 trailer over everything before it.
func seal(payload []byte, c Compression) ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("%w: %s", ErrFormat, c)
	}

	var compressed []byte
	switch c {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case Zstd:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	}

	// Keep the payload as written when compression gains too little;
	// lz4 reports incompressible input as an empty block.
	stored := len(compressed) == 0 || float64(len(compressed)) > float64(len(payload))*0.9
	body := compressed
	if stored {
		body = payload
	}

	blob := make([]byte, 0, headerSize+len(body)+trailerSize)
	blob = append(blob, guardMagic[:]...)
	blob = append(blob, containerVersion, byte(c), 0, 0)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(payload)))
	if stored {
		blob = binary.LittleEndian.AppendUint32(blob, 0)
	} else {
		blob = binary.LittleEndian.AppendUint32(blob, uint32(len(compressed)))
	}
	blob = append(blob, body...)
	return binary.LittleEndian.AppendUint32(blob, crc32.ChecksumIEEE(blob)), nil
}

// unseal verifies the container and returns its payload.
func unseal(blob []byte) ([]byte, error) {
	if len(blob) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFormat, len(blob))
	}
	if [4]byte(blob[:4]) != guardMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if blob[4] != containerVersion {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, blob[4])
	}
	c := Compression(blob[5])
	if !c.valid() {
		return nil, fmt.Errorf("%w: %s", ErrFormat, c)
	}

	content, trailer := blob[:len(blob)-trailerSize], blob[len(blob)-trailerSize:]
	if crc32.ChecksumIEEE(content) != binary.LittleEndian.Uint32(trailer) {
		return nil, ErrChecksum
	}

	payloadSize := binary.LittleEndian.Uint32(blob[8:])
	compressedSize := binary.LittleEndian.Uint32(blob[12:])
	body := content[headerSize:]

	if compressedSize == 0 {
		if uint32(len(body)) != payloadSize {
			return nil, fmt.Errorf("%w: stored size", ErrFormat)
		}
		return body, nil
	}
	if uint32(len(body)) != compressedSize {
		return nil, fmt.Errorf("%w: block size", ErrFormat)
	}

	out := make([]byte, payloadSize)
	switch c {
	case LZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if uint32(n) != payloadSize {
			return nil, fmt.Errorf("%w: decompressed size", ErrFormat)
		}
		return out, nil
	case Zstd:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(body, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if uint32(len(decoded)) != payloadSize {
			return nil, fmt.Errorf("%w: decompressed size", ErrFormat)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block without algorithm", ErrFormat)
	}
}
