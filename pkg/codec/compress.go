package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use
// through EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns data as a zstd frame.
func Compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

// Decompress decodes a zstd frame produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether data starts with the zstd frame magic.
func IsCompressed(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd
}
