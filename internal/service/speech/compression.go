package speech

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// maxPayload bounds a decompressed frame. One TTS chunk or ASR result is far
// below it.
const maxPayload = 16 << 20

var errPayloadTooLarge = errors.New("decompressed payload exceeds limit")

// CompressPayload encodes data for a frame declaring method.
func CompressPayload(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		return gzipBytes(data)
	}
	return nil, fmt.Errorf("unsupported compression method: %d", method)
}

// DecompressPayload decodes the payload of a frame declaring method.
func DecompressPayload(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		return gunzipBytes(data)
	}
	return nil, fmt.Errorf("unsupported compression method: %d", method)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, werr := zw.Write(data)
	if cerr := zw.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return nil, fmt.Errorf("gzip: %w", werr)
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxPayload+1))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	if len(out) > maxPayload {
		return nil, errPayloadTooLarge
	}
	return out, nil
}
