package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// DecompressConfig configures the request decompression middleware.
type DecompressConfig struct {
	// MaxDecompressedSize is the maximum size of the decompressed body.
	MaxDecompressedSize int64

	// MaxCompressedSize is the maximum size of the compressed input.
	MaxCompressedSize int64

	// MaxCompressionRatio is the maximum allowed decompressed/compressed
	// ratio; anything above it is rejected as a potential zipbomb.
	MaxCompressionRatio float64

	// AllowedEncodings lists the accepted Content-Encoding values.
	AllowedEncodings []string
}

// DefaultDecompressConfig returns the default configuration.
func DefaultDecompressConfig() *DecompressConfig {
	return &DecompressConfig{
		MaxDecompressedSize: 10 * 1024 * 1024, // 10MB
		MaxCompressedSize:   2 * 1024 * 1024,  // 2MB compressed input
		MaxCompressionRatio: 100,
		AllowedEncodings:    []string{"gzip", "zstd"},
	}
}

// Decompress decompresses request bodies based on the Content-Encoding
// header. Supports gzip and zstd. Place it BEFORE the body limit middleware
// so the limit applies to the decompressed size.
func Decompress(config *DecompressConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultDecompressConfig()
	}

	allowedSet := make(map[string]bool)
	for _, enc := range config.AllowedEncodings {
		allowedSet[strings.ToLower(enc)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead ||
				r.Method == http.MethodOptions || r.Method == http.MethodTrace {
				next.ServeHTTP(w, r)
				return
			}

			encoding := strings.ToLower(r.Header.Get("Content-Encoding"))
			if encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}

			if !allowedSet[encoding] {
				http.Error(w, fmt.Sprintf("unsupported Content-Encoding: %s", encoding),
					http.StatusUnsupportedMediaType)
				return
			}

			decompressed, err := decompressBodySafe(r.Body, encoding, config)
			if err != nil {
				// Generic message to the client; the detail stays server-side.
				http.Error(w, "invalid compressed request body", http.StatusBadRequest)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(decompressed))
			r.ContentLength = int64(len(decompressed))
			r.Header.Del("Content-Encoding")

			next.ServeHTTP(w, r)
		})
	}
}

// decompressBodySafe decompresses the body while enforcing the input size,
// output size, and compression ratio limits.
func decompressBodySafe(body io.ReadCloser, encoding string, config *DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressedData, err := io.ReadAll(io.LimitReader(body, config.MaxCompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read compressed body: %w", err)
	}

	if int64(len(compressedData)) > config.MaxCompressedSize {
		return nil, fmt.Errorf("compressed size %d exceeds limit %d", len(compressedData), config.MaxCompressedSize)
	}

	compressedSize := int64(len(compressedData))
	if compressedSize == 0 {
		return []byte{}, nil
	}

	var reader io.Reader

	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, fmt.Errorf("gzip reader error: %w", err)
		}
		defer gr.Close()
		reader = gr

	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(compressedData),
			zstd.WithDecoderMaxMemory(uint64(config.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader error: %w", err)
		}
		defer zr.Close()
		reader = zr

	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}

	expectedSize := compressedSize * 10
	if expectedSize > config.MaxDecompressedSize {
		expectedSize = config.MaxDecompressedSize
	}

	var decompressed bytes.Buffer
	decompressed.Grow(int(expectedSize))

	buf := make([]byte, 64*1024)
	var totalRead int64

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			totalRead += int64(n)

			if totalRead > config.MaxDecompressedSize {
				return nil, fmt.Errorf("decompressed size exceeds limit of %d bytes", config.MaxDecompressedSize)
			}

			// Ratio check every 1MB and at EOF.
			if totalRead%(1024*1024) == 0 || readErr == io.EOF {
				ratio := float64(totalRead) / float64(compressedSize)
				if ratio > config.MaxCompressionRatio {
					return nil, fmt.Errorf("compression ratio %.1f exceeds limit %.1f", ratio, config.MaxCompressionRatio)
				}
			}

			decompressed.Write(buf[:n])
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("decompression error: %w", readErr)
		}
	}

	return decompressed.Bytes(), nil
}
