package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Bundle file layout: a fixed header followed by the compressed CBOR
// payload. The digest is computed over the uncompressed payload so
// tampering with either the header or the body is detected.
//
//	magic "SPYG"        4 bytes
//	format version      1 byte
//	compression tag     1 byte
//	payload digest      32 bytes (BLAKE3)
//	uncompressed size   8 bytes big-endian
//	payload             remaining bytes

const (
	// FileExtension is the canonical bundle file extension.
	FileExtension = ".spy"

	formatVersion = 1
	headerSize    = 4 + 1 + 1 + 32 + 8

	// maxPayloadSize bounds the allocation a corrupt header can ask for.
	maxPayloadSize = 1 << 30
)

var magic = [4]byte{'S', 'P', 'Y', 'G'}

var (
	ErrInvalidBundle      = errors.New("not a spyglass export bundle")
	ErrUnsupportedVersion = errors.New("unsupported bundle format version")
	ErrDigestMismatch     = errors.New("bundle payload digest mismatch")
)

// Bundle is the payload of one export: the inspected device, the
// client if one was active, and per-plugin state.
type Bundle struct {
	ID         string        `cbor:"id" json:"id"`
	CreatedAt  time.Time     `cbor:"created_at" json:"created_at"`
	AppVersion string        `cbor:"app_version" json:"app_version"`
	Device     DeviceInfo    `cbor:"device" json:"device"`
	Client     *ClientInfo   `cbor:"client,omitempty" json:"client,omitempty"`
	Plugins    []PluginState `cbor:"plugins,omitempty" json:"plugins,omitempty"`
}

// DeviceInfo identifies the exported device.
type DeviceInfo struct {
	Serial   string `cbor:"serial" json:"serial"`
	Title    string `cbor:"title" json:"title"`
	OS       string `cbor:"os" json:"os"`
	Archived bool   `cbor:"archived,omitempty" json:"archived,omitempty"`
}

// ClientInfo identifies the exported client connection.
type ClientInfo struct {
	ID       string `cbor:"id" json:"id"`
	App      string `cbor:"app" json:"app"`
	OS       string `cbor:"os" json:"os"`
	DeviceID string `cbor:"device_id" json:"device_id"`
}

// PluginState carries one plugin's exportable data.
type PluginState struct {
	ID       string          `cbor:"id" json:"id"`
	Title    string          `cbor:"title" json:"title"`
	Version  string          `cbor:"version" json:"version"`
	Messages []PluginMessage `cbor:"messages,omitempty" json:"messages,omitempty"`
}

// PluginMessage is one message drained from the pending queue into the
// bundle.
type PluginMessage struct {
	Method string          `cbor:"method" json:"method"`
	Params json.RawMessage `cbor:"params,omitempty" json:"params,omitempty"`
}

// NewBundle creates an empty bundle with a fresh id.
func NewBundle(appVersion string) *Bundle {
	return &Bundle{
		ID:         fmt.Sprintf("export-%s", uuid.New().String()[:8]),
		CreatedAt:  time.Now().UTC(),
		AppVersion: appVersion,
	}
}

// Encode serializes the bundle: deterministic CBOR payload, digest,
// then the best compression for the payload.
func Encode(b *Bundle) ([]byte, error) {
	return encode(b, compressAuto)
}

// EncodeWith serializes the bundle forcing a specific compression tag.
// Incompressible payloads fall back to CompressionNone.
func EncodeWith(b *Bundle, tag CompressionTag) ([]byte, error) {
	return encode(b, func(payload []byte) ([]byte, CompressionTag, error) {
		compressed, err := compress(payload, tag)
		if err == errIncompressible {
			return payload, CompressionNone, nil
		}
		if err != nil {
			return nil, 0, err
		}
		return compressed, tag, nil
	})
}

func encode(b *Bundle, pick func([]byte) ([]byte, CompressionTag, error)) ([]byte, error) {
	payload, err := encMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}
	digest := blake3.Sum256(payload)

	compressed, tag, err := pick(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compress bundle: %w", err)
	}

	out := make([]byte, 0, headerSize+len(compressed))
	out = append(out, magic[:]...)
	out = append(out, formatVersion, byte(tag))
	out = append(out, digest[:]...)
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(payload)))
	out = append(out, size[:]...)
	out = append(out, compressed...)
	return out, nil
}

// Decode verifies and deserializes a bundle.
func Decode(data []byte) (*Bundle, error) {
	payload, err := payloadOf(data)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := decMode.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &b, nil
}

// Verify checks the header and the payload digest without decoding
// the payload.
func Verify(data []byte) error {
	_, err := payloadOf(data)
	return err
}

// payloadOf validates the header, decompresses the payload, and checks
// its digest.
func payloadOf(data []byte) ([]byte, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return nil, ErrInvalidBundle
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[4])
	}
	tag := CompressionTag(data[5])
	var digest [32]byte
	copy(digest[:], data[6:38])
	size := binary.BigEndian.Uint64(data[38:46])
	if size > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d exceeds limit", ErrInvalidBundle, size)
	}

	payload, err := decompress(data[headerSize:], tag, int(size))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress bundle: %w", err)
	}
	if blake3.Sum256(payload) != digest {
		return nil, ErrDigestMismatch
	}
	return payload, nil
}

// WriteFile encodes the bundle and writes it atomically.
func WriteFile(path string, b *Bundle) error {
	data, err := Encode(b)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// WriteFileWith encodes the bundle with a forced compression tag and
// writes it atomically.
func WriteFileWith(path string, b *Bundle, tag CompressionTag) error {
	data, err := EncodeWith(b, tag)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save bundle: %w", err)
	}
	return nil
}

// ReadFile reads, verifies, and decodes a bundle file.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return Decode(data)
}
