package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"

	"github.com/br-g/fastf1-livetiming/errors"
)

// maxPayloadSize bounds a single decompressed payload. Car telemetry
// snapshots run to a few hundred kilobytes; anything past this is a
// corrupt or hostile frame.
const maxPayloadSize = 16 << 20

// DecodePayload recovers the plain form of a single event payload. The
// feed uses two encodings without declaring which: plain JSON text, and
// base64-wrapped raw-deflate binary (topics conventionally suffixed ".z").
// The plain interpretation is attempted first, then the compressed one;
// payloads matching neither report ErrMalformedPayload.
func DecodePayload(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMalformedPayload,
			"Payload", "DecodePayload", "empty payload")
	}

	// Non-string JSON values (objects, arrays, numbers) are already plain.
	if trimmed[0] != '"' {
		if !json.Valid(trimmed) {
			return nil, errors.WrapInvalid(errors.ErrMalformedPayload,
				"Payload", "DecodePayload", "validate plain payload")
		}
		out := make([]byte, len(trimmed))
		copy(out, trimmed)
		return out, nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err),
			"Payload", "DecodePayload", "unquote string payload")
	}

	// Plain attempt: a text payload carries JSON directly.
	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	// Compressed attempt: base64 then raw deflate.
	compressed, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err),
			"Payload", "DecodePayload", "base64 decode")
	}

	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()

	plain, err := io.ReadAll(io.LimitReader(fr, maxPayloadSize+1))
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err),
			"Payload", "DecodePayload", "inflate")
	}
	if len(plain) > maxPayloadSize {
		return nil, errors.WrapInvalid(errors.ErrMalformedPayload,
			"Payload", "DecodePayload", "payload exceeds size limit")
	}
	if !utf8.Valid(plain) {
		return nil, errors.WrapInvalid(errors.ErrMalformedPayload,
			"Payload", "DecodePayload", "validate inflated text")
	}
	return plain, nil
}

// EncodePayload produces the compressed wire encoding of a payload:
// raw deflate then base64. Inverse of the compressed branch of
// DecodePayload; used by tests and the mock feed server.
func EncodePayload(plain []byte) (string, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", errors.Wrap(err, "Payload", "EncodePayload", "create deflate writer")
	}
	if _, err := fw.Write(plain); err != nil {
		return "", errors.Wrap(err, "Payload", "EncodePayload", "deflate")
	}
	if err := fw.Close(); err != nil {
		return "", errors.Wrap(err, "Payload", "EncodePayload", "flush deflate")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
