// Package media handles client media payloads: base64 input decoding and
// video compression for upload-size limits.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an input payload slot.
type Kind string

// Input payload kinds.
const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Default MIME types assumed when a payload arrives without a data URI
// header. These match what browser capture produces in practice.
var defaultMIME = map[Kind]string{
	KindVideo: "video/mp4",
	KindImage: "image/png",
	KindAudio: "audio/mp3",
}

// Static errors for input decoding.
var (
	// ErrEmptyPayload is returned when the payload is empty.
	ErrEmptyPayload = errors.New("media: empty payload")
	// ErrInvalidBase64 is returned when the payload is not valid base64.
	ErrInvalidBase64 = errors.New("media: invalid base64 payload")
	// ErrMIMEMismatch is returned when a declared MIME type does not
	// match the expected payload kind.
	ErrMIMEMismatch = errors.New("media: declared type does not match expected kind")
)

// Input is one decoded media payload.
type Input struct {
	// Data is the raw decoded bytes.
	Data []byte
	// MIME is the declared or defaulted content type.
	MIME string
}

// DecodeInput decodes a client payload into raw bytes plus a MIME type.
// Payloads are either plain base64 or data URIs; a data URI's declared
// type must agree with the expected kind (a video slot rejects audio/*).
func DecodeInput(kind Kind, payload string) (Input, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Input{}, ErrEmptyPayload
	}

	mime := defaultMIME[kind]
	if strings.HasPrefix(payload, "data:") {
		header, rest, found := strings.Cut(payload[len("data:"):], ",")
		if !found {
			return Input{}, fmt.Errorf("%w: data uri without payload", ErrInvalidBase64)
		}
		if declared := strings.ToLower(strings.TrimSuffix(header, ";base64")); declared != "" {
			if !strings.HasPrefix(declared, string(kind)+"/") {
				return Input{}, fmt.Errorf("%w: got %q, want %s/*", ErrMIMEMismatch, declared, kind)
			}
			mime = declared
		}
		payload = rest
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return Input{}, err
	}
	if len(data) == 0 {
		return Input{}, ErrEmptyPayload
	}
	return Input{Data: data, MIME: mime}, nil
}

// ExtractBase64 strips a data URI header, returning the raw base64 text.
// Payloads without a header pass through unchanged.
func ExtractBase64(payload string) string {
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	if _, rest, found := strings.Cut(payload, ","); found {
		return rest
	}
	return payload
}

// decodeBase64 tolerates the padding and whitespace variations browsers
// and CLI tools produce.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)

	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return data, nil
}
