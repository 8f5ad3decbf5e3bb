package media

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeInput_PlainBase64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("video-bytes"))

	got, err := DecodeInput(KindVideo, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Data) != "video-bytes" {
		t.Errorf("expected video-bytes, got %s", got.Data)
	}
	if got.MIME != "video/mp4" {
		t.Errorf("expected default video/mp4, got %s", got.MIME)
	}
}

func TestDecodeInput_DataURI(t *testing.T) {
	payload := "data:video/webm;base64," + base64.StdEncoding.EncodeToString([]byte("webm-bytes"))

	got, err := DecodeInput(KindVideo, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MIME != "video/webm" {
		t.Errorf("expected declared video/webm, got %s", got.MIME)
	}
	if string(got.Data) != "webm-bytes" {
		t.Errorf("expected webm-bytes, got %s", got.Data)
	}
}

func TestDecodeInput_DefaultMIMEPerKind(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("x"))

	tests := []struct {
		kind Kind
		want string
	}{
		{KindVideo, "video/mp4"},
		{KindImage, "image/png"},
		{KindAudio, "audio/mp3"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := DecodeInput(tt.kind, payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.MIME != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.MIME)
			}
		})
	}
}

func TestDecodeInput_AudioDataURITypes(t *testing.T) {
	for _, mime := range []string{"audio/wav", "audio/m4a", "audio/ogg", "audio/mpeg"} {
		t.Run(mime, func(t *testing.T) {
			payload := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte("a"))
			got, err := DecodeInput(KindAudio, payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.MIME != mime {
				t.Errorf("expected %s, got %s", mime, got.MIME)
			}
		})
	}
}

func TestDecodeInput_MIMEMismatch(t *testing.T) {
	payload := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString([]byte("a"))

	_, err := DecodeInput(KindVideo, payload)
	if !errors.Is(err, ErrMIMEMismatch) {
		t.Errorf("expected ErrMIMEMismatch, got %v", err)
	}
}

func TestDecodeInput_Empty(t *testing.T) {
	for _, payload := range []string{"", "   ", "\n"} {
		_, err := DecodeInput(KindVideo, payload)
		if !errors.Is(err, ErrEmptyPayload) {
			t.Errorf("expected ErrEmptyPayload for %q, got %v", payload, err)
		}
	}
}

func TestDecodeInput_InvalidBase64(t *testing.T) {
	_, err := DecodeInput(KindVideo, "!!!not-base64!!!")
	if !errors.Is(err, ErrInvalidBase64) {
		t.Errorf("expected ErrInvalidBase64, got %v", err)
	}
}

func TestDecodeInput_UnpaddedBase64(t *testing.T) {
	// One byte encodes to two chars plus padding; browsers sometimes drop it.
	got, err := DecodeInput(KindImage, base64.RawStdEncoding.EncodeToString([]byte("img")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Data) != "img" {
		t.Errorf("expected img, got %s", got.Data)
	}
}

func TestDecodeInput_WhitespaceTolerated(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("video-bytes"))
	payload := enc[:4] + "\n" + enc[4:]

	got, err := DecodeInput(KindVideo, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Data) != "video-bytes" {
		t.Errorf("expected video-bytes, got %s", got.Data)
	}
}

func TestExtractBase64(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"plain passes through", "abcd", "abcd"},
		{"data uri stripped", "data:video/mp4;base64,abcd", "abcd"},
		{"headerless data uri unchanged", "data:video/mp4", "data:video/mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBase64(tt.payload); got != tt.want {
				t.Errorf("ExtractBase64(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}
