package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
)

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestPayloadNormalizeShapes(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	testCases := []struct {
		name    string
		payload Payload
	}{
		{name: "bare base64", payload: EncodedText(encoded)},
		{name: "data url", payload: EncodedText("data:image/png;base64," + encoded)},
		{name: "unpadded base64", payload: EncodedText(strings.TrimRight(base64.StdEncoding.EncodeToString(pngHeader[:14]), "="))},
		{name: "raw bytes", payload: RawBytes(pngHeader)},
		{name: "stream", payload: Stream(io.NopCloser(bytes.NewReader(pngHeader)))},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img, err := tc.payload.Normalize(context.Background())
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if len(img.Data) == 0 {
				t.Fatalf("expected image data")
			}
			if !strings.HasPrefix(img.DisplayEncoding, "data:image/png;base64,") {
				t.Fatalf("unexpected display encoding prefix: %.40s", img.DisplayEncoding)
			}
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.DisplayEncoding, "data:image/png;base64,"))
			if err != nil || !bytes.Equal(decoded, img.Data) {
				t.Fatalf("display encoding does not match binary payload")
			}
		})
	}
}

func TestPayloadNormalizeDetectsJPEG(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	img, err := RawBytes(jpeg).Normalize(context.Background())
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if img.MIME != "image/jpeg" {
		t.Fatalf("unexpected mime: %s", img.MIME)
	}
}

func TestPayloadNormalizeFailures(t *testing.T) {
	testCases := []struct {
		name    string
		payload Payload
		want    error
	}{
		{name: "unknown kind", payload: Payload{}, want: ErrUnrecognizedPayload},
		{name: "empty text", payload: EncodedText("  "), want: ErrNoImageData},
		{name: "empty bytes", payload: RawBytes(nil), want: ErrNoImageData},
		{name: "nil stream", payload: Payload{Kind: KindStream}, want: ErrNoImageData},
		{name: "empty stream", payload: Stream(io.NopCloser(strings.NewReader(""))), want: ErrNoImageData},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.payload.Normalize(context.Background()); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := EncodedText("!!not base64!!").Normalize(context.Background()); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if _, err := EncodedText("data:image/png;base64").Normalize(context.Background()); err == nil {
		t.Fatalf("expected error for malformed data url")
	}
}

func TestPayloadNormalizeClosesStream(t *testing.T) {
	tracker := &closeTracker{Reader: bytes.NewReader(pngHeader)}
	if _, err := Stream(tracker).Normalize(context.Background()); err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if !tracker.closed {
		t.Fatalf("expected stream to be closed")
	}
}

func TestSyntheticGeneratorProducesPNG(t *testing.T) {
	gen := NewSyntheticGenerator()
	first, err := gen.Generate(context.Background(), "a red cube", 4)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	second, err := gen.Generate(context.Background(), "a red cube", 4)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	img, err := first.Normalize(context.Background())
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if img.MIME != "image/png" {
		t.Fatalf("unexpected mime: %s", img.MIME)
	}
	if bytes.Equal(first.Bytes, second.Bytes) {
		t.Fatalf("expected consecutive synthetic images to differ")
	}
}
