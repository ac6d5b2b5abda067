package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxStreamBytes bounds how much of a streamed inference response is read.
const MaxStreamBytes = 32 << 20

const defaultMIME = "image/png"

var (
	ErrNoImageData         = errors.New("imagegen: response contained no image data")
	ErrUnrecognizedPayload = errors.New("imagegen: unrecognized response shape")
)

// PayloadKind tags the shape an inference backend answered with.
type PayloadKind int

const (
	KindUnknown PayloadKind = iota
	KindEncodedText
	KindRawBytes
	KindStream
)

func (k PayloadKind) String() string {
	switch k {
	case KindEncodedText:
		return "encoded_text"
	case KindRawBytes:
		return "raw_bytes"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Payload is what an inference backend returns: exactly one of text (base64
// or a data URL), raw bytes, or a stream the consumer must drain and close.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Bytes  []byte
	Stream io.ReadCloser
}

func EncodedText(s string) Payload { return Payload{Kind: KindEncodedText, Text: s} }

func RawBytes(b []byte) Payload { return Payload{Kind: KindRawBytes, Bytes: b} }

func Stream(rc io.ReadCloser) Payload { return Payload{Kind: KindStream, Stream: rc} }

// Image is a normalized inference result.
type Image struct {
	Data            []byte
	MIME            string
	DisplayEncoding string
}

// Generator is the contract implemented by inference backends.
type Generator interface {
	Generate(ctx context.Context, prompt string, steps int) (Payload, error)
}

// Normalize converts any payload shape into binary data plus a data URL.
// Streams are always closed.
func (p Payload) Normalize(ctx context.Context) (Image, error) {
	var data []byte
	switch p.Kind {
	case KindEncodedText:
		decoded, err := decodeText(p.Text)
		if err != nil {
			return Image{}, err
		}
		data = decoded
	case KindRawBytes:
		data = p.Bytes
	case KindStream:
		if p.Stream == nil {
			return Image{}, ErrNoImageData
		}
		defer p.Stream.Close()
		read, err := readStream(ctx, p.Stream)
		if err != nil {
			return Image{}, err
		}
		data = read
	default:
		return Image{}, ErrUnrecognizedPayload
	}
	if len(data) == 0 {
		return Image{}, ErrNoImageData
	}
	mime := detectMIME(data)
	return Image{
		Data:            data,
		MIME:            mime,
		DisplayEncoding: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

func decodeText(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoImageData
	}
	if strings.HasPrefix(text, "data:") {
		_, encoded, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("imagegen: malformed data url")
		}
		text = encoded
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		// some backends drop the padding
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("imagegen: decode base64: %w", err)
	}
	return data, nil
}

func readStream(ctx context.Context, r io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxStreamBytes+1))
	if err != nil {
		return nil, fmt.Errorf("imagegen: read stream: %w", err)
	}
	if n > MaxStreamBytes {
		return nil, fmt.Errorf("imagegen: stream exceeds %d bytes", MaxStreamBytes)
	}
	return buf.Bytes(), nil
}

func detectMIME(data []byte) string {
	mt := mimetype.Detect(data)
	if mt == nil || !strings.HasPrefix(mt.String(), "image/") {
		return defaultMIME
	}
	mime, _, _ := strings.Cut(mt.String(), ";")
	return mime
}
