package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"
)

const (
	snapshotMediaType = "image/jpeg"
	snapshotQuality   = 85
)

// emptyDataURI is what an empty canvas serializes to.
const emptyDataURI DataURI = "data:,"

var errNotDataURI = errors.New("capture: not a base64 data URI")

// DataURI is an image embedded as a data: URL.
type DataURI string

func (d DataURI) String() string {
	return string(d)
}

// MediaType returns the declared media type, or "" when absent.
func (d DataURI) MediaType() string {
	rest, ok := strings.CutPrefix(string(d), "data:")
	if !ok {
		return ""
	}
	header, _, found := strings.Cut(rest, ",")
	if !found {
		return ""
	}
	mediaType, _, _ := strings.Cut(header, ";")
	return mediaType
}

// Bytes decodes the base64 payload.
func (d DataURI) Bytes() ([]byte, error) {
	rest, ok := strings.CutPrefix(string(d), "data:")
	if !ok {
		return nil, errNotDataURI
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return nil, errNotDataURI
	}
	return base64.StdEncoding.DecodeString(payload)
}

// Snapshot encodes frame at its native resolution as a lossy JPEG data URI.
// A nil or empty frame yields the empty data URI.
func Snapshot(frame image.Image) (DataURI, error) {
	if frame == nil || frame.Bounds().Empty() {
		return emptyDataURI, nil
	}
	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, frame, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return DataURI("data:" + snapshotMediaType + ";base64," + base64.StdEncoding.EncodeToString(buffer.Bytes())), nil
}

// DecodeSnapshot reads a PNG, JPEG or GIF still and snapshots it.
func DecodeSnapshot(reader io.Reader) (DataURI, error) {
	frame, _, err := image.Decode(reader)
	if err != nil {
		return "", fmt.Errorf("decode still image: %w", err)
	}
	return Snapshot(frame)
}
