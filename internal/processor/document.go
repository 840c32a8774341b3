package processor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmptyDocument   = errors.New("image is required")
	ErrInvalidEncoding = errors.New("image must be base64 or a base64 data URL")
	ErrUnsupportedType = errors.New("unsupported document type")
)

// Document is an uploaded image or PDF as forwarded upstream.
type Document struct {
	Base64   string
	MIMEType string
	Size     int
}

// DecodeDocument accepts raw base64 or a "data:<mime>;base64," URL, checks
// the decoded bytes are an accepted format and returns the bare base64.
func DecodeDocument(s string) (Document, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return Document{}, ErrInvalidEncoding
		}
		s = s[i+1:]
	}
	if s == "" {
		return Document{}, ErrEmptyDocument
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return Document{}, ErrInvalidEncoding
		}
		s = base64.StdEncoding.EncodeToString(raw)
	}
	if len(raw) == 0 {
		return Document{}, ErrEmptyDocument
	}
	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), AcceptedMIMETypes...) {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}
	return Document{Base64: s, MIMEType: mt.String(), Size: len(raw)}, nil
}
