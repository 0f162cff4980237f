package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrRead means the document could not be opened or its text layer could
// not be decoded. This is not retryable without a new document.
var ErrRead = errors.New("document: unreadable")

// ReadText returns the concatenated text of every page of a PDF document.
// Notices are generated with a text layer; rasterized scans are not
// supported.
func ReadText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}
	return buf.String(), nil
}
