package httptransport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
)

// ReadSiblings parses a multipart/mixed sibling list. contentType is the
// Content-Type header of the enclosing response and must carry a boundary.
func ReadSiblings(contentType string, body io.Reader) ([]siblingkit.RawContent, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("invalid sibling list content type %q: %w", contentType, err)
	}
	if mediaType != ContentTypeMultipart {
		return nil, fmt.Errorf("unexpected sibling list content type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("sibling list has no multipart boundary")
	}

	mr := multipart.NewReader(body, boundary)
	var siblings []siblingkit.RawContent
	for {
		part, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sibling %d: %w", len(siblings), err)
		}

		value, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read sibling %d: %w", len(siblings), err)
		}

		rc, err := DecodeContentHeaders(http.Header(part.Header), value)
		if err != nil {
			return nil, fmt.Errorf("sibling %d: %w", len(siblings), err)
		}
		siblings = append(siblings, rc)
	}

	if len(siblings) == 0 {
		return nil, errors.New("sibling list is empty")
	}
	return siblings, nil
}

// WriteSiblings renders siblings as a multipart/mixed body and returns the
// Content-Type header to send with it.
func WriteSiblings(w io.Writer, siblings []siblingkit.RawContent) (string, error) {
	mw := multipart.NewWriter(w)
	for i, rc := range siblings {
		h := make(http.Header)
		EncodeContentHeaders(h, rc)
		part, err := mw.CreatePart(textproto.MIMEHeader(h))
		if err != nil {
			return "", fmt.Errorf("failed to write sibling %d: %w", i, err)
		}
		if _, err := io.Copy(part, bytes.NewReader(rc.Value)); err != nil {
			return "", fmt.Errorf("failed to write sibling %d: %w", i, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mime.FormatMediaType(ContentTypeMultipart, map[string]string{"boundary": mw.Boundary()}), nil
}
