package httptransport

import "io"

// maxBytesReader wraps a response body and fails with errResponseTooLarge
// once more than limit bytes have been read.
type maxBytesReader struct {
	reader   io.Reader
	limit    int64
	consumed int64
}

func (r *maxBytesReader) Read(p []byte) (int, error) {
	if r.consumed > r.limit {
		return 0, errResponseTooLarge
	}

	// Allow one byte past the limit so an exact-size body still reaches EOF.
	maxRead := r.limit - r.consumed + 1
	if int64(len(p)) > maxRead {
		p = p[:maxRead]
	}

	n, err := r.reader.Read(p)
	r.consumed += int64(n)
	if r.consumed > r.limit {
		return n, errResponseTooLarge
	}
	return n, err
}
