package siblingkit

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/codec"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
)

const countingContentType = "application/x-counting"

// countingCodec wraps the JSON codec and counts conversions.
type countingCodec struct {
	encodes int
	decodes int
}

func (c *countingCodec) ContentType() string { return countingContentType }

func (c *countingCodec) Encode(v any) ([]byte, error) {
	c.encodes++
	return codec.JSON.Encode(v)
}

func (c *countingCodec) Decode(b []byte) (any, error) {
	c.decodes++
	return codec.JSON.Decode(b)
}

// recordingMetrics captures every metrics call.
type recordingMetrics struct {
	durations   map[string]int
	errors      map[string][]string
	siblings    []int
	resolutions [][2]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		durations: make(map[string]int),
		errors:    make(map[string][]string),
	}
}

func (m *recordingMetrics) RecordOperationDuration(operation string, _ time.Duration) {
	m.durations[operation]++
}

func (m *recordingMetrics) RecordOperationError(operation, errorType string) {
	m.errors[operation] = append(m.errors[operation], errorType)
}

func (m *recordingMetrics) RecordSiblings(_ string, count int) {
	m.siblings = append(m.siblings, count)
}

func (m *recordingMetrics) RecordResolution(_ string, before, after int) {
	m.resolutions = append(m.resolutions, [2]int{before, after})
}

func newTestBucket(t *testing.T, opts ...BucketOption) *Bucket {
	t.Helper()
	b, err := NewBucket("test", append([]BucketOption{WithLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	return b
}

func newMockClient(t *testing.T) *MockStoreClient {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockStoreClient(ctrl)
}

func newTestObject(t *testing.T, client StoreClient, b *Bucket, opts ...ObjectOption) *Object {
	t.Helper()
	o, err := NewObject(client, b, opts...)
	require.NoError(t, err)
	return o
}

// addSibling appends a sibling directly, simulating a read conflict.
func addSibling(o *Object, data any, modified time.Time) *Content {
	c := &Content{owner: o, contentType: codec.ContentTypeJSON, lastModified: modified}
	c.SetData(data)
	o.siblings = append(o.siblings, c)
	return c
}

// conflictedObject returns a keyed object holding one sibling per value, each
// modified one minute after the previous.
func conflictedObject(t *testing.T, client StoreClient, b *Bucket, values ...any) *Object {
	t.Helper()
	o := newTestObject(t, client, b, WithKey("k"))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o.siblings = nil
	for i, v := range values {
		addSibling(o, v, base.Add(time.Duration(i)*time.Minute))
	}
	return o
}
