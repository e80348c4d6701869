package siblingkit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/codec"
	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
)

func TestNewBucket_Defaults(t *testing.T) {
	b, err := NewBucket("users")
	require.NoError(t, err)

	assert.Equal(t, "users", b.Name())
	assert.Equal(t, DefaultBucketType, b.Type())
	assert.Same(t, codec.DefaultRegistry, b.Codecs())
	assert.Equal(t, codec.ContentTypeBinary, b.DefaultContentType())
	assert.False(t, b.AutoResolve())
	assert.NotNil(t, b.Logger())
	assert.IsType(t, &NoOpMetricsCollector{}, b.Metrics())
}

func TestNewBucket_Options(t *testing.T) {
	registry := codec.NewRegistry()
	lww := &LastWriteWinsResolver{}

	b, err := NewBucket("users",
		WithBucketType("maps"),
		WithCodecs(registry),
		WithDefaultResolver(lww),
		WithAutoResolve(true),
		WithDefaultContentType(codec.ContentTypeYAML),
	)
	require.NoError(t, err)

	assert.Equal(t, "maps", b.Type())
	assert.Same(t, registry, b.Codecs())
	assert.Same(t, lww, b.Resolver())
	assert.True(t, b.AutoResolve())
	assert.Equal(t, codec.ContentTypeYAML, b.DefaultContentType())
}

func TestNewBucket_Errors(t *testing.T) {
	_, err := NewBucket("")
	assert.Equal(t, kverrors.ErrCodeValidationFailure, kverrors.CodeOf(err))

	_, err = NewBucket("b", WithCodecs(nil))
	assert.Error(t, err)

	var nilFunc ResolverFunc
	_, err = NewBucket("b", WithDefaultResolver(nilFunc))
	assert.True(t, errors.Is(err, kverrors.ErrInvalidResolver))
}

func TestBucket_NewObject(t *testing.T) {
	b := newTestBucket(t, WithDefaultContentType(codec.ContentTypeText))
	o, err := b.NewObject(newMockClient(t), WithKey("k"))
	require.NoError(t, err)

	assert.Same(t, b, o.Bucket())
	ct, err := o.ContentType()
	require.NoError(t, err)
	assert.Equal(t, codec.ContentTypeText, ct)
}

func TestBucket_CodecRegistryIsConsulted(t *testing.T) {
	registry := codec.NewRegistry()
	registry.RegisterFuncs("application/x-upper",
		func(v any) ([]byte, error) { return []byte("UPPER:" + v.(string)), nil },
		func(b []byte) (any, error) { return "decoded:" + string(b), nil },
	)
	b := newTestBucket(t, WithCodecs(registry), WithDefaultContentType("application/x-upper"))
	o := newTestObject(t, newMockClient(t), b)

	require.NoError(t, o.SetData("x"))
	enc, err := o.EncodedData()
	require.NoError(t, err)
	assert.Equal(t, "UPPER:x", string(enc))

	require.NoError(t, o.SetEncodedData([]byte("raw")))
	v, err := o.Data()
	require.NoError(t, err)
	assert.Equal(t, "decoded:raw", v)
}
