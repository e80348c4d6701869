package siblingkit

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/codec"
	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/version"
)

func TestNewObject_KeyValidation(t *testing.T) {
	client := newMockClient(t)
	b := newTestBucket(t)

	tests := []struct {
		name    string
		opts    []ObjectOption
		wantKey string
		hasKey  bool
		wantErr error
	}{
		{name: "absent key", opts: nil},
		{name: "non-empty key", opts: []ObjectOption{WithKey("user:1")}, wantKey: "user:1", hasKey: true},
		{name: "single character key", opts: []ObjectOption{WithKey("x")}, wantKey: "x", hasKey: true},
		{name: "empty key", opts: []ObjectOption{WithKey("")}, wantErr: kverrors.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewObject(client, b, tt.opts...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Equal(t, kverrors.ErrCodeInvalidKey, kverrors.CodeOf(err))
				assert.Nil(t, o)
				return
			}
			require.NoError(t, err)
			key, ok := o.Key()
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.hasKey, ok)
		})
	}
}

func TestNewObject_RequiresCollaborators(t *testing.T) {
	_, err := NewObject(nil, newTestBucket(t))
	assert.True(t, errors.Is(err, kverrors.ErrInvalidObject))

	_, err = NewObject(newMockClient(t), nil)
	assert.True(t, errors.Is(err, kverrors.ErrInvalidObject))
}

func TestNewObject_StartsWithOwnEmptySibling(t *testing.T) {
	client := newMockClient(t)
	b := newTestBucket(t, WithDefaultContentType(codec.ContentTypeJSON))

	a := newTestObject(t, client, b)
	other := newTestObject(t, client, b)

	require.Equal(t, 1, a.SiblingCount())
	assert.Equal(t, StateResolved, a.State())
	assert.False(t, a.Exists())
	assert.True(t, a.VClock().IsZero())

	c, err := a.Content()
	require.NoError(t, err)
	assert.False(t, c.HasData())
	assert.Equal(t, codec.ContentTypeJSON, c.ContentType())
	assert.Same(t, a, c.Object())

	addSibling(a, "extra", time.Now())
	assert.Equal(t, 2, a.SiblingCount())
	assert.Equal(t, 1, other.SiblingCount())
	assert.NotSame(t, a.siblings[0], other.siblings[0])
}

func TestNewObject_ContentTypeOption(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithContentType(codec.ContentTypeText))
	ct, err := o.ContentType()
	require.NoError(t, err)
	assert.Equal(t, codec.ContentTypeText, ct)
}

func TestObject_NewObjectSetsData(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithContentType(codec.ContentTypeJSON))

	require.NoError(t, o.SetData(map[string]any{"n": float64(1)}))
	got, err := o.Data()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(1)}, got)

	b, err := o.EncodedData()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))
}

func TestObject_SiblingsReturnsCopy(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b")

	siblings := o.Siblings()
	siblings[0] = nil

	assert.Equal(t, 2, o.SiblingCount())
	assert.NotNil(t, o.siblings[0])
}

func TestObject_ConflictGatesSingleValueAccess(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithKey("k"))
	require.NoError(t, o.SetData("only"))

	addSibling(o, "second", time.Now())
	require.Equal(t, StateConflicted, o.State())

	checks := map[string]func() error{
		"Content":        func() error { _, err := o.Content(); return err },
		"Data":           func() error { _, err := o.Data(); return err },
		"SetData":        func() error { return o.SetData("x") },
		"EncodedData":    func() error { _, err := o.EncodedData(); return err },
		"SetEncodedData": func() error { return o.SetEncodedData([]byte("x")) },
		"ContentType":    func() error { _, err := o.ContentType(); return err },
		"SetContentType": func() error { return o.SetContentType("text/plain") },
		"Charset":        func() error { _, err := o.Charset(); return err },
		"ContentEncoding": func() error {
			_, err := o.ContentEncoding()
			return err
		},
		"UserMeta":     func() error { _, err := o.UserMeta(); return err },
		"SetUserMeta":  func() error { return o.SetUserMeta(map[string]string{"a": "b"}) },
		"LastModified": func() error { _, err := o.LastModified(); return err },
		"AddIndex":     func() error { return o.AddIndex("f_bin", "v") },
		"AddLink":      func() error { return o.AddLink(Link{Bucket: "b", Key: "k"}) },
	}

	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			err := fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, kverrors.ErrConflict))
			assert.Equal(t, kverrors.ErrCodeSiblingConflict, kverrors.CodeOf(err))
		})
	}

	// neither sibling was touched by the failed writes
	v, err := o.siblings[0].Data()
	require.NoError(t, err)
	assert.Equal(t, "only", v)
}

func TestObject_ResolveKeepsMostRecentlyModified(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithKey("k"))
	o.siblings = nil
	addSibling(o, "older", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := addSibling(o, "newer", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	require.NoError(t, o.SetResolver(&LastWriteWinsResolver{}))
	require.NoError(t, o.Resolve(context.Background()))

	require.Equal(t, 1, o.SiblingCount())
	assert.Same(t, newer, o.Siblings()[0])
	assert.Same(t, o, newer.Object())

	v, err := o.Data()
	require.NoError(t, err)
	assert.Equal(t, "newer", v)
}

func TestObject_ResolveIsNoOpWhenResolved(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t))
	calls := 0
	require.NoError(t, o.SetResolver(ResolverFunc(func(_ context.Context, o *Object) (*Object, error) {
		calls++
		return o, nil
	})))

	require.NoError(t, o.Resolve(context.Background()))
	assert.Zero(t, calls)
}

func TestObject_ResolverMayLeaveSeveralSiblings(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b", "c")

	err := o.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, o.SiblingCount())

	_, err = o.Data()
	assert.True(t, errors.Is(err, kverrors.ErrConflict))
}

func TestObject_ResolveFailuresLeaveSiblings(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		resolver ResolverFunc
		is       error
	}{
		{
			name: "resolver error",
			resolver: func(context.Context, *Object) (*Object, error) {
				return nil, boom
			},
			is: boom,
		},
		{
			name: "nil result",
			resolver: func(context.Context, *Object) (*Object, error) {
				return nil, nil
			},
		},
		{
			name: "no siblings",
			resolver: func(_ context.Context, o *Object) (*Object, error) {
				return o.WithSiblings(), nil
			},
		},
		{
			name: "nil sibling",
			resolver: func(_ context.Context, o *Object) (*Object, error) {
				return o.WithSiblings(nil), nil
			},
			is: kverrors.ErrInvalidSibling,
		},
		{
			name: "sibling of another object",
			resolver: func(_ context.Context, o *Object) (*Object, error) {
				other := &Object{bucket: o.bucket}
				return o.WithSiblings(&Content{owner: other, contentType: codec.ContentTypeText}), nil
			},
			is: kverrors.ErrInvalidSibling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newRecordingMetrics()
			o := conflictedObject(t, newMockClient(t), newTestBucket(t, WithMetrics(metrics)), "a", "b")
			before := o.Siblings()

			require.NoError(t, o.SetResolver(tt.resolver))
			err := o.Resolve(context.Background())
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is))
			}
			assert.Equal(t, before, o.Siblings())
			assert.Len(t, metrics.errors[string(kverrors.OpResolve)], 1)
			assert.Empty(t, metrics.resolutions)
		})
	}
}

func TestObject_ResolverScopes(t *testing.T) {
	pointer := func(r Resolver) uintptr { return reflect.ValueOf(r).Pointer() }

	b := newTestBucket(t)
	o := newTestObject(t, newMockClient(t), b)
	assert.Equal(t, pointer(DefaultResolver), pointer(o.Resolver()))

	bucketDefault := &LastWriteWinsResolver{}
	require.NoError(t, b.SetResolver(bucketDefault))
	assert.Same(t, bucketDefault, o.Resolver())

	override := &DropTombstonesResolver{}
	require.NoError(t, o.SetResolver(override))
	assert.Same(t, override, o.Resolver())

	require.NoError(t, o.SetResolver(nil))
	assert.Same(t, bucketDefault, o.Resolver())
}

func TestObject_SetResolverRejectsUncallable(t *testing.T) {
	var nilFunc ResolverFunc
	var nilPointer *LastWriteWinsResolver
	var nilDynamic *DynamicResolver

	for name, bad := range map[string]Resolver{
		"nil func":            nilFunc,
		"nil pointer":         nilPointer,
		"nil dynamic pointer": nilDynamic,
	} {
		t.Run(name, func(t *testing.T) {
			b := newTestBucket(t)
			o := newTestObject(t, newMockClient(t), b)

			previous := &LastWriteWinsResolver{}
			require.NoError(t, o.SetResolver(previous))

			err := o.SetResolver(bad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, kverrors.ErrInvalidResolver))
			assert.Equal(t, kverrors.ErrCodeInvalidResolver, kverrors.CodeOf(err))
			assert.Same(t, previous, o.Resolver())

			require.NoError(t, b.SetResolver(previous))
			err = b.SetResolver(bad)
			assert.True(t, errors.Is(err, kverrors.ErrInvalidResolver))
			assert.Same(t, previous, b.Resolver())

			_, err = NewObject(newMockClient(t), b, WithResolver(bad))
			assert.True(t, errors.Is(err, kverrors.ErrInvalidResolver))
		})
	}
}

func TestObject_ReloadNotFound(t *testing.T) {
	client := newMockClient(t)
	b := newTestBucket(t)
	o := newTestObject(t, client, b, WithKey("missing"))

	client.EXPECT().
		Fetch(gomock.Any(), FetchRequest{BucketType: DefaultBucketType, Bucket: "test", Key: "missing"}).
		Return(&FetchResponse{Exists: false}, nil)

	got, err := o.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, o, got)
	assert.False(t, o.Exists())
	assert.Equal(t, StateResolved, o.State())

	v, err := o.Data()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestObject_ReloadReplacesSiblings(t *testing.T) {
	client := newMockClient(t)
	metrics := newRecordingMetrics()
	o := newTestObject(t, client, newTestBucket(t, WithMetrics(metrics)), WithKey("cart:1"))
	original := o.siblings[0]

	vclock := version.NewVClock([]byte("a85hYGBg"))
	client.EXPECT().
		Fetch(gomock.Any(), gomock.Any()).
		Return(&FetchResponse{
			Exists: true,
			VClock: vclock,
			Siblings: []RawContent{
				{ContentType: codec.ContentTypeJSON, Value: []byte(`{"items":1}`), UserMeta: map[string]string{"origin": "a"}},
				{ContentType: codec.ContentTypeJSON, Value: []byte(`{"items":2}`), Deleted: true},
			},
		}, nil)

	_, err := o.Reload(context.Background())
	require.NoError(t, err)

	assert.True(t, o.Exists())
	assert.True(t, o.VClock().Equal(vclock))
	require.Equal(t, StateConflicted, o.State())

	siblings := o.Siblings()
	assert.NotSame(t, original, siblings[0])
	for _, c := range siblings {
		assert.Same(t, o, c.Object())
	}

	v, err := siblings[0].Data()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": float64(1)}, v)
	assert.Equal(t, "a", siblings[0].UserMeta()["origin"])
	assert.True(t, siblings[1].Deleted())

	assert.Equal(t, []int{2}, metrics.siblings)
	assert.Equal(t, 1, metrics.durations[string(kverrors.OpReload)])
}

func TestObject_ReloadFailureLeavesSiblings(t *testing.T) {
	transportErr := kverrors.NewNetworkError(kverrors.OpTransport, errors.New("connection refused"))

	tests := []struct {
		name string
		ctx  func() context.Context
		err  error
	}{
		{name: "transport error", ctx: context.Background, err: transportErr},
		{
			name: "cancelled",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			err: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockClient(t)
			metrics := newRecordingMetrics()
			o := conflictedObject(t, client, newTestBucket(t, WithMetrics(metrics)), "left", "right")
			o.vclock = version.NewVClock([]byte("before"))
			o.exists = true

			before := o.Siblings()
			var beforeData []any
			for _, c := range before {
				v, err := c.Data()
				require.NoError(t, err)
				beforeData = append(beforeData, v)
			}

			client.EXPECT().
				Fetch(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, _ FetchRequest) (*FetchResponse, error) {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					return nil, tt.err
				})

			got, err := o.Reload(tt.ctx())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))
			assert.Nil(t, got)

			assert.Equal(t, before, o.Siblings())
			for i, c := range o.Siblings() {
				v, err := c.Data()
				require.NoError(t, err)
				assert.Equal(t, beforeData[i], v)
			}
			assert.True(t, o.VClock().Equal(version.NewVClock([]byte("before"))))
			assert.True(t, o.Exists())
			assert.Len(t, metrics.errors[string(kverrors.OpReload)], 1)
		})
	}
}

func TestObject_ReloadRequiresKey(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t))
	_, err := o.Reload(context.Background())
	assert.True(t, errors.Is(err, kverrors.ErrKeyRequired))
}

func TestObject_ReloadAutoResolves(t *testing.T) {
	client := newMockClient(t)
	metrics := newRecordingMetrics()
	b := newTestBucket(t,
		WithAutoResolve(true),
		WithDefaultResolver(&LastWriteWinsResolver{}),
		WithMetrics(metrics),
	)
	o := newTestObject(t, client, b, WithKey("k"))

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client.EXPECT().
		Fetch(gomock.Any(), gomock.Any()).
		Return(&FetchResponse{
			Exists: true,
			Siblings: []RawContent{
				{ContentType: codec.ContentTypeText, Value: []byte("old"), LastModified: t0},
				{ContentType: codec.ContentTypeText, Value: []byte("new"), LastModified: t0.Add(time.Second)},
				{ContentType: codec.ContentTypeText, Value: []byte("mid"), LastModified: t0.Add(time.Millisecond)},
			},
		}, nil)

	_, err := o.Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateResolved, o.State())

	v, err := o.Data()
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	assert.Equal(t, [][2]int{{3, 1}}, metrics.resolutions)
}

func TestObject_ReloadAutoResolveFailureKeepsFetchedSiblings(t *testing.T) {
	client := newMockClient(t)
	boom := errors.New("boom")
	b := newTestBucket(t,
		WithAutoResolve(true),
		WithDefaultResolver(ResolverFunc(func(context.Context, *Object) (*Object, error) {
			return nil, boom
		})),
	)
	o := newTestObject(t, client, b, WithKey("k"))

	client.EXPECT().
		Fetch(gomock.Any(), gomock.Any()).
		Return(&FetchResponse{
			Exists: true,
			Siblings: []RawContent{
				{ContentType: codec.ContentTypeText, Value: []byte("a")},
				{ContentType: codec.ContentTypeText, Value: []byte("b")},
			},
		}, nil)

	got, err := o.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAutoResolve))
	assert.True(t, errors.Is(err, boom))
	assert.Same(t, o, got)
	assert.True(t, o.Exists())
	assert.Equal(t, 2, o.SiblingCount())
}

func TestObject_Store(t *testing.T) {
	client := newMockClient(t)
	o := newTestObject(t, client, newTestBucket(t), WithKey("user:1"), WithContentType(codec.ContentTypeJSON))
	o.vclock = version.NewVClock([]byte("prev"))
	require.NoError(t, o.SetData(map[string]any{"name": "ana"}))
	require.NoError(t, o.SetUserMeta(map[string]string{"source": "test"}))

	next := version.NewVClock([]byte("next"))
	client.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req StoreRequest) (*StoreResponse, error) {
			assert.Equal(t, "user:1", req.Key)
			assert.Equal(t, "test", req.Bucket)
			assert.True(t, req.VClock.Equal(version.NewVClock([]byte("prev"))))
			assert.False(t, req.ReturnBody)
			assert.Equal(t, codec.ContentTypeJSON, req.Content.ContentType)
			assert.JSONEq(t, `{"name":"ana"}`, string(req.Content.Value))
			assert.Equal(t, "test", req.Content.UserMeta["source"])
			return &StoreResponse{Key: req.Key, VClock: next}, nil
		})

	got, err := o.Store(context.Background())
	require.NoError(t, err)
	assert.Same(t, o, got)
	assert.True(t, o.Exists())
	assert.True(t, o.VClock().Equal(next))
	assert.Equal(t, 1, o.SiblingCount())
}

func TestObject_StoreServerAssignedKey(t *testing.T) {
	client := newMockClient(t)
	o := newTestObject(t, client, newTestBucket(t))
	require.NoError(t, o.SetData([]byte("payload")))

	client.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req StoreRequest) (*StoreResponse, error) {
			assert.Empty(t, req.Key)
			assert.Equal(t, []byte("payload"), req.Content.Value)
			return &StoreResponse{Key: "generated-key"}, nil
		})

	_, err := o.Store(context.Background())
	require.NoError(t, err)
	key, ok := o.Key()
	assert.True(t, ok)
	assert.Equal(t, "generated-key", key)
}

func TestObject_StoreReturnBody(t *testing.T) {
	client := newMockClient(t)
	o := newTestObject(t, client, newTestBucket(t), WithKey("k"), WithContentType(codec.ContentTypeText))
	require.NoError(t, o.SetData("mine"))

	client.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req StoreRequest) (*StoreResponse, error) {
			assert.True(t, req.ReturnBody)
			return &StoreResponse{
				Key: "k",
				Siblings: []RawContent{
					{ContentType: codec.ContentTypeText, Value: []byte("mine")},
					{ContentType: codec.ContentTypeText, Value: []byte("theirs")},
				},
			}, nil
		})

	_, err := o.Store(context.Background(), WithReturnBody())
	require.NoError(t, err)
	assert.Equal(t, StateConflicted, o.State())
}

func TestObject_StoreRequiresResolvedState(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b")

	_, err := o.Store(context.Background())
	assert.True(t, errors.Is(err, kverrors.ErrConflict))
}

func TestObject_StoreEncodeErrorIsNotWrapped(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithContentType(codec.ContentTypeJSON))
	require.NoError(t, o.SetData(func() {}))

	_, err := o.Store(context.Background())
	require.Error(t, err)
	assert.IsType(t, &codec.EncodeError{}, err)
}

func TestObject_StoreFailureLeavesState(t *testing.T) {
	client := newMockClient(t)
	o := newTestObject(t, client, newTestBucket(t), WithKey("k"))
	require.NoError(t, o.SetData("v"))

	client.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		Return(nil, kverrors.NewNetworkError(kverrors.OpTransport, errors.New("503")))

	_, err := o.Store(context.Background())
	require.Error(t, err)
	assert.True(t, kverrors.IsRetryable(err))
	assert.False(t, o.Exists())
	assert.True(t, o.VClock().IsZero())
}

func TestObject_Delete(t *testing.T) {
	client := newMockClient(t)
	o := newTestObject(t, client, newTestBucket(t), WithKey("k"))
	require.NoError(t, o.SetData("v"))
	o.exists = true
	o.vclock = version.NewVClock([]byte("vc"))

	client.EXPECT().
		Remove(gomock.Any(), RemoveRequest{
			BucketType: DefaultBucketType,
			Bucket:     "test",
			Key:        "k",
			VClock:     version.NewVClock([]byte("vc")),
		}).
		Return(nil)

	require.NoError(t, o.Delete(context.Background()))
	assert.False(t, o.Exists())
	assert.True(t, o.VClock().IsZero())
	assert.Equal(t, 1, o.SiblingCount())

	v, err := o.Data()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestObject_DeleteRequiresKey(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t))
	assert.True(t, errors.Is(o.Delete(context.Background()), kverrors.ErrKeyRequired))
}

func TestObject_SetSiblings(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t))

	err := o.SetSiblings(nil)
	require.Error(t, err)
	assert.Equal(t, 1, o.SiblingCount())

	a, b := NewContent(codec.ContentTypeText), NewContent(codec.ContentTypeText)
	require.NoError(t, o.SetSiblings([]*Content{a, b}))
	assert.Equal(t, StateConflicted, o.State())
	assert.Same(t, o, a.Object())
	assert.Same(t, o, b.Object())

	err = o.SetSiblings([]*Content{a, nil})
	assert.True(t, errors.Is(err, kverrors.ErrInvalidSibling))
	assert.Equal(t, 2, o.SiblingCount())

	// siblings already owned by o, or taken from a view of it, are accepted
	view := o.WithSiblings(a)
	require.NoError(t, view.SetSiblings([]*Content{a}))
	assert.Same(t, o, a.Object())
	require.NoError(t, o.SetSiblings([]*Content{b}))
	assert.Equal(t, StateResolved, o.State())
}

func TestObject_SetSiblingsRejectsForeignContent(t *testing.T) {
	client := newMockClient(t)
	first := newTestObject(t, client, newTestBucket(t), WithContentType(codec.ContentTypeText))
	second := newTestObject(t, client, newTestBucket(t), WithContentType(codec.ContentTypeText))
	require.NoError(t, first.SetData("original"))

	err := second.SetSiblings(first.Siblings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, kverrors.ErrInvalidSibling))
	assert.Equal(t, kverrors.ErrCodeValidationFailure, kverrors.CodeOf(err))

	c, err := first.Content()
	require.NoError(t, err)
	assert.Same(t, first, c.Object())

	copied := c.Clone()
	assert.Nil(t, copied.Object())
	require.NoError(t, second.SetSiblings([]*Content{copied}))
	require.NoError(t, second.SetData("changed"))

	got, err := first.Data()
	require.NoError(t, err)
	assert.Equal(t, "original", got)
	assert.Same(t, second, copied.Object())
}

func TestContent_CloneIsIndependent(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithContentType(codec.ContentTypeText))
	c, err := o.Content()
	require.NoError(t, err)
	c.SetEncodedData([]byte("abc"))
	c.SetUserMeta(map[string]string{"owner": "ann"})
	c.AddIndex("email_bin", "ann@example.com")

	copied := c.Clone()
	copied.SetUserMeta(map[string]string{"owner": "bob"})
	copied.AddIndex("age_int", "42")

	assert.Equal(t, map[string]string{"owner": "ann"}, c.UserMeta())
	assert.Len(t, c.Indexes(), 1)
	b, err := copied.EncodedData()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "resolved", StateResolved.String())
	assert.Equal(t, "conflicted", StateConflicted.String())
	assert.Equal(t, "unknown", State(42).String())
}
