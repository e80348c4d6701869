package siblingkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/c0deZ3R0/go-sibling-kit/codec"
)

func TestBucketIs(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t))
	assert.True(t, BucketIs("test")(o))
	assert.False(t, BucketIs("other")(o))
}

func TestKeyPrefix(t *testing.T) {
	client := newMockClient(t)
	b := newTestBucket(t)

	keyed := newTestObject(t, client, b, WithKey("cart:42"))
	assert.True(t, KeyPrefix("cart:")(keyed))
	assert.False(t, KeyPrefix("user:")(keyed))

	unkeyed := newTestObject(t, client, b)
	assert.False(t, KeyPrefix("")(unkeyed), "objects without a key never match")
}

func TestContentTypeIs(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b")
	assert.True(t, ContentTypeIs(codec.ContentTypeJSON)(o))

	o.siblings[1].contentType = codec.ContentTypeText
	assert.False(t, ContentTypeIs(codec.ContentTypeJSON)(o))
}

func TestSiblingsAtLeast(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b", "c")
	assert.True(t, SiblingsAtLeast(2)(o))
	assert.True(t, SiblingsAtLeast(3)(o))
	assert.False(t, SiblingsAtLeast(4)(o))
}

func TestUserMetaEq(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b")
	o.siblings[1].SetUserMeta(map[string]string{"role": "admin"})

	assert.True(t, UserMetaEq("role", "admin")(o))
	assert.False(t, UserMetaEq("role", "user")(o))
	assert.False(t, UserMetaEq("missing", "")(o))

	// keys arrive lowercased from the HTTP API
	assert.True(t, UserMetaEq("Role", "admin")(o))
	assert.False(t, UserMetaEq("Role", "Admin")(o))
}

func TestHasTombstone(t *testing.T) {
	o := conflictedObject(t, newMockClient(t), newTestBucket(t), "a", "b")
	assert.False(t, HasTombstone()(o))
	o.siblings[0].deleted = true
	assert.True(t, HasTombstone()(o))
}

func TestCombinators(t *testing.T) {
	o := newTestObject(t, newMockClient(t), newTestBucket(t), WithKey("order:1"))
	addSibling(o, "x", time.Now())

	isOrder := KeyPrefix("order:")
	conflicted := SiblingsAtLeast(2)
	isUser := KeyPrefix("user:")

	assert.True(t, And(isOrder, conflicted)(o))
	assert.False(t, And(isOrder, isUser)(o))
	assert.False(t, And()(o), "empty And never matches")
	assert.False(t, And(isOrder, nil)(o))

	assert.True(t, Or(isUser, conflicted)(o))
	assert.False(t, Or(isUser)(o))
	assert.False(t, Or()(o))

	assert.True(t, Not(isUser)(o))
	assert.False(t, Not(isOrder)(o))
	assert.True(t, Not(nil)(o))

	assert.True(t, AlwaysMatch()(o))
}
