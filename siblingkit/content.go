package siblingkit

import (
	"time"

	"github.com/c0deZ3R0/go-sibling-kit/codec"
)

// Index is a secondary index entry attached to a sibling.
type Index struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// Link points from a sibling to another stored object.
type Link struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Key    string `json:"key" yaml:"key"`
	Tag    string `json:"tag" yaml:"tag"`
}

// Content is one sibling: a replica's metadata plus its payload.
//
// The payload lives in two optional slots. The encoded slot holds wire bytes
// and the native slot holds the decoded value. Setting one slot clears the
// other; reading the empty side converts once through the codec registered
// for the content type and caches the result. Content is not safe for
// concurrent use.
type Content struct {
	owner *Object

	contentType     string
	charset         string
	contentEncoding string
	lastModified    time.Time
	etag            string
	userMeta        map[string]string
	indexes         []Index
	links           []Link
	deleted         bool

	encoded    []byte
	hasEncoded bool
	native     any
	hasNative  bool
}

// NewContent returns an empty sibling that is not yet attached to an object.
// Resolvers use it to build replacement siblings.
func NewContent(contentType string) *Content {
	return &Content{contentType: contentType}
}

func (c *Content) registry() *codec.Registry {
	if c.owner != nil && c.owner.bucket != nil {
		return c.owner.bucket.Codecs()
	}
	return codec.DefaultRegistry
}

// Object returns the object this sibling belongs to, or nil when detached.
func (c *Content) Object() *Object { return c.owner }

// Data returns the native value, decoding and caching the encoded bytes when
// only those are present. It returns nil when neither slot is set. Decoder
// errors are returned as-is.
func (c *Content) Data() (any, error) {
	if c.hasNative {
		return c.native, nil
	}
	if !c.hasEncoded {
		return nil, nil
	}
	v, err := c.registry().DecoderFor(c.contentType)(c.encoded)
	if err != nil {
		return nil, err
	}
	c.native, c.hasNative = v, true
	return v, nil
}

// SetData stores a native value and clears the encoded bytes.
func (c *Content) SetData(v any) {
	c.native, c.hasNative = v, true
	c.encoded, c.hasEncoded = nil, false
}

// EncodedData returns the wire bytes, encoding and caching the native value
// when only that is present. It returns nil when neither slot is set.
// Encoder errors are returned as-is.
func (c *Content) EncodedData() ([]byte, error) {
	if c.hasEncoded {
		return c.encoded, nil
	}
	if !c.hasNative {
		return nil, nil
	}
	b, err := c.registry().EncoderFor(c.contentType)(c.native)
	if err != nil {
		return nil, err
	}
	c.encoded, c.hasEncoded = b, true
	return b, nil
}

// SetEncodedData stores wire bytes and clears the native value.
func (c *Content) SetEncodedData(b []byte) {
	c.encoded, c.hasEncoded = b, true
	c.native, c.hasNative = nil, false
}

// HasData reports whether either payload slot is set.
func (c *Content) HasData() bool { return c.hasNative || c.hasEncoded }

// ContentType returns the MIME type used for codec lookup.
func (c *Content) ContentType() string { return c.contentType }

// SetContentType changes the content type. Cached payloads are not
// converted again.
func (c *Content) SetContentType(ct string) { c.contentType = ct }

// Charset returns the charset parameter of the content type.
func (c *Content) Charset() string { return c.charset }

// SetCharset sets the charset parameter.
func (c *Content) SetCharset(cs string) { c.charset = cs }

// ContentEncoding returns the stored Content-Encoding, for example "gzip".
// The payload is never decompressed.
func (c *Content) ContentEncoding() string { return c.contentEncoding }

// SetContentEncoding sets the Content-Encoding sent with the payload.
func (c *Content) SetContentEncoding(e string) { c.contentEncoding = e }

// LastModified returns the time the store last wrote this sibling.
func (c *Content) LastModified() time.Time { return c.lastModified }

// SetLastModified overrides the modification time. The store assigns its own
// on write; resolvers use this when building replacement siblings.
func (c *Content) SetLastModified(t time.Time) { c.lastModified = t }

// Etag returns the entity tag the store reported for this sibling.
func (c *Content) Etag() string { return c.etag }

// Deleted reports whether this sibling is a tombstone.
func (c *Content) Deleted() bool { return c.deleted }

// UserMeta returns a copy of the user metadata.
func (c *Content) UserMeta() map[string]string {
	return copyMeta(c.userMeta)
}

// SetUserMeta replaces the user metadata with a copy of m.
func (c *Content) SetUserMeta(m map[string]string) {
	c.userMeta = copyMeta(m)
}

// Indexes returns a copy of the secondary indexes.
func (c *Content) Indexes() []Index {
	return append([]Index(nil), c.indexes...)
}

// AddIndex adds a secondary index entry. Duplicates are ignored.
func (c *Content) AddIndex(field, value string) {
	idx := Index{Field: field, Value: value}
	for _, existing := range c.indexes {
		if existing == idx {
			return
		}
	}
	c.indexes = append(c.indexes, idx)
}

// RemoveIndex removes entries for field. An empty value removes every entry
// for that field.
func (c *Content) RemoveIndex(field, value string) {
	kept := c.indexes[:0]
	for _, idx := range c.indexes {
		if idx.Field == field && (value == "" || idx.Value == value) {
			continue
		}
		kept = append(kept, idx)
	}
	c.indexes = kept
}

// SetIndexes replaces all secondary indexes.
func (c *Content) SetIndexes(indexes []Index) {
	c.indexes = append([]Index(nil), indexes...)
}

// Links returns a copy of the links.
func (c *Content) Links() []Link {
	return append([]Link(nil), c.links...)
}

// AddLink adds a link. Duplicates are ignored.
func (c *Content) AddLink(l Link) {
	for _, existing := range c.links {
		if existing == l {
			return
		}
	}
	c.links = append(c.links, l)
}

// Clone returns a detached copy of the sibling. Metadata and encoded bytes
// are copied; a native value is shared as is.
func (c *Content) Clone() *Content {
	out := *c
	out.owner = nil
	out.userMeta = copyMeta(c.userMeta)
	out.indexes = c.Indexes()
	out.links = c.Links()
	if c.encoded != nil {
		out.encoded = append([]byte(nil), c.encoded...)
	}
	return &out
}

// RemoveLink removes a link if present.
func (c *Content) RemoveLink(l Link) {
	kept := c.links[:0]
	for _, existing := range c.links {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	c.links = kept
}

// raw converts the sibling to its wire-neutral form, encoding the native
// value if needed.
func (c *Content) raw() (RawContent, error) {
	value, err := c.EncodedData()
	if err != nil {
		return RawContent{}, err
	}
	return RawContent{
		ContentType:     c.contentType,
		Charset:         c.charset,
		ContentEncoding: c.contentEncoding,
		LastModified:    c.lastModified,
		Etag:            c.etag,
		UserMeta:        copyMeta(c.userMeta),
		Indexes:         c.Indexes(),
		Links:           c.Links(),
		Deleted:         c.deleted,
		Value:           value,
	}.Clone(), nil
}

// contentFromRaw builds a sibling owned by o from its wire-neutral form.
func contentFromRaw(o *Object, r RawContent) *Content {
	r = r.Clone()
	c := &Content{
		owner:           o,
		contentType:     r.ContentType,
		charset:         r.Charset,
		contentEncoding: r.ContentEncoding,
		lastModified:    r.LastModified,
		etag:            r.Etag,
		userMeta:        r.UserMeta,
		indexes:         r.Indexes,
		links:           r.Links,
		deleted:         r.Deleted,
	}
	if r.Value != nil {
		c.SetEncodedData(r.Value)
	}
	return c
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
