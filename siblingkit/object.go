// Package siblingkit is the client-side object model for an eventually
// consistent key-value store. An Object holds every sibling the store
// returned for a key, exposes single-value access only while exactly one
// sibling remains, and collapses conflicts through pluggable Resolvers.
package siblingkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/version"
)

// ErrAutoResolve marks a Reload or Store whose round trip succeeded but whose
// automatic resolution failed. The resolver's error is wrapped alongside it.
var ErrAutoResolve = errors.New("auto-resolve failed")

// State tells whether an object can be used through its single-value
// accessors.
type State int

const (
	// StateResolved means the object holds exactly one sibling.
	StateResolved State = iota
	// StateConflicted means the object holds several siblings.
	StateConflicted
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

// Object is a stored entity identified by bucket and key together with its
// siblings. An Object is owned by one goroutine at a time; it does no
// internal locking.
type Object struct {
	client   StoreClient
	bucket   *Bucket
	key      string
	hasKey   bool
	siblings []*Content
	resolver Resolver
	vclock   version.VClock
	exists   bool

	// origin is the object a view was taken from; nil for the object itself.
	origin *Object
}

type objectConfig struct {
	key         *string
	resolver    Resolver
	contentType *string
}

// ObjectOption is a functional option for configuring an Object via NewObject.
type ObjectOption func(*objectConfig) error

// WithKey sets the object key. The empty string is rejected by NewObject;
// omit the option to let the store assign a key.
func WithKey(key string) ObjectOption {
	return func(c *objectConfig) error {
		c.key = &key
		return nil
	}
}

// WithResolver sets a per-object resolver overriding the bucket default.
func WithResolver(r Resolver) ObjectOption {
	return func(c *objectConfig) error {
		c.resolver = r
		return nil
	}
}

// WithContentType sets the content type of the initial sibling.
func WithContentType(ct string) ObjectOption {
	return func(c *objectConfig) error {
		c.contentType = &ct
		return nil
	}
}

// StoreOption configures a single Store call.
type StoreOption func(*StoreRequest)

// WithReturnBody asks the store to send back the siblings after the write.
func WithReturnBody() StoreOption {
	return func(r *StoreRequest) { r.ReturnBody = true }
}

// NewObject creates an object holding one empty sibling. The client and
// bucket are required; the key is optional.
func NewObject(client StoreClient, bucket *Bucket, opts ...ObjectOption) (*Object, error) {
	if client == nil || bucket == nil {
		err := kverrors.NewValidationError(kverrors.OpNew, kverrors.ErrInvalidObject)
		err.Component = "object"
		return nil, err
	}

	cfg := &objectConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, kverrors.NewWithComponent(kverrors.OpNew, "object", err)
		}
	}

	o := &Object{client: client, bucket: bucket}
	if cfg.key != nil {
		if *cfg.key == "" {
			return nil, kverrors.NewInvalidKeyError()
		}
		o.key, o.hasKey = *cfg.key, true
	}
	if err := validateResolver(cfg.resolver); err != nil {
		return nil, kverrors.NewInvalidResolverError(kverrors.OpNew, "object")
	}
	o.resolver = cfg.resolver

	ct := bucket.DefaultContentType()
	if cfg.contentType != nil {
		ct = *cfg.contentType
	}
	o.siblings = []*Content{{owner: o, contentType: ct}}
	return o, nil
}

// Bucket returns the bucket the object belongs to.
func (o *Object) Bucket() *Bucket { return o.bucket }

// Key returns the key and whether one has been assigned.
func (o *Object) Key() (string, bool) { return o.key, o.hasKey }

// VClock returns the causal context from the last round trip.
func (o *Object) VClock() version.VClock { return o.vclock }

// Exists reports whether the last round trip found the key in the store.
func (o *Object) Exists() bool { return o.exists }

// State returns StateResolved when the object holds exactly one sibling.
func (o *Object) State() State {
	if len(o.siblings) == 1 {
		return StateResolved
	}
	return StateConflicted
}

// SiblingCount returns the number of siblings.
func (o *Object) SiblingCount() int { return len(o.siblings) }

// Siblings returns a copy of the sibling list. The Content values are live.
func (o *Object) Siblings() []*Content {
	return append([]*Content(nil), o.siblings...)
}

// SetSiblings replaces the siblings. At least one is required. Each entry
// must be detached (see NewContent) or already belong to o; use Clone to
// copy a sibling from another object.
func (o *Object) SetSiblings(siblings []*Content) error {
	if len(siblings) == 0 {
		err := kverrors.NewValidationError(kverrors.OpAccess, errors.New("at least one sibling is required"))
		err.Component = "object"
		return err
	}
	if err := o.checkSiblings(kverrors.OpAccess, siblings); err != nil {
		return err
	}
	o.adopt(siblings)
	return nil
}

// WithSiblings returns a view of the object holding only the given siblings.
// It shares bucket, key and causal context with o and leaves o unchanged.
// Resolvers return such views; Resolve copies the siblings back into the
// original object.
func (o *Object) WithSiblings(siblings ...*Content) *Object {
	view := *o
	view.origin = o.root()
	view.siblings = append([]*Content(nil), siblings...)
	return &view
}

func (o *Object) root() *Object {
	if o.origin != nil {
		return o.origin
	}
	return o
}

// checkSiblings rejects nil entries and siblings owned by a different object.
// Views share their origin's siblings and are treated as the same object.
func (o *Object) checkSiblings(op kverrors.Operation, siblings []*Content) error {
	root := o.root()
	for i, c := range siblings {
		if c == nil || (c.owner != nil && c.owner.root() != root) {
			err := kverrors.NewValidationError(op, fmt.Errorf("sibling %d: %w", i, kverrors.ErrInvalidSibling))
			err.Component = "object"
			return err
		}
	}
	return nil
}

func (o *Object) adopt(siblings []*Content) {
	root := o.root()
	out := make([]*Content, len(siblings))
	for i, c := range siblings {
		c.owner = root
		out[i] = c
	}
	o.siblings = out
}

func (o *Object) resetSiblings() {
	o.siblings = []*Content{{owner: o, contentType: o.bucket.DefaultContentType()}}
}

// Content returns the sole sibling, or a conflict error when the object holds
// more than one.
func (o *Object) Content() (*Content, error) {
	if len(o.siblings) != 1 {
		return nil, kverrors.NewConflictError(kverrors.OpAccess, len(o.siblings))
	}
	return o.siblings[0], nil
}

// Data returns the native value of the sole sibling.
func (o *Object) Data() (any, error) {
	c, err := o.Content()
	if err != nil {
		return nil, err
	}
	return c.Data()
}

// SetData sets the native value of the sole sibling.
func (o *Object) SetData(v any) error {
	c, err := o.Content()
	if err != nil {
		return err
	}
	c.SetData(v)
	return nil
}

// EncodedData returns the wire bytes of the sole sibling.
func (o *Object) EncodedData() ([]byte, error) {
	c, err := o.Content()
	if err != nil {
		return nil, err
	}
	return c.EncodedData()
}

// SetEncodedData sets the wire bytes of the sole sibling.
func (o *Object) SetEncodedData(b []byte) error {
	c, err := o.Content()
	if err != nil {
		return err
	}
	c.SetEncodedData(b)
	return nil
}

// ContentType returns the content type of the sole sibling.
func (o *Object) ContentType() (string, error) {
	c, err := o.Content()
	if err != nil {
		return "", err
	}
	return c.ContentType(), nil
}

// SetContentType sets the content type of the sole sibling.
func (o *Object) SetContentType(ct string) error {
	c, err := o.Content()
	if err != nil {
		return err
	}
	c.SetContentType(ct)
	return nil
}

// Charset returns the charset of the sole sibling.
func (o *Object) Charset() (string, error) {
	c, err := o.Content()
	if err != nil {
		return "", err
	}
	return c.Charset(), nil
}

// ContentEncoding returns the content encoding of the sole sibling.
func (o *Object) ContentEncoding() (string, error) {
	c, err := o.Content()
	if err != nil {
		return "", err
	}
	return c.ContentEncoding(), nil
}

// UserMeta returns a copy of the user metadata of the sole sibling.
func (o *Object) UserMeta() (map[string]string, error) {
	c, err := o.Content()
	if err != nil {
		return nil, err
	}
	return c.UserMeta(), nil
}

// SetUserMeta replaces the user metadata of the sole sibling.
func (o *Object) SetUserMeta(m map[string]string) error {
	c, err := o.Content()
	if err != nil {
		return err
	}
	c.SetUserMeta(m)
	return nil
}

// LastModified returns the modification time of the sole sibling.
func (o *Object) LastModified() (time.Time, error) {
	c, err := o.Content()
	if err != nil {
		return time.Time{}, err
	}
	return c.LastModified(), nil
}

// AddIndex adds a secondary index entry to the sole sibling.
func (o *Object) AddIndex(field, value string) error {
	c, err := o.Content()
	if err != nil {
		return err
	}
	c.AddIndex(field, value)
	return nil
}

// AddLink adds a link to the sole sibling.
func (o *Object) AddLink(l Link) error {
	c, err := o.Content()
	if err != nil {
		return err
	}
	c.AddLink(l)
	return nil
}

// Resolver returns the object override, else the bucket default, else
// DefaultResolver.
func (o *Object) Resolver() Resolver {
	if o.resolver != nil {
		return o.resolver
	}
	return o.bucket.Resolver()
}

// SetResolver sets the per-object override. A nil Resolver clears it; a
// non-nil value that cannot be called is rejected and the previous resolver
// stays in place.
func (o *Object) SetResolver(r Resolver) error {
	if err := validateResolver(r); err != nil {
		return kverrors.NewInvalidResolverError(kverrors.OpSetResolver, "object")
	}
	o.resolver = r
	return nil
}

// Resolve collapses the siblings with the effective resolver. It is a no-op
// on a resolved object. The siblings are replaced with the resolver's result,
// which may still hold several. A resolver error, a nil result or a result
// without siblings leaves the object untouched.
func (o *Object) Resolve(ctx context.Context) error {
	if len(o.siblings) == 1 {
		return nil
	}

	before := len(o.siblings)
	log := o.logger()
	log.DebugContext(ctx, "resolving siblings", slog.Int("siblings", before))

	out, err := o.Resolver().Resolve(ctx, o)
	if err != nil {
		o.bucket.metrics.RecordOperationError(string(kverrors.OpResolve), errorType(err))
		log.LogError(ctx, err, "resolver failed", slog.Int("siblings", before))
		return err
	}
	if out == nil || len(out.siblings) == 0 {
		verr := kverrors.NewValidationError(kverrors.OpResolve, errors.New("resolver returned no siblings"))
		verr.Component = "resolver"
		o.bucket.metrics.RecordOperationError(string(kverrors.OpResolve), errorType(verr))
		log.LogError(ctx, verr, "resolver returned no siblings")
		return verr
	}
	if err := o.checkSiblings(kverrors.OpResolve, out.siblings); err != nil {
		o.bucket.metrics.RecordOperationError(string(kverrors.OpResolve), errorType(err))
		log.LogError(ctx, err, "resolver returned invalid siblings")
		return err
	}

	o.adopt(out.siblings)
	o.bucket.metrics.RecordResolution(o.bucket.name, before, len(o.siblings))
	log.DebugContext(ctx, "siblings resolved",
		slog.Int("before", before),
		slog.Int("after", len(o.siblings)),
	)
	return nil
}

// Reload fetches the object from the store and replaces its siblings. A
// missing key is not an error: Exists reports false and the object holds one
// empty sibling. When the fetch fails the object is left untouched and nil is
// returned. When the bucket auto-resolves and the resolver fails, the fetched
// siblings are kept, the object is returned with the error, and the error
// matches ErrAutoResolve.
func (o *Object) Reload(ctx context.Context) (*Object, error) {
	const op = kverrors.OpReload
	if !o.hasKey {
		return nil, o.keyRequired(op)
	}

	start := time.Now()
	resp, err := o.client.Fetch(ctx, FetchRequest{
		BucketType: o.bucket.bucketType,
		Bucket:     o.bucket.name,
		Key:        o.key,
	})
	o.bucket.metrics.RecordOperationDuration(string(op), time.Since(start))
	if err == nil && resp == nil {
		err = kverrors.NewWithComponent(op, "object", errors.New("store client returned no response"))
	}
	if err != nil {
		o.fail(ctx, op, err)
		return nil, err
	}

	siblings := make([]*Content, 0, len(resp.Siblings))
	for _, raw := range resp.Siblings {
		siblings = append(siblings, contentFromRaw(o, raw))
	}

	o.vclock = resp.VClock
	o.exists = resp.Exists && len(siblings) > 0
	if o.exists {
		o.siblings = siblings
	} else {
		o.resetSiblings()
	}
	o.bucket.metrics.RecordSiblings(o.bucket.name, len(siblings))
	o.logger().DebugContext(ctx, "object reloaded",
		slog.Bool("exists", o.exists),
		slog.Int("siblings", len(o.siblings)),
	)

	if o.bucket.autoResolve && len(o.siblings) > 1 {
		if err := o.Resolve(ctx); err != nil {
			return o, fmt.Errorf("%w: %w", ErrAutoResolve, err)
		}
	}
	return o, nil
}

// Store writes the sole sibling. The object must be resolved. On success the
// key (when the store assigned one), causal context and exists flag are
// updated; when the response carries siblings they replace the current ones.
// A failed auto-resolve of those siblings returns the object with an error
// matching ErrAutoResolve.
func (o *Object) Store(ctx context.Context, opts ...StoreOption) (*Object, error) {
	const op = kverrors.OpStore
	c, err := o.Content()
	if err != nil {
		return nil, err
	}
	raw, err := c.raw()
	if err != nil {
		return nil, err
	}

	req := StoreRequest{
		BucketType: o.bucket.bucketType,
		Bucket:     o.bucket.name,
		Key:        o.key,
		VClock:     o.vclock,
		Content:    raw,
	}
	for _, opt := range opts {
		opt(&req)
	}

	start := time.Now()
	resp, err := o.client.Store(ctx, req)
	o.bucket.metrics.RecordOperationDuration(string(op), time.Since(start))
	if err == nil && resp == nil {
		err = kverrors.NewWithComponent(op, "object", errors.New("store client returned no response"))
	}
	if err != nil {
		o.fail(ctx, op, err)
		return nil, err
	}

	if resp.Key != "" {
		o.key, o.hasKey = resp.Key, true
	}
	o.vclock = resp.VClock
	o.exists = true
	if len(resp.Siblings) > 0 {
		siblings := make([]*Content, 0, len(resp.Siblings))
		for _, raw := range resp.Siblings {
			siblings = append(siblings, contentFromRaw(o, raw))
		}
		o.siblings = siblings
		o.bucket.metrics.RecordSiblings(o.bucket.name, len(siblings))
	}
	o.logger().DebugContext(ctx, "object stored", slog.Int("siblings", len(o.siblings)))

	if o.bucket.autoResolve && len(o.siblings) > 1 {
		if err := o.Resolve(ctx); err != nil {
			return o, fmt.Errorf("%w: %w", ErrAutoResolve, err)
		}
	}
	return o, nil
}

// Delete removes the key from the store. On success the object holds one
// empty sibling, Exists reports false and the causal context is cleared.
func (o *Object) Delete(ctx context.Context) error {
	const op = kverrors.OpDelete
	if !o.hasKey {
		return o.keyRequired(op)
	}

	start := time.Now()
	err := o.client.Remove(ctx, RemoveRequest{
		BucketType: o.bucket.bucketType,
		Bucket:     o.bucket.name,
		Key:        o.key,
		VClock:     o.vclock,
	})
	o.bucket.metrics.RecordOperationDuration(string(op), time.Since(start))
	if err != nil {
		o.fail(ctx, op, err)
		return err
	}

	o.resetSiblings()
	o.exists = false
	o.vclock = version.VClock{}
	o.logger().DebugContext(ctx, "object deleted")
	return nil
}

func (o *Object) keyRequired(op kverrors.Operation) error {
	err := kverrors.NewValidationError(op, kverrors.ErrKeyRequired)
	err.Component = "object"
	return err
}

func (o *Object) fail(ctx context.Context, op kverrors.Operation, err error) {
	o.bucket.metrics.RecordOperationError(string(op), errorType(err))
	o.logger().LogError(ctx, err, "object operation failed", slog.String("op", string(op)))
}

func (o *Object) logger() *logging.Logger {
	return o.bucket.logger.WithObject(o.bucket.name, o.key)
}

// errorType classifies err for metrics labels.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}
	if code := kverrors.CodeOf(err); code != "" {
		return string(code)
	}
	return "unknown"
}
