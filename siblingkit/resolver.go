package siblingkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
)

// Resolver is the Strategy interface for sibling resolution. Given an object
// holding several siblings it returns an object whose siblings replace them,
// normally exactly one. It must be idempotent on a single-sibling object.
type Resolver interface {
	Resolve(ctx context.Context, o *Object) (*Object, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, o *Object) (*Object, error)

// Resolve calls f(ctx, o).
func (f ResolverFunc) Resolve(ctx context.Context, o *Object) (*Object, error) {
	return f(ctx, o)
}

// validateResolver rejects a non-nil Resolver that cannot be called: an
// interface holding a nil func, pointer, map, slice or channel. A nil
// interface means "unset" and is valid.
func validateResolver(r Resolver) error {
	if r == nil {
		return nil
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return fmt.Errorf("%w: %T is nil", kverrors.ErrInvalidResolver, r)
		}
	}
	return nil
}

// Rule binds a matcher Spec to a Resolver.
// Rules are evaluated in insertion order with first-match-wins semantics.
type Rule struct {
	Name     string
	Matcher  Spec
	Resolver Resolver
}

// Hooks provides optional callbacks for observability around resolution.
// All hooks are optional; nil functions are safe no-ops.
type Hooks struct {
	OnRuleMatched func(o *Object, rule Rule)
	OnResolved    func(o *Object, result *Object)
	OnFallback    func(o *Object)
	OnError       func(o *Object, err error)
}

// Validator can perform configuration validation at construction time.
// Return nil if configuration is valid; return error to prevent construction.
type Validator interface {
	Validate(rules []Rule, fallback Resolver) error
}

// dynamicOptions holds construction-time options.
type dynamicOptions struct {
	rules     []Rule
	fallback  Resolver
	logger    *logging.Logger
	hooks     Hooks
	validator Validator
}

// DynamicOption configures a DynamicResolver.
type DynamicOption interface{ apply(*dynamicOptions) }

type dynamicOptionFn func(*dynamicOptions)

func (f dynamicOptionFn) apply(o *dynamicOptions) { f(o) }

// WithFallback sets the resolver used when no rule matches.
func WithFallback(r Resolver) DynamicOption {
	return dynamicOptionFn(func(o *dynamicOptions) { o.fallback = r })
}

// WithRule appends a rule with a custom matcher and resolver in insertion order.
func WithRule(name string, matcher Spec, resolver Resolver) DynamicOption {
	return dynamicOptionFn(func(o *dynamicOptions) {
		o.rules = append(o.rules, Rule{Name: name, Matcher: matcher, Resolver: resolver})
	})
}

// WithKeyPrefixRule is a convenience helper for matching by key prefix.
func WithKeyPrefixRule(name, prefix string, resolver Resolver) DynamicOption {
	return WithRule(name, KeyPrefix(prefix), resolver)
}

// WithResolverLogger attaches a logger that records rule dispatch at debug level.
func WithResolverLogger(l *logging.Logger) DynamicOption {
	return dynamicOptionFn(func(o *dynamicOptions) { o.logger = l })
}

// WithHooks sets optional observability hooks. Zero-value safe.
func WithHooks(h Hooks) DynamicOption {
	return dynamicOptionFn(func(o *dynamicOptions) { o.hooks = h })
}

// WithValidator sets an optional validator for construction-time checks.
func WithValidator(v Validator) DynamicOption {
	return dynamicOptionFn(func(o *dynamicOptions) { o.validator = v })
}

// DynamicResolver dispatches objects to resolvers based on an ordered rule set.
// If no rule matches, it uses the fallback resolver. If no fallback is configured,
// Resolve returns an error.
type DynamicResolver struct {
	rules    []Rule
	fallback Resolver
	logger   *logging.Logger
	hooks    Hooks
}

var _ Resolver = (*DynamicResolver)(nil)

// errNoRuleMatched is returned when no rule matches and there is no fallback.
var errNoRuleMatched = errors.New("no rule matched and no fallback configured")

// NewDynamicResolver constructs a DynamicResolver with validation.
// Invariants:
// - At least one rule OR a non-nil fallback must be provided
// - No rule may have a nil matcher or an uncallable resolver
// - If provided, Validator must approve the configuration
func NewDynamicResolver(opts ...DynamicOption) (*DynamicResolver, error) {
	cfg := &dynamicOptions{}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	if len(cfg.rules) == 0 && cfg.fallback == nil {
		return nil, errors.New("dynamic resolver requires at least one rule or a non-nil fallback")
	}
	if err := validateResolver(cfg.fallback); err != nil {
		return nil, kverrors.NewInvalidResolverError(kverrors.OpConfig, "resolver").WithMetadata("rule", "fallback")
	}
	for i, r := range cfg.rules {
		if r.Matcher == nil {
			return nil, fmt.Errorf("rule %q has nil matcher at index %d", r.Name, i)
		}
		if r.Resolver == nil || validateResolver(r.Resolver) != nil {
			return nil, kverrors.NewInvalidResolverError(kverrors.OpConfig, "resolver").WithMetadata("rule", r.Name)
		}
	}
	if cfg.validator != nil {
		if err := cfg.validator.Validate(cfg.rules, cfg.fallback); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &DynamicResolver{
		rules:    append([]Rule(nil), cfg.rules...),
		fallback: cfg.fallback,
		logger:   logger,
		hooks:    cfg.hooks,
	}, nil
}

// Rules returns a copy of the configured rules.
func (d *DynamicResolver) Rules() []Rule {
	return append([]Rule(nil), d.rules...)
}

// Resolve implements the Resolver interface using first-match-wins
// over the ordered rules, else delegates to fallback.
func (d *DynamicResolver) Resolve(ctx context.Context, o *Object) (*Object, error) {
	for _, r := range d.rules {
		if r.Matcher(o) {
			d.logger.DebugContext(ctx, "resolver rule matched",
				slog.String("rule", r.Name),
				slog.Int("siblings", o.SiblingCount()),
			)
			if d.hooks.OnRuleMatched != nil {
				d.hooks.OnRuleMatched(o, r)
			}
			return d.run(ctx, o, r.Resolver)
		}
	}
	if d.fallback == nil {
		if d.hooks.OnError != nil {
			d.hooks.OnError(o, errNoRuleMatched)
		}
		return nil, errNoRuleMatched
	}
	if d.hooks.OnFallback != nil {
		d.hooks.OnFallback(o)
	}
	return d.run(ctx, o, d.fallback)
}

func (d *DynamicResolver) run(ctx context.Context, o *Object, r Resolver) (*Object, error) {
	res, err := r.Resolve(ctx, o)
	if err != nil {
		if d.hooks.OnError != nil {
			d.hooks.OnError(o, err)
		}
		return nil, err
	}
	if d.hooks.OnResolved != nil {
		d.hooks.OnResolved(o, res)
	}
	return res, nil
}
