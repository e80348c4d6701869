package siblingkit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
)

// BucketConfig is the file form of a set of bucket definitions.
//
//	buckets:
//	  - name: carts
//	    resolver: last_write_wins
//	    auto_resolve: true
//	    rules:
//	      - name: tombstones-first
//	        key_prefix: "cart:"
//	        min_siblings: 2
//	        resolver: drop_tombstones
type BucketConfig struct {
	Buckets []BucketDefinition `json:"buckets" yaml:"buckets"`
}

// BucketDefinition describes one bucket.
type BucketDefinition struct {
	Name        string           `json:"name" yaml:"name"`
	Type        string           `json:"type,omitempty" yaml:"type,omitempty"`
	Resolver    string           `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	AutoResolve bool             `json:"auto_resolve,omitempty" yaml:"auto_resolve,omitempty"`
	ContentType string           `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Rules       []RuleDefinition `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// RuleDefinition routes matching objects to a named resolver. Every condition
// that is set must hold for the rule to match; a rule without conditions
// matches everything.
type RuleDefinition struct {
	Name        string            `json:"name" yaml:"name"`
	KeyPrefix   string            `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	ContentType string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	MinSiblings int               `json:"min_siblings,omitempty" yaml:"min_siblings,omitempty"`
	UserMeta    map[string]string `json:"user_meta,omitempty" yaml:"user_meta,omitempty"`
	Tombstones  bool              `json:"tombstones,omitempty" yaml:"tombstones,omitempty"`
	Resolver    string            `json:"resolver" yaml:"resolver"`
}

// ParseBucketConfig parses YAML (or JSON) bucket definitions and validates them.
func ParseBucketConfig(data []byte) (*BucketConfig, error) {
	var cfg BucketConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, kverrors.NewValidationError(kverrors.OpConfig, fmt.Errorf("failed to parse bucket config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBucketConfig reads and parses a bucket definition file.
func LoadBucketConfig(path string) (*BucketConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kverrors.NewWithComponent(kverrors.OpConfig, "config", fmt.Errorf("failed to read bucket config %s: %w", path, err))
	}
	return ParseBucketConfig(data)
}

// Validate checks names are present and unique and that every resolver name
// is registered.
func (c *BucketConfig) Validate() error {
	seen := make(map[string]bool)
	for _, b := range c.Buckets {
		if b.Name == "" {
			return configError(fmt.Errorf("bucket name is required"))
		}
		if seen[b.Name] {
			return configError(fmt.Errorf("duplicate bucket: %s", b.Name))
		}
		seen[b.Name] = true

		if b.Resolver != "" {
			if _, err := ResolverByName(b.Resolver); err != nil {
				return err
			}
		}
		if err := validateRules(b.Name, b.Rules); err != nil {
			return err
		}
	}
	return nil
}

func validateRules(bucket string, rules []RuleDefinition) error {
	names := make(map[string]bool)
	for _, r := range rules {
		if r.Name == "" {
			return configError(fmt.Errorf("rule name is required in bucket %s", bucket))
		}
		if names[r.Name] {
			return configError(fmt.Errorf("duplicate rule name: %s in bucket %s", r.Name, bucket))
		}
		names[r.Name] = true

		if r.Resolver == "" {
			return configError(fmt.Errorf("resolver is required for rule %s in bucket %s", r.Name, bucket))
		}
		if _, err := ResolverByName(r.Resolver); err != nil {
			return err
		}
	}
	return nil
}

// Build creates the configured buckets keyed by name. opts are applied to
// every bucket before the per-bucket settings.
func (c *BucketConfig) Build(opts ...BucketOption) (map[string]*Bucket, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	buckets := make(map[string]*Bucket, len(c.Buckets))
	for _, def := range c.Buckets {
		resolver, err := def.resolver()
		if err != nil {
			return nil, err
		}

		bucketOpts := append(append([]BucketOption(nil), opts...),
			WithBucketType(def.Type),
			WithDefaultResolver(resolver),
			WithAutoResolve(def.AutoResolve),
		)
		if def.ContentType != "" {
			bucketOpts = append(bucketOpts, WithDefaultContentType(def.ContentType))
		}

		b, err := NewBucket(def.Name, bucketOpts...)
		if err != nil {
			return nil, err
		}
		buckets[def.Name] = b
	}
	return buckets, nil
}

// resolver compiles the bucket's resolver and rules. Rules become a
// DynamicResolver falling back to the bucket resolver.
func (d BucketDefinition) resolver() (Resolver, error) {
	name := d.Resolver
	if name == "" {
		name = ResolverDefault
	}
	fallback, err := ResolverByName(name)
	if err != nil {
		return nil, err
	}
	if len(d.Rules) == 0 {
		return fallback, nil
	}

	opts := []DynamicOption{WithFallback(fallback)}
	for _, rd := range d.Rules {
		r, err := ResolverByName(rd.Resolver)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRule(rd.Name, rd.matcher(), r))
	}
	dyn, err := NewDynamicResolver(opts...)
	if err != nil {
		return nil, err
	}
	return dyn, nil
}

// matcher builds a Spec from the rule's conditions.
func (r RuleDefinition) matcher() Spec {
	var specs []Spec
	if r.KeyPrefix != "" {
		specs = append(specs, KeyPrefix(r.KeyPrefix))
	}
	if r.ContentType != "" {
		specs = append(specs, ContentTypeIs(r.ContentType))
	}
	if r.MinSiblings > 0 {
		specs = append(specs, SiblingsAtLeast(r.MinSiblings))
	}
	for k, v := range r.UserMeta {
		specs = append(specs, UserMetaEq(k, v))
	}
	if r.Tombstones {
		specs = append(specs, HasTombstone())
	}

	switch len(specs) {
	case 0:
		return AlwaysMatch()
	case 1:
		return specs[0]
	default:
		return And(specs...)
	}
}

func configError(err error) error {
	e := kverrors.NewValidationError(kverrors.OpConfig, err)
	e.Component = "config"
	return e
}
