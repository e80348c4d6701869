package siblingkit

import "strings"

// Spec is a predicate used to match objects to rules. Combinators allow
// building complex match logic from small, testable pieces.
type Spec func(*Object) bool

// And returns a spec that requires every spec to match.
func And(specs ...Spec) Spec {
	return func(o *Object) bool {
		for _, s := range specs {
			if s == nil || !s(o) {
				return false
			}
		}
		return len(specs) > 0
	}
}

// Or returns a spec that requires at least one spec to match.
func Or(specs ...Spec) Spec {
	return func(o *Object) bool {
		for _, s := range specs {
			if s != nil && s(o) {
				return true
			}
		}
		return false
	}
}

// Not returns a spec that negates the provided spec.
func Not(a Spec) Spec { return func(o *Object) bool { return a == nil || !a(o) } }

// AlwaysMatch matches every object.
func AlwaysMatch() Spec { return func(*Object) bool { return true } }

// BucketIs matches objects in the named bucket.
func BucketIs(name string) Spec {
	return func(o *Object) bool { return o.bucket != nil && o.bucket.Name() == name }
}

// KeyPrefix matches objects whose key starts with prefix.
// Objects without a key never match.
func KeyPrefix(prefix string) Spec {
	return func(o *Object) bool {
		key, ok := o.Key()
		return ok && strings.HasPrefix(key, prefix)
	}
}

// ContentTypeIs matches when every sibling has content type ct.
func ContentTypeIs(ct string) Spec {
	return func(o *Object) bool {
		for _, c := range o.siblings {
			if c.contentType != ct {
				return false
			}
		}
		return len(o.siblings) > 0
	}
}

// SiblingsAtLeast matches objects holding n or more siblings.
func SiblingsAtLeast(n int) Spec {
	return func(o *Object) bool { return len(o.siblings) >= n }
}

// UserMetaEq matches when any sibling has user metadata key equal to value.
// Keys compare case-insensitively since the HTTP API lowercases them.
func UserMetaEq(key, value string) Spec {
	return func(o *Object) bool {
		for _, c := range o.siblings {
			for k, v := range c.userMeta {
				if v == value && strings.EqualFold(k, key) {
					return true
				}
			}
		}
		return false
	}
}

// HasTombstone matches when at least one sibling is a tombstone.
func HasTombstone() Spec {
	return func(o *Object) bool {
		for _, c := range o.siblings {
			if c.deleted {
				return true
			}
		}
		return false
	}
}
