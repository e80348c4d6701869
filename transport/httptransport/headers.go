package httptransport

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/version"
)

// Riak HTTP API header names.
const (
	HeaderVClock   = "X-Riak-Vclock"
	HeaderClientID = "X-Riak-ClientId"
	HeaderDeleted  = "X-Riak-Deleted"
	HeaderLink     = "Link"

	// MetaPrefix and IndexPrefix are followed by the user metadata key or
	// the secondary index field name.
	MetaPrefix  = "X-Riak-Meta-"
	IndexPrefix = "X-Riak-Index-"

	// ContentTypeMultipart is the media type of a sibling list.
	ContentTypeMultipart = "multipart/mixed"
)

var linkPattern = regexp.MustCompile(`</(?:types/[^/>]+/)?buckets/([^/>]+)/keys/([^/>]+)>;\s*riaktag="([^"]*)"`)

// EncodeContentHeaders writes the per-sibling metadata of rc into h.
// Fields that are unset in rc are left out.
func EncodeContentHeaders(h http.Header, rc siblingkit.RawContent) {
	if rc.ContentType != "" {
		ct := rc.ContentType
		if rc.Charset != "" {
			ct = mime.FormatMediaType(rc.ContentType, map[string]string{"charset": rc.Charset})
			if ct == "" {
				ct = rc.ContentType + "; charset=" + rc.Charset
			}
		}
		h.Set("Content-Type", ct)
	}
	if rc.ContentEncoding != "" {
		h.Set("Content-Encoding", rc.ContentEncoding)
	}
	if !rc.LastModified.IsZero() {
		h.Set("Last-Modified", rc.LastModified.UTC().Format(http.TimeFormat))
	}
	if rc.Etag != "" {
		h.Set("ETag", `"`+strings.Trim(rc.Etag, `"`)+`"`)
	}
	if rc.Deleted {
		h.Set(HeaderDeleted, "true")
	}

	for k, v := range rc.UserMeta {
		h.Set(MetaPrefix+k, v)
	}

	fields := make(map[string][]string)
	for _, idx := range rc.Indexes {
		fields[idx.Field] = append(fields[idx.Field], idx.Value)
	}
	for field, values := range fields {
		h.Set(IndexPrefix+field, strings.Join(values, ", "))
	}

	if len(rc.Links) > 0 {
		links := make([]string, 0, len(rc.Links))
		for _, l := range rc.Links {
			links = append(links, fmt.Sprintf(`</buckets/%s/keys/%s>; riaktag="%s"`,
				url.PathEscape(l.Bucket), url.PathEscape(l.Key), l.Tag))
		}
		h.Set(HeaderLink, strings.Join(links, ", "))
	}
}

// DecodeContentHeaders builds a sibling from its metadata headers and value.
// User metadata keys and index field names are lower-cased, as the store
// treats them case-insensitively. Indexes are sorted by field then value.
func DecodeContentHeaders(h http.Header, value []byte) (siblingkit.RawContent, error) {
	rc := siblingkit.RawContent{
		ContentEncoding: h.Get("Content-Encoding"),
		Etag:            strings.Trim(h.Get("ETag"), `"`),
		Deleted:         strings.EqualFold(h.Get(HeaderDeleted), "true"),
		Value:           value,
	}

	if ct := h.Get("Content-Type"); ct != "" {
		mediaType, params, err := mime.ParseMediaType(ct)
		if err != nil {
			rc.ContentType = ct
		} else {
			rc.ContentType = mediaType
			rc.Charset = params["charset"]
		}
	}

	if lm := h.Get("Last-Modified"); lm != "" {
		t, err := http.ParseTime(lm)
		if err != nil {
			return siblingkit.RawContent{}, fmt.Errorf("invalid Last-Modified %q: %w", lm, err)
		}
		rc.LastModified = t.UTC()
	}

	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		switch {
		case strings.HasPrefix(canonical, MetaPrefix):
			if rc.UserMeta == nil {
				rc.UserMeta = make(map[string]string)
			}
			key := strings.ToLower(strings.TrimPrefix(canonical, MetaPrefix))
			rc.UserMeta[key] = strings.Join(values, ", ")
		case strings.HasPrefix(canonical, IndexPrefix):
			field := strings.ToLower(strings.TrimPrefix(canonical, IndexPrefix))
			for _, v := range values {
				for _, part := range strings.Split(v, ",") {
					if part = strings.TrimSpace(part); part != "" {
						rc.Indexes = append(rc.Indexes, siblingkit.Index{Field: field, Value: part})
					}
				}
			}
		}
	}
	sort.Slice(rc.Indexes, func(i, j int) bool {
		if rc.Indexes[i].Field != rc.Indexes[j].Field {
			return rc.Indexes[i].Field < rc.Indexes[j].Field
		}
		return rc.Indexes[i].Value < rc.Indexes[j].Value
	})

	for _, v := range h.Values(HeaderLink) {
		for _, m := range linkPattern.FindAllStringSubmatch(v, -1) {
			bucket, err := url.PathUnescape(m[1])
			if err != nil {
				return siblingkit.RawContent{}, fmt.Errorf("invalid link bucket %q: %w", m[1], err)
			}
			key, err := url.PathUnescape(m[2])
			if err != nil {
				return siblingkit.RawContent{}, fmt.Errorf("invalid link key %q: %w", m[2], err)
			}
			rc.Links = append(rc.Links, siblingkit.Link{Bucket: bucket, Key: key, Tag: m[3]})
		}
	}

	return rc, nil
}

// VClockFromHeader parses the causal context of a response.
func VClockFromHeader(h http.Header) (version.VClock, error) {
	return version.ParseVClock(h.Get(HeaderVClock))
}

// SetVClockHeader writes vc into h unless it is the empty context.
func SetVClockHeader(h http.Header, vc version.VClock) {
	if !vc.IsZero() {
		h.Set(HeaderVClock, vc.String())
	}
}

// requestContent strips the fields the store assigns itself.
func requestContent(rc siblingkit.RawContent) siblingkit.RawContent {
	rc.LastModified = time.Time{}
	rc.Etag = ""
	rc.Deleted = false
	return rc
}
