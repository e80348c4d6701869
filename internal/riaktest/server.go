// Package riaktest runs an in-memory server speaking the subset of the Riak
// HTTP API the sibling kit uses. Writes without a matching causal context
// become siblings, like a bucket with allow_mult enabled.
package riaktest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/transport/httptransport"
	"github.com/c0deZ3R0/go-sibling-kit/version"
)

// Request is a request as the server received it.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

type entry struct {
	vclock   version.VClock
	siblings []siblingkit.RawContent
}

// Server is a fake Riak node. It is safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	objects  map[string]*entry
	counter  uint64
	faults   []int
	latency  time.Duration
	requests []Request
	srv      *httptest.Server
}

// New starts a server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{objects: make(map[string]*entry)}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/types/{type}/buckets/{bucket}/keys", func(r chi.Router) {
		r.Post("/", s.handleStore)
		r.Get("/{key}", s.handleFetch)
		r.Put("/{key}", s.handleStore)
		r.Delete("/{key}", s.handleDelete)
	})

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string { return s.srv.URL }

// Seed replaces whatever is stored under a key with siblings and returns the
// new causal context.
func (s *Server) Seed(bucketType, bucket, key string, siblings ...siblingkit.RawContent) version.VClock {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	stored := siblingkit.CloneRaw(siblings)
	for i := range stored {
		stamp(&stored[i], now)
	}
	e := &entry{vclock: s.nextVClock(), siblings: stored}
	s.objects[id(bucketType, bucket, key)] = e
	return e.vclock
}

// Get returns what is stored under a key.
func (s *Server) Get(bucketType, bucket, key string) ([]siblingkit.RawContent, version.VClock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[id(bucketType, bucket, key)]
	if !ok {
		return nil, version.VClock{}, false
	}
	return siblingkit.CloneRaw(e.siblings), e.vclock, true
}

// FailNext makes the next n requests answer with status and no body.
func (s *Server) FailNext(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.faults = append(s.faults, status)
	}
}

// SetLatency delays every response until d has passed or the request is
// canceled.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		latency := s.latency
		fault := 0
		if len(s.faults) > 0 {
			fault, s.faults = s.faults[0], s.faults[1:]
		}
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if fault != 0 {
			http.Error(w, http.StatusText(fault), fault)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	e, ok := s.objects[routeID(r)]
	var siblings []siblingkit.RawContent
	var vc version.VClock
	if ok {
		siblings = siblingkit.CloneRaw(e.siblings)
		vc = e.vclock
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeSiblings(w, vc, siblings, http.StatusOK)
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rc, err := httptransport.DecodeContentHeaders(r.Header, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vc, err := httptransport.VClockFromHeader(r.Header)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := param(r, "key")
	created := key == ""
	if created {
		key = uuid.NewString()
	}
	bucketType, bucket := param(r, "type"), param(r, "bucket")

	s.mu.Lock()
	stamp(&rc, time.Now().UTC().Truncate(time.Second))
	k := id(bucketType, bucket, key)
	e, ok := s.objects[k]
	switch {
	case !ok:
		e = &entry{siblings: []siblingkit.RawContent{rc}}
		s.objects[k] = e
	case !vc.IsZero() && vc.Equal(e.vclock):
		e.siblings = []siblingkit.RawContent{rc}
	default:
		e.siblings = append(e.siblings, rc)
	}
	e.vclock = s.nextVClock()
	siblings := siblingkit.CloneRaw(e.siblings)
	newVC := e.vclock
	s.mu.Unlock()

	status := http.StatusNoContent
	if created {
		w.Header().Set("Location", fmt.Sprintf("/types/%s/buckets/%s/keys/%s",
			url.PathEscape(bucketType), url.PathEscape(bucket), url.PathEscape(key)))
		status = http.StatusCreated
	}
	if r.URL.Query().Get("returnbody") == "true" {
		if status == http.StatusNoContent {
			status = http.StatusOK
		}
		writeSiblings(w, newVC, siblings, status)
		return
	}
	httptransport.SetVClockHeader(w.Header(), newVC)
	w.WriteHeader(status)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	k := routeID(r)
	_, ok := s.objects[k]
	delete(s.objects, k)
	s.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nextVClock must be called with mu held.
func (s *Server) nextVClock() version.VClock {
	s.counter++
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, s.counter)
	return version.NewVClock(raw)
}

// writeSiblings answers with a single body for one sibling and a 300
// multipart body for several.
func writeSiblings(w http.ResponseWriter, vc version.VClock, siblings []siblingkit.RawContent, status int) {
	httptransport.SetVClockHeader(w.Header(), vc)
	if len(siblings) == 1 {
		httptransport.EncodeContentHeaders(w.Header(), siblings[0])
		w.WriteHeader(status)
		_, _ = w.Write(siblings[0].Value)
		return
	}

	var buf bytes.Buffer
	ct, err := httptransport.WriteSiblings(&buf, siblings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusMultipleChoices)
	_, _ = w.Write(buf.Bytes())
}

func stamp(rc *siblingkit.RawContent, now time.Time) {
	if rc.LastModified.IsZero() {
		rc.LastModified = now
	}
	if rc.Etag == "" {
		rc.Etag = strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
	}
}

func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func routeID(r *http.Request) string {
	return id(param(r, "type"), param(r, "bucket"), param(r, "key"))
}

func id(bucketType, bucket, key string) string {
	return bucketType + "/" + bucket + "/" + key
}
