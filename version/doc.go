// Package version provides the causal context token exchanged with the store.
//
// The store detects conflicting writes by comparing causal contexts (vector
// clocks). A client never inspects or computes them: it receives a VClock
// with every fetch and hands the same VClock back on the next write so the
// store can tell whether the write supersedes what was read.
//
// # Basic Usage
//
//	import "github.com/c0deZ3R0/go-sibling-kit/version"
//
//	// Restore a token received in an X-Riak-Vclock header
//	vc, err := version.ParseVClock(header)
//	if err != nil {
//		return err
//	}
//
//	// Send it back unchanged
//	req.Header.Set("X-Riak-Vclock", vc.String())
//
// # Serialization
//
// VClock implements encoding.TextMarshaler, so it serializes to its base64
// form inside JSON and YAML documents:
//
//	{"vclock":"a85hYGBgzGDKBVIcypz/fgaUHjmdwZTImMfKsP3pyRN8WQA="}
//
// The zero VClock means "no causal context": a write carrying it is treated
// by the store as a blind write.
package version
