package cache

import (
	"testing"

	"github.com/promptlabs/enchanter-gateway/internal/types"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestRequestFingerprint_Deterministic(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleSystem, Content: "be helpful"},
		{Role: types.RoleUser, Content: "explain raft"},
	}
	req := &types.CompletionRequest{Temperature: floatPtr(0.7), MaxTokens: intPtr(500)}

	a := RequestFingerprint("gpt-4o", msgs, req)
	b := RequestFingerprint("gpt-4o", msgs, req)
	if a != b {
		t.Errorf("identical inputs should produce identical fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestRequestFingerprint_ModelChangesKey(t *testing.T) {
	msgs := []types.Message{{Role: types.RoleUser, Content: "hi"}}
	req := &types.CompletionRequest{}

	if RequestFingerprint("gpt-4o", msgs, req) == RequestFingerprint("gpt-4o-mini", msgs, req) {
		t.Error("different models must not share a fingerprint")
	}
}

func TestRequestFingerprint_SamplingParamsChangeKey(t *testing.T) {
	msgs := []types.Message{{Role: types.RoleUser, Content: "hi"}}

	base := RequestFingerprint("m", msgs, &types.CompletionRequest{})
	withTemp := RequestFingerprint("m", msgs, &types.CompletionRequest{Temperature: floatPtr(0.2)})
	withTokens := RequestFingerprint("m", msgs, &types.CompletionRequest{MaxTokens: intPtr(100)})

	if base == withTemp {
		t.Error("temperature must be part of the fingerprint")
	}
	if base == withTokens {
		t.Error("max_tokens must be part of the fingerprint")
	}
	if withTemp == withTokens {
		t.Error("distinct sampling parameters must not collide")
	}
}

func TestRequestFingerprint_MessageBoundaries(t *testing.T) {
	// Field length prefixes keep "ab"+"c" distinct from "a"+"bc".
	req := &types.CompletionRequest{}
	a := RequestFingerprint("m", []types.Message{
		{Role: types.RoleUser, Content: "ab"},
		{Role: types.RoleUser, Content: "c"},
	}, req)
	b := RequestFingerprint("m", []types.Message{
		{Role: types.RoleUser, Content: "a"},
		{Role: types.RoleUser, Content: "bc"},
	}, req)
	if a == b {
		t.Error("message boundary shifts must change the fingerprint")
	}
}

func TestRequestFingerprint_SectionAlignment(t *testing.T) {
	// Extra messages must never line up with the sampling-parameter and stop
	// sections of a shorter request: the section counts keep the encodings
	// apart even when the raw field sequences would match.
	withExtraMessage := RequestFingerprint("m", []types.Message{
		{Role: types.RoleUser, Content: "x"},
		{Role: "0.7", Content: "-"},
	}, &types.CompletionRequest{})
	withSampling := RequestFingerprint("m", []types.Message{
		{Role: types.RoleUser, Content: "x"},
	}, &types.CompletionRequest{
		Temperature: floatPtr(0.7),
		Stop:        []string{"-", "-"},
	})
	if withExtraMessage == withSampling {
		t.Error("message fields must not alias into the sampling section")
	}
}

func TestRequestFingerprint_StopListBoundary(t *testing.T) {
	msgs := []types.Message{{Role: types.RoleUser, Content: "x"}}
	none := RequestFingerprint("m", msgs, &types.CompletionRequest{})
	one := RequestFingerprint("m", msgs, &types.CompletionRequest{Stop: []string{"END"}})
	two := RequestFingerprint("m", msgs, &types.CompletionRequest{Stop: []string{"END", "END"}})
	if none == one || one == two || none == two {
		t.Error("stop sequences of different lengths must not collide")
	}
}

func TestResearchFingerprint_NormalizesQuery(t *testing.T) {
	a := ResearchFingerprint("Quantum   Computing", types.DepthBasic)
	b := ResearchFingerprint("quantum computing", types.DepthBasic)
	if a != b {
		t.Error("case and whitespace variants should share a fingerprint")
	}
}

func TestResearchFingerprint_DepthChangesKey(t *testing.T) {
	a := ResearchFingerprint("quantum computing", types.DepthBasic)
	b := ResearchFingerprint("quantum computing", types.DepthHigh)
	if a == b {
		t.Error("different depths must not share a fingerprint")
	}
}

func TestFingerprint_ScopesDiffer(t *testing.T) {
	// A response fingerprint and a research fingerprint over similar text
	// must never collide; the version prefix separates the namespaces.
	msgs := []types.Message{{Role: types.RoleUser, Content: "quantum computing"}}
	a := RequestFingerprint("m", msgs, &types.CompletionRequest{})
	b := ResearchFingerprint("quantum computing", types.DepthBasic)
	if a == b {
		t.Error("response and research fingerprints must not collide")
	}
}
