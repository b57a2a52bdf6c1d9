package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"github.com/promptlabs/enchanter-gateway/internal/types"
)

// Fingerprints are SHA-256 digests over canonicalized inputs. Every field is
// written length-prefixed, and every variable-length section is preceded by
// its element count, so no two distinct inputs can produce the same field
// sequence. Sampling parameters are part of the final-answer fingerprint:
// two requests differing only in temperature legitimately produce different
// completions, and a shared entry would serve the wrong one.

type canonicalHash struct {
	h hash.Hash
}

func newCanonicalHash() *canonicalHash {
	return &canonicalHash{h: sha256.New()}
}

func (c *canonicalHash) field(s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	c.h.Write(lenBuf[:])
	c.h.Write([]byte(s))
}

func (c *canonicalHash) sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}

func floatField(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func intField(i *int) string {
	if i == nil {
		return "-"
	}
	return strconv.Itoa(*i)
}

// RequestFingerprint keys the final-answer cache. It covers the fully
// assembled message sequence (after template and research splicing), the
// resolved upstream model name, and all sampling parameters.
func RequestFingerprint(model string, messages []types.Message, req *types.CompletionRequest) string {
	c := newCanonicalHash()
	c.field("v1:response")
	c.field(model)
	c.field(strconv.Itoa(len(messages)))
	for _, m := range messages {
		c.field(m.Role)
		c.field(m.Content)
	}
	c.field(floatField(req.Temperature))
	c.field(floatField(req.TopP))
	c.field(intField(req.MaxTokens))
	c.field(floatField(req.FrequencyPenalty))
	c.field(floatField(req.PresencePenalty))
	c.field(strconv.Itoa(len(req.Stop)))
	for _, s := range req.Stop {
		c.field(s)
	}
	return c.sum()
}

// ResearchFingerprint keys research-result memoization. The query is trimmed,
// lowercased, and whitespace-collapsed so that trivially reworded requests
// share a result; the depth is included because it changes the topic count.
func ResearchFingerprint(query string, depth types.ResearchDepth) string {
	c := newCanonicalHash()
	c.field("v1:research")
	c.field(strings.Join(strings.Fields(strings.ToLower(query)), " "))
	c.field(string(depth))
	return c.sum()
}
