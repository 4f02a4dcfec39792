package accesskeys

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	segmentLength = 4

	// ShortSegments is the normal token shape, PREFIX-XXXX-XXXX.
	ShortSegments = 2
	// LongSegments is the fallback shape used once short tokens keep colliding.
	LongSegments = 4

	DefaultPrefix = "TES"
)

// largest multiple of 36 that fits in a byte; bytes at or above it are
// rejected so every character is equally likely
const maxUnbiasedByte = 252

// Generator produces access key tokens from a random source.
type Generator struct {
	prefix string
	random io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{prefix: strings.ToUpper(prefix), random: rand.Reader}
}

func (g *Generator) Prefix() string {
	return g.prefix
}

// Token returns PREFIX followed by segments dash-separated groups of four
// base36 characters.
func (g *Generator) Token(segments int) (string, error) {
	if segments < 1 {
		return "", fmt.Errorf("token needs at least one segment, got %d", segments)
	}
	chars, err := g.randomChars(segments * segmentLength)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(g.prefix)
	for i := 0; i < segments; i++ {
		b.WriteByte('-')
		b.Write(chars[i*segmentLength : (i+1)*segmentLength])
	}
	return b.String(), nil
}

func (g *Generator) randomChars(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		chunk := buf[:n-len(out)]
		if _, err := io.ReadFull(g.random, chunk); err != nil {
			return nil, fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range chunk {
			if b < maxUnbiasedByte {
				out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			}
		}
	}
	return out, nil
}

// TokenPattern matches tokens with the given prefix and segment count.
func TokenPattern(prefix string, segments int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^%s(-[0-9A-Z]{%d}){%d}$`, regexp.QuoteMeta(prefix), segmentLength, segments))
}
