package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestDeterminism(t *testing.T) {
	x := Attr("x")
	e1 := mustAnd([]Expression{x.Ge(Int(0)), x.Le(Int(5))})
	e2 := mustAnd([]Expression{x.Le(Int(5)), x.Ge(Int(0))})

	assert.Equal(t, Digest(e1), Digest(e2), "clause order must not affect the digest")
	assert.Len(t, Digest(e1), 64, "SHA-256 hex is 64 characters")
	assert.Equal(t, Hash(e1), Hash(e2))
}

func TestContentDigestDomainSeparation(t *testing.T) {
	data := []byte(True.Key())
	assert.NotEqual(t, ContentDigest(DomainExpression, data), ContentDigest(DomainQuery, data))

	// Moving bytes across the domain/data boundary changes the digest.
	assert.NotEqual(t, ContentDigest("ab", []byte("c")), ContentDigest("a", []byte("bc")))
}

func TestHashDistinguishesShapes(t *testing.T) {
	x := Attr("x")
	a, b := x.Eq(Int(1)), x.Eq(Int(2))

	seen := map[uint64]string{}
	for _, e := range []Expression{
		a, b,
		mustAnd([]Expression{a, b}),
		mustOr([]Expression{a, b}),
		NewNot(a),
		x.IsIn(Int(1)),
		True, False,
	} {
		h := Hash(e)
		prev, dup := seen[h]
		assert.False(t, dup, "%s collides with %s", e, prev)
		seen[h] = e.String()
	}
}
