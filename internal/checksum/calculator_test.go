package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256_CalculateRaw(t *testing.T) {
	c := New()
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", c.CalculateRaw(nil))
	assert.NotEqual(t, c.CalculateRaw([]byte("a")), c.CalculateRaw([]byte("a\n")))
}

func TestSHA256_CalculateNormalized(t *testing.T) {
	c := New()
	lf := []byte("<EntitiesDescriptor>\n  <EntityDescriptor/>\n</EntitiesDescriptor>\n")
	crlf := []byte("<EntitiesDescriptor>\r\n  <EntityDescriptor/>  \r\n</EntitiesDescriptor>\r\n")

	assert.Equal(t, c.CalculateNormalized(lf), c.CalculateNormalized(crlf))
	assert.NotEqual(t, c.CalculateRaw(lf), c.CalculateRaw(crlf))
	assert.NotEqual(t, c.CalculateNormalized(lf), c.CalculateNormalized([]byte("<EntitiesDescriptor/>")))
}

func TestDiffHash(t *testing.T) {
	c := New()
	a := Entry{Path: "metadata.xml", Status: "M", Content: []byte("<a/>")}
	b := Entry{Path: "ldap/x.xml", Status: "D"}

	assert.Empty(t, DiffHash(c, nil))

	h1 := DiffHash(c, []Entry{a, b})
	h2 := DiffHash(c, []Entry{b, a})
	assert.Equal(t, h1, h2, "order independent")
	assert.Len(t, h1, 64)

	changed := a
	changed.Content = []byte("<b/>")
	assert.NotEqual(t, h1, DiffHash(c, []Entry{changed, b}))

	restaged := a
	restaged.Status = "A"
	assert.NotEqual(t, h1, DiffHash(c, []Entry{restaged, b}))
}
