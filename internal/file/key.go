package file

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyGenerator produces object keys of the form {unixMillis}/{uuid}/{sanitizedName}.
// Keys are never reused because each embeds a fresh UUID.
type KeyGenerator struct {
	Now     func() time.Time
	NewUUID func() uuid.UUID
}

// NewKeyGenerator returns a generator using the wall clock and random v4 UUIDs.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{Now: time.Now, NewUUID: uuid.New}
}

// Generate returns a fresh object key for originalName.
// Names that sanitize to nothing are stored as "file".
func (g *KeyGenerator) Generate(originalName string) string {
	name := Sanitize(originalName)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("%d/%s/%s", g.Now().UnixMilli(), g.NewUUID(), name)
}

// Sanitize replaces every byte outside [A-Za-z0-9._-] with '_', collapses runs
// of '_' and trims them from both ends.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastUnderscore := false
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if !isKeySafe(ch) {
			ch = '_'
		}
		if ch == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteByte(ch)
	}

	return strings.Trim(b.String(), "_")
}

func isKeySafe(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	case ch == '.', ch == '-':
		return true
	}
	return false
}
