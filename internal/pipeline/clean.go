package pipeline

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/stagepipe/internal/payload"
)

// Collision decides which value survives when two keys lower-case to the
// same name.
type Collision int

const (
	// LastWins keeps the value of the later key. The key keeps the position
	// of its first occurrence.
	LastWins Collision = iota
	// FirstWins keeps the value of the earlier key.
	FirstWins
)

// ParseCollision maps "first" or "last" to a Collision.
func ParseCollision(s string) (Collision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return LastWins, nil
	case "first":
		return FirstWins, nil
	}
	return LastWins, fmt.Errorf("unknown key collision policy %q", s)
}

func (c Collision) String() string {
	if c == FirstWins {
		return "first"
	}
	return "last"
}

// CleanPolicy configures Clean.
type CleanPolicy struct {
	// TempPrefix marks scratch fields to drop. Compared after lower-casing.
	TempPrefix string
	Collision  Collision
}

// DefaultCleanPolicy drops temp_ fields and lets the last duplicate win.
func DefaultCleanPolicy() CleanPolicy {
	return CleanPolicy{TempPrefix: "temp_", Collision: LastWins}
}

// Clean normalizes one raw payload:
//  1. non-object payloads are wrapped as {"value": payload}
//  2. top-level keys are lower-cased
//  3. top-level nulls become 0
//  4. keys starting with the temp prefix are dropped
//
// Nested values pass through untouched. Clean is idempotent.
func Clean(v payload.Value, p CleanPolicy) *payload.Object {
	src, ok := v.AsObject()
	if !ok {
		src = payload.NewObject()
		src.Set("value", v)
	}

	prefix := strings.ToLower(p.TempPrefix)
	out := payload.NewObject()
	for _, f := range src.Fields() {
		key := strings.ToLower(f.Key)
		if prefix != "" && strings.HasPrefix(key, prefix) {
			continue
		}
		if p.Collision == FirstWins && out.Has(key) {
			continue
		}

		val := f.Value
		if val.IsNull() {
			val = payload.Number(0)
		}
		out.Set(key, val)
	}
	return out
}
