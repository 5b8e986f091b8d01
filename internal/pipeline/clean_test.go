package pipeline

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) payload.Value {
	t.Helper()
	v, err := payload.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func canonical(t *testing.T, o *payload.Object) string {
	t.Helper()
	b, err := payload.Canonical(payload.ObjectValue(o))
	require.NoError(t, err)
	return string(b)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		policy CleanPolicy
		want   string
	}{
		{
			name:   "lowercases keys",
			input:  `{"Name":"a","AMOUNT":5}`,
			policy: DefaultCleanPolicy(),
			want:   `{"amount":5,"name":"a"}`,
		},
		{
			name:   "null becomes zero",
			input:  `{"a":null,"b":"x"}`,
			policy: DefaultCleanPolicy(),
			want:   `{"a":0,"b":"x"}`,
		},
		{
			name:   "drops temp fields after lowercasing",
			input:  `{"TEMP_scratch":1,"temp_x":2,"keep":3}`,
			policy: DefaultCleanPolicy(),
			want:   `{"keep":3}`,
		},
		{
			name:   "custom prefix",
			input:  `{"tmp_a":1,"temp_b":2}`,
			policy: CleanPolicy{TempPrefix: "TMP_"},
			want:   `{"temp_b":2}`,
		},
		{
			name:   "nested values untouched",
			input:  `{"Outer":{"Inner":null}}`,
			policy: DefaultCleanPolicy(),
			want:   `{"outer":{"Inner":null}}`,
		},
		{
			name:   "scalar wrapped",
			input:  `42`,
			policy: DefaultCleanPolicy(),
			want:   `{"value":42}`,
		},
		{
			name:   "array wrapped",
			input:  `[1,null]`,
			policy: DefaultCleanPolicy(),
			want:   `{"value":[1,null]}`,
		},
		{
			name:   "null payload wrapped then zeroed",
			input:  `null`,
			policy: DefaultCleanPolicy(),
			want:   `{"value":0}`,
		},
		{
			name:   "collision last wins",
			input:  `{"A":1,"a":2}`,
			policy: CleanPolicy{Collision: LastWins},
			want:   `{"a":2}`,
		},
		{
			name:   "collision first wins",
			input:  `{"A":1,"a":2}`,
			policy: CleanPolicy{Collision: FirstWins},
			want:   `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(mustParse(t, tt.input), tt.policy)
			assert.Equal(t, tt.want, canonical(t, got))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		`{"Mixed":1,"UPPER":null,"Temp_gone":true,"s":"x"}`,
		`{"A":1,"a":2,"nested":{"X":null}}`,
		`"just a string"`,
	}
	for _, policy := range []CleanPolicy{DefaultCleanPolicy(), {Collision: FirstWins}} {
		for _, in := range inputs {
			once := Clean(mustParse(t, in), policy)
			twice := Clean(payload.ObjectValue(once), policy)
			assert.Equal(t, canonical(t, once), canonical(t, twice), in)
		}
	}
}

func TestClean_KeyOrderFollowsFirstOccurrence(t *testing.T) {
	got := Clean(mustParse(t, `{"B":1,"c":2,"b":3}`), DefaultCleanPolicy())
	assert.Equal(t, []string{"b", "c"}, got.Keys())

	v, _ := got.Get("b")
	n, _ := v.AsNumber()
	assert.Equal(t, 3.0, n)
}

func TestParseCollision(t *testing.T) {
	c, err := ParseCollision("FIRST")
	require.NoError(t, err)
	assert.Equal(t, FirstWins, c)

	c, err = ParseCollision("")
	require.NoError(t, err)
	assert.Equal(t, LastWins, c)

	_, err = ParseCollision("random")
	assert.Error(t, err)
}

func TestClean_RawStorageKeepsColumnOrder(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("value,Value\n1,2\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	stored, err := rawData(records[0])
	require.NoError(t, err)
	assert.Equal(t, `{"value":1,"Value":2}`, stored)

	tests := []struct {
		collision Collision
		want      float64
	}{
		{LastWins, 2},
		{FirstWins, 1},
	}
	for _, tt := range tests {
		t.Run(tt.collision.String(), func(t *testing.T) {
			got := Clean(mustParse(t, stored), CleanPolicy{Collision: tt.collision})
			v, ok := got.Get("value")
			require.True(t, ok)
			n, _ := v.AsNumber()
			assert.Equal(t, tt.want, n)
		})
	}
}
