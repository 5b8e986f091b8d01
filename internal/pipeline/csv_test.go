package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_TypesCells(t *testing.T) {
	in := "name,amount,active,note\n" +
		"Acme,1200.50,TRUE,\n" +
		"Globex,-3,false,\"has, comma\"\n"

	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, _ := records[0].AsObject()
	assert.Equal(t, []string{"name", "amount", "active", "note"}, first.Keys())

	b, err := payload.Canonical(records[0])
	require.NoError(t, err)
	assert.Equal(t, `{"active":true,"amount":1200.5,"name":"Acme","note":null}`, string(b))

	b, err = payload.Canonical(records[1])
	require.NoError(t, err)
	assert.Equal(t, `{"active":false,"amount":-3,"name":"Globex","note":"has, comma"}`, string(b))
}

func TestReadCSV_BOMAndExcelFormula(t *testing.T) {
	in := "\xEF\xBB\xBFid,code\n=\"00123\",=\"abc\"\n"

	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)

	b, _ := payload.Canonical(records[0])
	assert.Equal(t, `{"code":"abc","id":123}`, string(b))
}

func TestReadCSV_InvalidUTF8Repaired(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("name\nbad\xffbyte\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	obj, _ := records[0].AsObject()
	v, _ := obj.Get("name")
	s, _ := v.AsString()
	assert.Equal(t, "bad�byte", s)
}

func TestReadCSV_HeaderOnlyAndBlankLines(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = ReadCSV(strings.NewReader("a,b\n1,2\n\n ,\n3,4\n"))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadCSV_Malformed(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrMalformedInput))

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestHeaderKeys(t *testing.T) {
	got := headerKeys([]string{" id ", "", "id", "id", "x"})
	assert.Equal(t, []string{"id", "unnamed_1", "id.1", "id.2", "x"}, got)
}

func TestTypeCell(t *testing.T) {
	tests := []struct {
		in   string
		kind payload.Kind
	}{
		{"", payload.KindNull},
		{"   ", payload.KindNull},
		{"42", payload.KindNumber},
		{"1e3", payload.KindNumber},
		{".5", payload.KindNumber},
		{"$1,000", payload.KindString},
		{"True", payload.KindBool},
		{"yes", payload.KindString},
		{"12abc", payload.KindString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, typeCell(tt.in).Kind(), "typeCell(%q)", tt.in)
	}
}
