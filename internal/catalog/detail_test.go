package catalog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldsSetReplacesInPlace(t *testing.T) {
	t.Parallel()

	var f Fields
	f.Set("title", "A")
	f.Set("type", "TV")
	f.Set("title", "B")

	require.Equal(t, []string{"title", "type"}, f.Names())
	v, ok := f.Get("title")
	require.True(t, ok)
	require.Equal(t, "B", v)

	_, ok = f.Get("missing")
	require.False(t, ok)
}

func TestDetailRecordMarshalKeepsOrder(t *testing.T) {
	t.Parallel()

	performer := "John Smith"
	rec := DetailRecord{
		ID: 7,
		Fields: Fields{
			{Name: "title", Value: "Тетрадь смерти"},
			{Name: "genre", Value: []string{"Триллер", "Детектив"}},
			{Name: "characters", Value: []Character{
				{Role: "Jane Doe", Performer: &performer},
				{Role: "Extra"},
			}},
			{Name: "trailer", Value: nil},
			{Name: "description", Value: "<b>&</b>"},
		},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(rec))
	out := bytes.TrimSpace(buf.Bytes())
	require.Equal(t,
		`{"id":7,"title":"Тетрадь смерти","genre":["Триллер","Детектив"],`+
			`"characters":[{"Jane Doe":"John Smith"},"Extra"],"trailer":null,"description":"<b>&</b>"}`,
		string(out))
}

func TestDetailRecordSkipsShadowedID(t *testing.T) {
	t.Parallel()

	rec := DetailRecord{ID: 1, Fields: Fields{{Name: "id", Value: "x"}, {Name: "title", Value: "T"}}}
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1,"title":"T"}`, string(out))
}
