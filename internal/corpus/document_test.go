package corpus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

func TestDocument_UnmarshalJSON_SpanishKeys(t *testing.T) {
	// Given: a document in the archive format
	data := `{"autor":"Perón","tipo":"carta","fecha":"1952","tema":"Economía","texto":["uno","dos"]}`

	// When
	var d Document
	require.NoError(t, json.Unmarshal([]byte(data), &d))

	// Then
	assert.Equal(t, "Perón", d.Author)
	assert.Equal(t, "carta", d.Kind)
	assert.Equal(t, "1952", d.Date)
	assert.Equal(t, "Economía", d.Topic)
	assert.Equal(t, []string{"uno", "dos"}, d.Lines)
}

func TestDocument_UnmarshalJSON_EnglishKeysAndStringText(t *testing.T) {
	data := `{"author":"A","kind":"speech","date":"d","topic":"t","text":"single block"}`

	var d Document
	require.NoError(t, json.Unmarshal([]byte(data), &d))

	assert.Equal(t, "A", d.Author)
	assert.Equal(t, "speech", d.Kind)
	assert.Equal(t, []string{"single block"}, d.Lines)
}

func TestDocument_UnmarshalJSON_TextShapes(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		expect []string
	}{
		{"missing", `{}`, nil},
		{"null", `{"texto":null}`, nil},
		{"mixed array", `{"texto":["a", 12, null, "b"]}`, []string{"a", "12", "b"}},
		{"number", `{"texto":7}`, []string{"7"}},
		{"spanish wins", `{"texto":"es","text":"en"}`, []string{"es"}},
		{"fallback to english", `{"texto":null,"text":"en"}`, []string{"en"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Document
			require.NoError(t, json.Unmarshal([]byte(tt.json), &d))
			assert.Equal(t, tt.expect, d.Lines)
		})
	}
}

func TestDocument_UnmarshalJSON_Invalid(t *testing.T) {
	var d Document
	assert.Error(t, json.Unmarshal([]byte(`{"texto":[1,`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"just a string"`), &d))
}

func TestDocument_MarshalJSON_UsesSpanishKeys(t *testing.T) {
	d := Document{Author: "A", Kind: "K", Date: "D", Topic: "T"}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	assert.JSONEq(t, `{"autor":"A","tipo":"K","fecha":"D","tema":"T","texto":[]}`, string(data))
}

func TestDocument_WithDefaults(t *testing.T) {
	// Given: a document with only a topic
	d := Document{Topic: "Trabajo"}

	// When
	got := d.WithDefaults(DefaultMetadata())

	// Then: only empty fields are filled
	assert.Equal(t, chunk.Metadata{
		Author: DefaultAuthor,
		Kind:   DefaultKind,
		Date:   DefaultDate,
		Topic:  "Trabajo",
	}, got.Meta())
}
