package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonRec struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

func collectJSON(t *testing.T, out <-chan jsonRec, errs <-chan error) []jsonRec {
	t.Helper()
	var got []jsonRec
	for rec := range out {
		got = append(got, rec)
	}
	require.NoError(t, <-errs)
	return got
}

func TestStreamJSON_Array(t *testing.T) {
	input := `[
		{"name": "China Academy of Engineering Physics", "country": "CN"},
		{"name": "Rosoboronexport", "country": "RU"}
	]`
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader(input))

	got := collectJSON(t, out, errs)
	require.Len(t, got, 2)
	assert.Equal(t, "China Academy of Engineering Physics", got[0].Name)
	assert.Equal(t, "RU", got[1].Country)
}

func TestStreamJSON_NDJSON(t *testing.T) {
	input := `{"name": "org_a", "country": "CN"}
{"name": "org_b", "country": "IR"}
{"name": "org_c", "country": "KP"}
`
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader(input))

	got := collectJSON(t, out, errs)
	require.Len(t, got, 3)
	assert.Equal(t, "org_b", got[1].Name)
	assert.Equal(t, "KP", got[2].Country)
}

func TestStreamJSON_EmptyArray(t *testing.T) {
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader("[]"))
	got := collectJSON(t, out, errs)
	assert.Empty(t, got)
}

func TestStreamJSON_EmptyInput(t *testing.T) {
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader("   \n "))
	got := collectJSON(t, out, errs)
	assert.Empty(t, got)
}

func TestStreamJSON_LeadingWhitespace(t *testing.T) {
	input := "\n\t [ {\"name\": \"org_a\"} ]"
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader(input))

	got := collectJSON(t, out, errs)
	require.Len(t, got, 1)
	assert.Equal(t, "org_a", got[0].Name)
}

func TestStreamJSON_MalformedRecord(t *testing.T) {
	input := `[{"name": "ok"}, {"name": broken}]`
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader(input))

	var got []jsonRec
	for rec := range out {
		got = append(got, rec)
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode record")
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Name)
}

func TestStreamJSON_TruncatedNDJSON(t *testing.T) {
	input := `{"name": "ok"}
{"name": "trunc`
	out, errs := StreamJSON[jsonRec](context.Background(), strings.NewReader(input))

	var got []jsonRec
	for rec := range out {
		got = append(got, rec)
	}
	err := <-errs
	require.Error(t, err)
	require.Len(t, got, 1)
}

func TestStreamJSON_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 2000; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"name": "entity", "country": "CN"}`)
	}
	sb.WriteString("]")

	out, errs := StreamJSON[jsonRec](ctx, strings.NewReader(sb.String()))

	// Abandon the stream after a few records.
	for i := 0; i < 3; i++ {
		<-out
	}
	cancel()

	count := 3
	for range out {
		count++
	}
	<-errs
	assert.Less(t, count, 2000)
}
