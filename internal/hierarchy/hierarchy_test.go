package hierarchy

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iadas/internal/results"
	"github.com/roach88/iadas/internal/testutil"
)

const xsdInteger = `"datatype": "http://www.w3.org/2001/XMLSchema#integer"`

func binding(relation, related, label, level string) string {
	return `{
	  "relation": {"type": "literal", "value": "` + relation + `"},
	  "concept": {"type": "uri", "value": "http://ia-das.org/onto#Anxiety"},
	  "conceptLabel": {"type": "literal", "value": "Anxiety"},
	  "related": {"type": "uri", "value": "` + related + `"},
	  "relatedLabel": {"type": "literal", "value": "` + label + `"},
	  "level": {"type": "literal", "value": "` + level + `", ` + xsdInteger + `}
	}`
}

func payload(bindings ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"head":{"vars":["relation","concept","conceptLabel","related","relatedLabel","level"]},"results":{"bindings":[`)
	for i, b := range bindings {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(b)
	}
	buf.WriteString(`]}}`)
	return buf.Bytes()
}

func newResolver(t *testing.T) (*Resolver, *testutil.FakeClock, *bytes.Buffer) {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.DefaultTime)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return New(WithClock(clock.Now), WithLogger(logger)), clock, &logs
}

func TestResolveParentsSortedAscending(t *testing.T) {
	r, _, _ := newResolver(t)

	env := r.ResolveJSON(payload(
		binding("parent", "http://ia-das.org/onto#C", "C", "3"),
		binding("parent", "http://ia-das.org/onto#A", "A", "1"),
		binding("parent", "http://ia-das.org/onto#B", "B", "2"),
	), "Anxiety")

	require.True(t, env.Success)
	require.Len(t, env.Parents, 3)
	for i, want := range []struct {
		label   string
		level   float64
		display string
	}{
		{"A", 1, "N1"},
		{"B", 2, "N2"},
		{"C", 3, "N3"},
	} {
		assert.Equal(t, want.label, env.Parents[i].Label)
		assert.Equal(t, want.level, env.Parents[i].Level)
		assert.Equal(t, want.display, env.Parents[i].DisplayLevel)
	}
}

func TestResolveStableForEqualLevels(t *testing.T) {
	r, _, _ := newResolver(t)

	env := r.ResolveJSON(payload(
		binding("parent", "http://ia-das.org/onto#Second", "Second", "2"),
		binding("parent", "http://ia-das.org/onto#FirstA", "FirstA", "1"),
		binding("parent", "http://ia-das.org/onto#FirstB", "FirstB", "1"),
	), "Anxiety")

	var labels []string
	for _, p := range env.Parents {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"FirstA", "FirstB", "Second"}, labels)
}

func TestResolvePartitions(t *testing.T) {
	r, clock, logs := newResolver(t)

	env := r.ResolveJSON(payload(
		binding("self", "http://ia-das.org/onto#Anxiety", "Anxiety", "0"),
		binding("child", "http://ia-das.org/onto#SocialAnxiety", "Social anxiety", "1"),
		binding("sibling", "http://ia-das.org/onto#Stress", "Stress", "1"),
		binding("self", "http://ia-das.org/onto#Other", "Other", "0"),
		binding("parent", "http://ia-das.org/onto#Affect", "Affect", "1"),
	), " Anxiety ")

	assert.True(t, env.Success)
	assert.Empty(t, env.Error)
	assert.Equal(t, "Anxiety", env.Concept)
	assert.Equal(t, 5, env.TotalResults)
	assert.Equal(t, clock.Now(), env.Timestamp)

	require.NotNil(t, env.Self)
	assert.Equal(t, "http://ia-das.org/onto#Anxiety", env.Self.URI)
	assert.Empty(t, env.Self.DisplayLevel)

	require.Len(t, env.Children, 1)
	assert.Equal(t, "Social anxiety", env.Children[0].Label)
	assert.Equal(t, "Anxiety", env.Children[0].OriginalLabel)
	assert.Equal(t, "http://ia-das.org/onto#Anxiety", env.Children[0].OriginalConcept)
	assert.Empty(t, env.Children[0].DisplayLevel)

	require.Len(t, env.Parents, 1)
	assert.Equal(t, "N1", env.Parents[0].DisplayLevel)

	assert.Contains(t, logs.String(), "relation=sibling")
}

func TestResolveInvalidShape(t *testing.T) {
	r, clock, _ := newResolver(t)

	for name, data := range map[string]string{
		"empty object":     `{}`,
		"missing bindings": `{"head":{"vars":[]},"results":{}}`,
		"not json":         `nope`,
	} {
		t.Run(name, func(t *testing.T) {
			env := r.ResolveJSON([]byte(data), "Anxiety")

			assert.False(t, env.Success)
			assert.Contains(t, env.Error, results.ErrInvalidShape.Error())
			assert.Equal(t, "Anxiety", env.Concept)
			assert.Nil(t, env.Self)
			assert.NotNil(t, env.Parents)
			assert.Empty(t, env.Parents)
			assert.NotNil(t, env.Children)
			assert.Empty(t, env.Children)
			assert.Zero(t, env.TotalResults)
			assert.Equal(t, clock.Now(), env.Timestamp)
		})
	}
}

func TestResolveEmptyConcept(t *testing.T) {
	r, _, _ := newResolver(t)

	env := r.ResolveJSON(payload(), "  ")

	assert.False(t, env.Success)
	assert.Equal(t, ErrEmptyConcept.Error(), env.Error)
}

func TestResolveLabelFallback(t *testing.T) {
	r, _, _ := newResolver(t)

	env := r.ResolveJSON([]byte(`{
	  "head": {"vars": ["relation", "related", "level"]},
	  "results": {"bindings": [
	    {"relation": {"type": "literal", "value": "child"},
	     "related": {"type": "uri", "value": "http://ia-das.org/onto#BodyImageConcern"}}
	  ]}
	}`), "Anxiety")

	require.Len(t, env.Children, 1)
	child := env.Children[0]
	assert.Equal(t, "Body Image Concern", child.Label)
	assert.Equal(t, UnknownLabel, child.OriginalLabel)
	assert.Zero(t, child.Level)
}

func TestReadableLabel(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"http://ia-das.org/onto#BodyImage", "Body Image"},
		{"http://ia-das.org/onto/eatingDisorder", "eating Disorder"},
		{"http://ia-das.org/onto/", UnknownLabel},
		{"", UnknownLabel},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadableLabel(tt.uri))
		})
	}
}

func TestDisplayLevel(t *testing.T) {
	assert.Equal(t, "N1", DisplayLevel(0))
	assert.Equal(t, "N12", DisplayLevel(11))
}
