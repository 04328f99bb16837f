package citation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeGroups(t *testing.T) {
	s := Summarize(0.82, []ScoredSource{
		{Title: "S1", Type: "article", CredibilityScore: 95},
		{Title: "S2", Type: "Journal", CredibilityScore: 85},
		{Title: "S3", Type: "website", CredibilityScore: 40},
	})
	require.Len(t, s.Groups, 3)
	assert.Equal(t, 0.82, s.OverallScore)

	academic, web, other := s.Groups[0], s.Groups[1], s.Groups[2]
	assert.Equal(t, GroupAcademic, academic.Name)
	assert.Equal(t, 2, academic.Count)
	assert.InDelta(t, 90, academic.AverageCredibility, 0.001)
	assert.Equal(t, StatusVerified, academic.Status)

	assert.Equal(t, 1, web.Count)
	assert.Equal(t, StatusVerified, web.Status)

	assert.Equal(t, 0, other.Count)
	assert.Equal(t, StatusUnverified, other.Status)
	assert.Zero(t, other.AverageCredibility)
}

func TestWriteCSL(t *testing.T) {
	f := NewForm(FormWeb, DefaultLimits)
	src := validWeb("a")
	src.Authors = "Lovelace, Ada; Charles Babbage"
	src.DOI = "10.1000/xyz"
	require.NoError(t, f.UpdateSource(0, src))

	var buf bytes.Buffer
	require.NoError(t, WriteCSL(f, &buf))
	out := buf.String()
	assert.True(t, strings.Contains(out, "id: source-1"), out)
	assert.Contains(t, out, "type: webpage")
	assert.Contains(t, out, "family: Lovelace")
	assert.Contains(t, out, "family: Babbage")
	assert.Contains(t, out, "DOI: 10.1000/xyz")
}

func TestParseCSLDate(t *testing.T) {
	assert.Equal(t, [][]int{{2024, 2, 1}}, parseCSLDate("2024-02-01T10:00:00Z").DateParts)
	assert.Equal(t, [][]int{{2019}}, parseCSLDate("2019").DateParts)
	assert.Nil(t, parseCSLDate("unknown"))
	assert.Nil(t, parseCSLDate(""))
}
