package heuristic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/cv-ranker/internal/cv"
)

const sample = `Jane Doe
PhD in Computer Science, MIT
Research Engineer at Acme Labs, 2020-01 - present
Data Analyst at Widgets Inc, 01/2018 to 12/2019
Paper: Sparse attention, NeurIPS 2021
Best Student Award 2019
Hobbies: chess`

func TestExtractStructuredFindsSections(t *testing.T) {
	record, err := New().ExtractStructured(context.Background(), sample, "jane.pdf")
	require.NoError(t, err)

	assert.Equal(t, "jane.pdf", record.Name)
	assert.Equal(t, cv.SourceHeuristic, record.Source)

	require.Len(t, record.Education, 1)
	assert.Equal(t, "PhD in Computer Science, MIT", record.Education[0].Degree)

	require.Len(t, record.Experience, 2)
	assert.Equal(t, "2020-01", record.Experience[0].Start)
	assert.Equal(t, cv.OpenEndedSentinel, record.Experience[0].End)
	assert.Equal(t, "Acme Labs", record.Experience[0].Org)
	assert.Equal(t, "01/2018", record.Experience[1].Start)
	assert.Equal(t, "12/2019", record.Experience[1].End)

	assert.Len(t, record.Publications, 1)
	assert.Len(t, record.Awards, 1)
}

func TestExtractStructuredAlwaysReturnsSections(t *testing.T) {
	record, err := New().ExtractStructured(context.Background(), "", "empty.docx")
	require.NoError(t, err)

	assert.NotNil(t, record.Education)
	assert.NotNil(t, record.Experience)
	assert.NotNil(t, record.Publications)
	assert.NotNil(t, record.Awards)
}

func TestExtractStructuredHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ExtractStructured(ctx, sample, "jane.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}
