package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoffscrub/pkg/models"
)

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	a := rec("Acme", "Retail", "10", "NULL", "01/01/2022", "USA")
	a.Location = "First"
	b := rec("Acme", "Retail", "10", "NULL", "01/01/2022", "USA")
	b.Location = "First"
	c := rec("Acme", "Retail", "10", "NULL", "01/01/2022", "USA")
	c.Location = "Different"

	p := mustPipeline(t, Config{})
	report := &Report{}
	out := p.dedupe([]models.Record{a, b, c}, report)

	require.Len(t, out, 2)
	assert.Equal(t, "First", out[0].Location)
	assert.Equal(t, "Different", out[1].Location)
	assert.Equal(t, 1, report.DuplicatesRemoved)
}

func TestDedupeDistinguishesNullFromEmpty(t *testing.T) {
	withNull := rec("Acme", "NULL", "10", "NULL", "01/01/2022", "USA")
	withEmpty := rec("Acme", "", "10", "NULL", "01/01/2022", "USA")

	p := mustPipeline(t, Config{})
	report := &Report{}
	out := p.dedupe([]models.Record{withNull, withEmpty}, report)

	assert.Len(t, out, 2, "null and empty industry are distinct before normalization")
	assert.Zero(t, report.DuplicatesRemoved)
}

func TestFullDuplicatesGroups(t *testing.T) {
	rows := []models.Record{
		rec("Twice", "Retail", "10", "NULL", "01/01/2022", "USA"),
		rec("Twice", "Retail", "10", "NULL", "01/01/2022", "USA"),
		rec("Thrice", "Media", "20", "NULL", "02/01/2022", "UK"),
		rec("Thrice", "Media", "20", "NULL", "02/01/2022", "UK"),
		rec("Thrice", "Media", "20", "NULL", "02/01/2022", "UK"),
		rec("Once", "Media", "30", "NULL", "03/01/2022", "UK"),
	}

	groups := FullDuplicates(rows)

	require.Len(t, groups, 2)
	assert.Equal(t, "Thrice", groups[0].Company)
	assert.Equal(t, 3, groups[0].Count)
	assert.Equal(t, "Twice", groups[1].Company)
	assert.Equal(t, 2, groups[1].Count)
}

func TestNarrowDuplicatesConflateDistinctEvents(t *testing.T) {
	a := rec("Acme", "Retail", "50", "NULL", "05/05/2022", "USA")
	a.Location = "New York"
	b := rec("Acme", "Retail", "50", "NULL", "05/05/2022", "USA")
	b.Location = "Boston"

	rows := []models.Record{a, b}

	assert.Empty(t, FullDuplicates(rows), "distinct events are not full-key duplicates")

	narrow := NarrowDuplicates(rows)
	require.Len(t, narrow, 1)
	assert.Equal(t, "Acme", narrow[0].Company)
	assert.Equal(t, 2, narrow[0].Count)
	assert.Equal(t, "50", narrow[0].TotalLaidOff)
	assert.Equal(t, "05/05/2022", narrow[0].Date)
}

func TestDuplicateGroupsRenderNulls(t *testing.T) {
	rows := []models.Record{
		rec("Ghost", "NULL", "NULL", "0.2", "NULL", "USA"),
		rec("Ghost", "NULL", "NULL", "0.2", "NULL", "USA"),
	}

	groups := FullDuplicates(rows)

	require.Len(t, groups, 1)
	assert.Equal(t, "NULL", groups[0].Industry)
	assert.Equal(t, "NULL", groups[0].TotalLaidOff)
	assert.Equal(t, "NULL", groups[0].Date)
}
