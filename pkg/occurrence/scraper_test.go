package occurrence_test

import (
	"context"
	"testing"

	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/dwca"
	"github.com/biohubbc/biohub-platform/pkg/media"
	"github.com/biohubbc/biohub-platform/pkg/occurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

func setupRepo(t *testing.T) *occurrence.Repository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := occurrence.NewRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func buildArchive(t *testing.T, files map[string]string) *dwca.DWCArchive {
	t.Helper()
	archive := &media.Archive{MediaFile: media.MediaFile{Name: "submission.zip"}}
	for name, content := range files {
		archive.Files = append(archive.Files, &media.MediaFile{Name: name, Data: []byte(content)})
	}
	dwc, err := dwca.NewDWCArchive(archive)
	require.NoError(t, err)
	return dwc
}

func TestScrapeJoinsWorksheets(t *testing.T) {
	repo := setupRepo(t)
	scraper := occurrence.NewScraper(repo)

	dwc := buildArchive(t, map[string]string{
		"event.csv":      "id,eventDate,verbatimCoordinates\nE1,2020-01-01,9N 573674 6114170\n",
		"occurrence.csv": "id,associatedTaxa,sex\nE1,Alces alces,male\n",
		"taxon.csv":      "id,vernacularName\nE1,Moose\n",
	})

	result, err := scraper.Scrape(context.Background(), dwc, 42)
	require.NoError(t, err)
	assert.Equal(t, occurrence.ScrapeSucceeded, result.State)
	require.Len(t, result.OccurrenceIDs, 1)

	rows, err := repo.ListOccurrencesBySubmissionID(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	occ := rows[0]
	assert.Equal(t, "2020-01-01", occ.EventDate)
	assert.Equal(t, "Alces alces", occ.TaxonID)
	assert.Equal(t, "Moose", occ.VernacularName)
	assert.Equal(t, "male", occ.Sex)
	require.NotNil(t, occ.Latitude)
	require.NotNil(t, occ.Longitude)
	assert.InDelta(t, 55.15, *occ.Latitude, 0.5)
	assert.InDelta(t, -127.85, *occ.Longitude, 0.5)
}

func TestScrapeToleratesUnparseableCoordinates(t *testing.T) {
	repo := setupRepo(t)
	scraper := occurrence.NewScraper(repo)

	dwc := buildArchive(t, map[string]string{
		"event.csv":      "id,eventDate,verbatimCoordinates\nE1,2020-01-01,not-a-coordinate\n",
		"occurrence.csv": "id,taxonID\nE1,M-ALAL\n",
	})

	result, err := scraper.Scrape(context.Background(), dwc, 7)
	require.NoError(t, err)
	assert.Equal(t, occurrence.ScrapeSucceeded, result.State)
	require.Len(t, result.Warnings, 1)

	rows, err := repo.ListOccurrencesBySubmissionID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Latitude)
	assert.Nil(t, rows[0].Longitude)
}

func TestScrapeWithoutOccurrenceWorksheet(t *testing.T) {
	repo := setupRepo(t)
	scraper := occurrence.NewScraper(repo)

	dwc := buildArchive(t, map[string]string{
		"event.csv": "id,eventDate\nE1,2020-01-01\n",
	})

	result, err := scraper.Scrape(context.Background(), dwc, 3)
	require.NoError(t, err)
	assert.Equal(t, occurrence.ScrapeSucceeded, result.State)
	assert.Empty(t, result.OccurrenceIDs)
}

func TestScrapeUnmatchedJoinKey(t *testing.T) {
	repo := setupRepo(t)
	scraper := occurrence.NewScraper(repo)

	dwc := buildArchive(t, map[string]string{
		"event.csv":      "id,eventDate,verbatimCoordinates\nE9,2020-01-01,50.7 -120.2\n",
		"occurrence.csv": "id,taxonID\nE1,M-ALAL\n",
	})

	result, err := scraper.Scrape(context.Background(), dwc, 9)
	require.NoError(t, err)
	require.Len(t, result.OccurrenceIDs, 1)

	rows, err := repo.ListOccurrencesBySubmissionID(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, rows[0].EventDate)
	assert.Nil(t, rows[0].Latitude)
}

func TestNormalizedEventDateFormats(t *testing.T) {
	repo := setupRepo(t)
	scraper := occurrence.NewScraper(repo)

	dwc := buildArchive(t, map[string]string{
		"event.csv":      "id,eventDate\nE1,01/15/2020\n",
		"occurrence.csv": "id\nE1\n",
	})

	_, err := scraper.Scrape(context.Background(), dwc, 11)
	require.NoError(t, err)

	rows, err := repo.ListOccurrencesBySubmissionID(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-15", rows[0].EventDate)
}
