package pipeline_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/biohubbc/biohub-platform/pkg/common/config"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/eml"
	"github.com/biohubbc/biohub-platform/pkg/occurrence"
	"github.com/biohubbc/biohub-platform/pkg/pipeline"
	"github.com/biohubbc/biohub-platform/pkg/scan"
	"github.com/biohubbc/biohub-platform/pkg/search"
	"github.com/biohubbc/biohub-platform/pkg/security"
	"github.com/biohubbc/biohub-platform/pkg/storage"
	"github.com/biohubbc/biohub-platform/pkg/submission"
	"github.com/biohubbc/biohub-platform/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fixture struct {
	service     *pipeline.Service
	submissions *submission.Repository
	occurrences *occurrence.Repository
	schemas     *validation.Repository
	objects     *storage.MemoryStore
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	submissions := submission.NewRepository(db)
	require.NoError(t, submissions.AutoMigrate())
	occurrences := occurrence.NewRepository(db)
	require.NoError(t, occurrences.AutoMigrate())
	schemas := validation.NewRepository(db)
	require.NoError(t, schemas.AutoMigrate())

	states := submission.NewStateMachine(submissions)
	objects := storage.NewMemoryStore()
	scraper := occurrence.NewScraper(occurrences)
	validator := validation.NewEngine(schemas, submissions, states, objects)

	classifier, err := security.NewClassifier(security.DefaultRules(), occurrences, states)
	require.NoError(t, err)

	stylesheets := eml.NewStylesheetStore(objects, nil, "stylesheets", 0)
	indexer := search.NewIndexer(search.Config{})

	cfg := &config.Config{StorageKeyPrefix: "biohub"}

	serviceClients := security.NewServiceClientConfig([]string{"sims-svc"})

	service := pipeline.NewService(cfg, submissions, states, occurrences, scraper,
		validator, classifier, stylesheets, indexer, objects, scan.NoopScanner{}, nil, serviceClients)

	return &fixture{
		service:     service,
		submissions: submissions,
		occurrences: occurrences,
		schemas:     schemas,
		objects:     objects,
	}
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sampleArchive(t *testing.T) []byte {
	return zipBytes(t, map[string]string{
		"event.csv":      "id,eventDate,verbatimCoordinates\no1,2020-01-01,9N 573674 6114170\n",
		"occurrence.csv": "id,taxonID,lifeStage,individualCount\no1,Alces alces,adult,4\n",
		"taxon.csv":      "id,vernacularName\no1,Moose\n",
		"eml.xml": `<eml:eml xmlns:eml="eml://ecoinformatics.org/eml-2.1.1" schemaVersion="2.1.1">` +
			`<dataset><title>Moose Survey</title></dataset></eml:eml>`,
	})
}

func seedStylesheets(t *testing.T, objects *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	index := []byte(`{"stylesheet":"eml","default":"1.0.0","compat":{"2.1.1":"1.0.0"}}`)
	require.NoError(t, objects.PutObject(ctx, "stylesheets/eml/index.json", index, nil))

	ss := []byte(`{"name":"eml","version":"1.0.0","fields":[{"name":"title","selector":"//dataset/title"}]}`)
	require.NoError(t, objects.PutObject(ctx, storage.StylesheetKey("stylesheets", "eml", "1.0.0"), ss, nil))
}

func TestIntakeCreatesSubmittedSubmission(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	result, err := f.service.Intake(ctx, "moose.zip", sampleArchive(t), "", "SIMS")
	require.NoError(t, err)
	require.NotEmpty(t, result.PackageID, "intake must mint a package id when none is supplied")

	sub, err := f.submissions.GetSubmissionRecordBySubmissionID(ctx, result.SubmissionID)
	require.NoError(t, err)
	require.NotNil(t, sub.InputKey)
	require.NotNil(t, sub.EMLSource)
	assert.Contains(t, *sub.EMLSource, "Moose Survey")

	data, _, err := f.objects.GetObject(ctx, *sub.InputKey)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	latest, err := f.submissions.GetLatestStatus(ctx, result.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, latest.StatusType)
}

func TestIntakeRetiresPriorVersion(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	const packageID = "0d4c3d10-0000-4000-8000-00000000feed"

	first, err := f.service.Intake(ctx, "moose.zip", sampleArchive(t), packageID, "SIMS")
	require.NoError(t, err)
	second, err := f.service.Intake(ctx, "moose.zip", sampleArchive(t), packageID, "SIMS")
	require.NoError(t, err)
	require.NotEqual(t, first.SubmissionID, second.SubmissionID)

	current, err := f.submissions.GetCurrentSubmissionByUUID(ctx, packageID)
	require.NoError(t, err)
	assert.Equal(t, second.SubmissionID, current.ID)

	versions, err := f.submissions.ListSubmissionsByUUID(ctx, packageID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	for _, v := range versions {
		if v.ID == first.SubmissionID {
			assert.NotNil(t, v.EndTimestamp, "the superseded version must be retired")
		}
	}
}

func TestIntakeRejectsMalformedUpload(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Intake(context.Background(), "moose.zip", nil, "", "SIMS")
	assert.Error(t, err)
}

func TestPipelineHappyPath(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	seedStylesheets(t, f.objects)

	styleID, err := f.schemas.SaveDefinition(ctx, "1.0.0", validation.DefaultDefinition())
	require.NoError(t, err)

	intake, err := f.service.Intake(ctx, "moose.zip", sampleArchive(t), "", "SIMS")
	require.NoError(t, err)
	subID := intake.SubmissionID

	report, err := f.service.Validate(ctx, subID, styleID)
	require.NoError(t, err)
	require.True(t, report.Valid)

	scrape, err := f.service.ScrapeOccurrences(ctx, subID)
	require.NoError(t, err)
	require.Equal(t, occurrence.ScrapeSucceeded, scrape.State)

	rows, err := f.occurrences.ListOccurrencesBySubmissionID(ctx, subID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alces alces", rows[0].TaxonID)
	assert.Equal(t, "Moose", rows[0].VernacularName)
	assert.Equal(t, "2020-01-01", rows[0].EventDate)
	require.NotNil(t, rows[0].Latitude)
	assert.InDelta(t, 55.15, *rows[0].Latitude, 0.5)

	secure, err := f.service.Secure(ctx, subID)
	require.NoError(t, err)
	assert.False(t, secure.Secure)

	normalized, err := f.service.Normalize(ctx, subID)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(normalized), &doc))
	emlDoc, ok := doc["eml"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Moose Survey", emlDoc["title"])
	assert.Contains(t, doc, "worksheets")

	history, err := f.service.StatusHistory(ctx, subID)
	require.NoError(t, err)
	var statuses []submission.StatusType
	for _, s := range history {
		statuses = append(statuses, s.StatusType)
	}
	assert.Equal(t, []submission.StatusType{
		submission.StatusSubmitted,
		submission.StatusDarwinCoreValidated,
		submission.StatusSecured,
		submission.StatusSubmissionDataIngested,
		submission.StatusPublished,
	}, statuses)

	queue, err := f.service.JobQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue, "a published submission has no pending step")
}

func TestValidateRejectionEndsThePipeline(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	styleID, err := f.schemas.SaveDefinition(ctx, "1.0.0", validation.DefaultDefinition())
	require.NoError(t, err)

	broken := zipBytes(t, map[string]string{
		"event.csv": "id,eventDate\ne1,2020-01-01\n",
		"eml.xml":   "<eml:eml/>",
	})

	intake, err := f.service.Intake(ctx, "broken.zip", broken, "", "SIMS")
	require.NoError(t, err)

	report, err := f.service.Validate(ctx, intake.SubmissionID, styleID)
	require.NoError(t, err)
	require.False(t, report.Valid)

	latest, err := f.submissions.GetLatestStatus(ctx, intake.SubmissionID)
	require.NoError(t, err)
	require.Equal(t, submission.StatusRejected, latest.StatusType)

	_, err = f.service.Secure(ctx, intake.SubmissionID)
	assert.Error(t, err, "a rejected submission must not advance")
}

func TestArtifactsInheritClassification(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	styleID, err := f.schemas.SaveDefinition(ctx, "1.0.0", validation.DefaultDefinition())
	require.NoError(t, err)

	secretive := zipBytes(t, map[string]string{
		"event.csv":      "id,eventDate\no1,2020-01-01\n",
		"occurrence.csv": "id,taxonID\no1,Accipiter gentilis\n",
		"eml.xml":        "<eml:eml/>",
	})

	intake, err := f.service.Intake(ctx, "goshawk.zip", secretive, "", "SIMS")
	require.NoError(t, err)
	subID := intake.SubmissionID

	artifact, err := f.service.IntakeArtifact(ctx, subID, "survey-report.pdf", "Report", []byte("pdf bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.UUID)
	assert.Nil(t, artifact.Secure, "classification has not run yet")

	stored, _, err := f.objects.GetObject(ctx, artifact.Key)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(stored))

	_, err = f.service.Validate(ctx, subID, styleID)
	require.NoError(t, err)
	_, err = f.service.ScrapeOccurrences(ctx, subID)
	require.NoError(t, err)

	secure, err := f.service.Secure(ctx, subID)
	require.NoError(t, err)
	require.True(t, secure.Secure)

	hidden, err := f.service.ListArtifacts(ctx, subID, "anonymous", false)
	require.NoError(t, err)
	assert.Empty(t, hidden, "secure artifacts are invisible to regular callers")

	asAdmin, err := f.service.ListArtifacts(ctx, subID, "admin-1", true)
	require.NoError(t, err)
	require.Len(t, asAdmin, 1)
	require.NotNil(t, asAdmin[0].Secure)
	assert.True(t, *asAdmin[0].Secure)

	asService, err := f.service.ListArtifacts(ctx, subID, "sims-svc", false)
	require.NoError(t, err)
	assert.Len(t, asService, 1)
}

func TestIntakeArtifactUnknownSubmission(t *testing.T) {
	f := setupService(t)

	_, err := f.service.IntakeArtifact(context.Background(), 404, "report.pdf", "Report", []byte("x"))
	assert.Error(t, err)
}

func TestIntakeBlocksInfectedUpload(t *testing.T) {
	f := setupService(t)

	infected := stubScanner{signature: "Eicar-Test-Signature"}
	cfg := &config.Config{StorageKeyPrefix: "biohub"}
	service := pipeline.NewService(cfg, f.submissions, submission.NewStateMachine(f.submissions),
		f.occurrences, occurrence.NewScraper(f.occurrences), nil, nil, nil,
		search.NewIndexer(search.Config{}), f.objects, infected, nil, nil)

	_, err := service.Intake(context.Background(), "moose.zip", sampleArchive(t), "", "SIMS")
	require.ErrorIs(t, err, pipeline.ErrVirusDetected)

	subs, err := service.JobQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs, "an infected upload must not create pipeline state")
}

type stubScanner struct {
	clean     bool
	signature string
}

func (s stubScanner) Scan(_ context.Context, _ string, _ []byte) (scan.Result, error) {
	return scan.Result{Clean: s.clean, Signature: s.signature}, nil
}
