// Package pipeline drives a submission through intake, validation,
// security classification, normalization and occurrence scraping. Each
// inbound request runs one sequential pipeline step; there is no
// internal worker pool.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/biohubbc/biohub-platform/pkg/common/config"
	apperrors "github.com/biohubbc/biohub-platform/pkg/common/errors"
	"github.com/biohubbc/biohub-platform/pkg/common/kafka"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/dwca"
	"github.com/biohubbc/biohub-platform/pkg/eml"
	"github.com/biohubbc/biohub-platform/pkg/media"
	"github.com/biohubbc/biohub-platform/pkg/occurrence"
	"github.com/biohubbc/biohub-platform/pkg/scan"
	"github.com/biohubbc/biohub-platform/pkg/search"
	"github.com/biohubbc/biohub-platform/pkg/security"
	"github.com/biohubbc/biohub-platform/pkg/storage"
	"github.com/biohubbc/biohub-platform/pkg/submission"
	"github.com/biohubbc/biohub-platform/pkg/validation"
	"github.com/google/uuid"
)

// ErrVirusDetected aborts intake before any pipeline state is created.
var ErrVirusDetected = errors.New("uploaded file failed virus scan")

const stylesheetName = "eml"

type IntakeResult struct {
	PackageID    string `json:"data_package_id"`
	SubmissionID uint   `json:"submission_id"`
}

type SecureResult struct {
	Secure bool `json:"secure"`
}

type Service struct {
	cfg            *config.Config
	submissions    *submission.Repository
	states         *submission.StateMachine
	occurrences    *occurrence.Repository
	scraper        *occurrence.Scraper
	validator      *validation.Engine
	classifier     *security.Classifier
	stylesheets    *eml.StylesheetStore
	indexer        *search.Indexer
	objects        storage.ObjectStore
	scanner        scan.Scanner
	producer       *kafka.Producer
	serviceClients *security.ServiceClientConfig
}

func NewService(
	cfg *config.Config,
	submissions *submission.Repository,
	states *submission.StateMachine,
	occurrences *occurrence.Repository,
	scraper *occurrence.Scraper,
	validator *validation.Engine,
	classifier *security.Classifier,
	stylesheets *eml.StylesheetStore,
	indexer *search.Indexer,
	objects storage.ObjectStore,
	scanner scan.Scanner,
	producer *kafka.Producer,
	serviceClients *security.ServiceClientConfig,
) *Service {
	return &Service{
		cfg:            cfg,
		submissions:    submissions,
		states:         states,
		occurrences:    occurrences,
		scraper:        scraper,
		validator:      validator,
		classifier:     classifier,
		stylesheets:    stylesheets,
		indexer:        indexer,
		objects:        objects,
		scanner:        scanner,
		producer:       producer,
		serviceClients: serviceClients,
	}
}

// Intake accepts an uploaded archive for a package id, retiring any
// prior submission version for the same id. The DB row is created
// before the bytes are durable; the storage key is attached only after
// the upload succeeds, so a failed upload leaves the key null.
func (s *Service) Intake(ctx context.Context, fileName string, data []byte, packageID, source string) (*IntakeResult, error) {
	scanResult, err := s.scanner.Scan(ctx, fileName, data)
	if err != nil {
		return nil, fmt.Errorf("virus scan failed: %w", err)
	}
	if !scanResult.Clean {
		logger.Log.WithFields(map[string]interface{}{
			"file":      fileName,
			"signature": scanResult.Signature,
		}).Warn("rejected infected upload")
		return nil, ErrVirusDetected
	}

	parsed := media.Parse(fileName, data)
	if parsed == nil {
		return nil, apperrors.ErrMalformedMedia
	}
	archive, err := dwca.NewDWCArchive(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMalformedMedia, err)
	}

	if packageID == "" {
		packageID = uuid.New().String()
	}

	sub := &submission.Submission{
		UUID:          packageID,
		Source:        source,
		InputFileName: &fileName,
	}
	if err := s.submissions.InsertSubmissionRecordWithPotentialConflict(ctx, sub); err != nil {
		return nil, err
	}

	key := storage.SubmissionInputKey(s.cfg.StorageKeyPrefix, sub.ID, fileName)
	metadata := storage.Metadata{"filename": fileName, "data_package_id": packageID}
	if err := s.objects.PutObject(ctx, key, data, metadata); err != nil {
		return nil, fmt.Errorf("storing submission input: %w", err)
	}
	if err := s.submissions.UpdateSubmissionRecordInputKey(ctx, sub.ID, key); err != nil {
		return nil, err
	}

	if archive.EML != nil {
		if err := s.submissions.UpdateSubmissionRecordEMLSource(ctx, sub.ID, string(archive.EML)); err != nil {
			return nil, err
		}
	}

	if _, err := s.states.Transition(ctx, sub.ID, submission.StatusSubmitted); err != nil {
		return nil, err
	}

	// a superseded version must not stay searchable while the new one
	// works its way through validation
	if err := s.indexer.Delete(ctx, packageID); err != nil && !errors.Is(err, search.ErrDisabled) {
		logger.Log.WithError(err).WithField("data_package_id", packageID).Warn("failed to remove stale search entry")
	}

	s.notify(ctx, string(submission.StatusSubmitted), sub.ID, packageID)

	return &IntakeResult{PackageID: packageID, SubmissionID: sub.ID}, nil
}

// Validate runs the validation engine for a submission and reports the
// outcome. A failing report is a successful operation.
func (s *Service) Validate(ctx context.Context, submissionID, styleID uint) (*validation.Report, error) {
	report, err := s.validator.Validate(ctx, submissionID, styleID)
	if err != nil {
		return nil, err
	}

	milestone := string(submission.StatusDarwinCoreValidated)
	if !report.Valid {
		milestone = string(submission.StatusRejected)
	}
	s.notifyForSubmission(ctx, milestone, submissionID)

	return report, nil
}

// Secure classifies the submission's content and reports the
// secure/open flag. Artifacts inherit the submission's classification.
func (s *Service) Secure(ctx context.Context, submissionID uint) (*SecureResult, error) {
	classification, err := s.classifier.Classify(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.submissions.ListArtifactsBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	for _, artifact := range artifacts {
		if err := s.submissions.UpdateArtifactSecureFlag(ctx, artifact.ID, classification.Secure); err != nil {
			return nil, err
		}
	}

	s.notifyForSubmission(ctx, string(submission.StatusSecured), submissionID)

	return &SecureResult{Secure: classification.Secure}, nil
}

// Normalize transforms the submission's EML via its compatible
// stylesheet, persists the normalized JSON, and republishes the search
// index entry for the package id (delete first, so a resubmission
// under the same package id never leaves a stale duplicate).
func (s *Service) Normalize(ctx context.Context, submissionID uint) (string, error) {
	sub, err := s.submissions.GetSubmissionRecordBySubmissionID(ctx, submissionID)
	if err != nil {
		return "", err
	}
	if sub.EMLSource == nil || *sub.EMLSource == "" {
		return "", fmt.Errorf("submission %d has no eml source to normalize", submissionID)
	}

	emlXML := []byte(*sub.EMLSource)
	schemaVersion := eml.SchemaVersion(emlXML)

	stylesheet, err := s.stylesheets.ForSchemaVersion(ctx, stylesheetName, schemaVersion)
	if err != nil {
		return "", err
	}

	doc, err := eml.Transform(emlXML, stylesheet)
	if err != nil {
		return "", err
	}

	normalized, err := s.buildNormalizedSource(ctx, sub, doc)
	if err != nil {
		return "", err
	}

	if err := s.submissions.UpdateSubmissionRecordNormalizedSource(ctx, submissionID, normalized); err != nil {
		return "", err
	}

	if _, err := s.states.Transition(ctx, submissionID, submission.StatusSubmissionDataIngested); err != nil {
		return "", err
	}

	// Search index writes are outside the DB transaction boundary and
	// may succeed or fail independently of it.
	if err := s.indexer.Delete(ctx, sub.UUID); err != nil && !errors.Is(err, search.ErrDisabled) {
		return "", err
	}
	if err := s.indexer.Upsert(ctx, sub.UUID, doc); err != nil && !errors.Is(err, search.ErrDisabled) {
		return "", err
	}

	if _, err := s.states.Transition(ctx, submissionID, submission.StatusPublished); err != nil {
		return "", err
	}

	s.notifyForSubmission(ctx, string(submission.StatusPublished), submissionID)

	return string(normalized), nil
}

// ScrapeOccurrences extracts and persists normalized occurrence rows
// from the submission's stored archive. Rows persist independently:
// a partial failure leaves earlier rows committed and is reported in
// the result. A fully failed run rejects the submission.
func (s *Service) ScrapeOccurrences(ctx context.Context, submissionID uint) (*occurrence.ScrapeResult, error) {
	archive, err := s.loadArchive(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	result, err := s.scraper.Scrape(ctx, archive, submissionID)
	if err != nil {
		return nil, err
	}

	if result.State == occurrence.ScrapeFailed {
		messages := make([]submission.Message, 0, len(result.Failures))
		for _, failure := range result.Failures {
			messages = append(messages, submission.Message{
				Type: submission.MessageError,
				Text: fmt.Sprintf("occurrence row %d: %s", failure.Row, failure.Error),
			})
		}
		if _, err := s.states.Transition(ctx, submissionID, submission.StatusRejected, messages...); err != nil {
			return nil, err
		}
		s.notifyForSubmission(ctx, string(submission.StatusRejected), submissionID)
	}

	return result, nil
}

// IntakeArtifact stores a supporting file against an existing
// submission. The artifact gets its own durable UUID; its secure flag
// stays unset until the submission is classified.
func (s *Service) IntakeArtifact(ctx context.Context, submissionID uint, fileName, fileType string, data []byte) (*submission.Artifact, error) {
	scanResult, err := s.scanner.Scan(ctx, fileName, data)
	if err != nil {
		return nil, fmt.Errorf("virus scan failed: %w", err)
	}
	if !scanResult.Clean {
		return nil, ErrVirusDetected
	}

	if _, err := s.submissions.GetSubmissionRecordBySubmissionID(ctx, submissionID); err != nil {
		return nil, err
	}

	artifactUUID := uuid.New().String()
	key := storage.ArtifactKey(s.cfg.StorageKeyPrefix, submissionID, artifactUUID, fileName)
	if err := s.objects.PutObject(ctx, key, data, storage.Metadata{"filename": fileName}); err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}

	artifact := &submission.Artifact{
		SubmissionID: submissionID,
		UUID:         artifactUUID,
		Key:          key,
		FileName:     fileName,
		FileType:     fileType,
	}
	if err := s.submissions.InsertArtifactRecord(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// ListArtifacts returns the submission's artifacts the caller may see.
// An artifact with no classification yet is treated as secure.
func (s *Service) ListArtifacts(ctx context.Context, submissionID uint, callerID string, isAdmin bool) ([]submission.Artifact, error) {
	artifacts, err := s.submissions.ListArtifactsBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	visible := make([]submission.Artifact, 0, len(artifacts))
	for _, artifact := range artifacts {
		secure := artifact.Secure == nil || *artifact.Secure
		if security.CanAccess(secure, isAdmin, callerID, s.serviceClients) {
			visible = append(visible, artifact)
		}
	}
	return visible, nil
}

// JobQueue lists submissions with a pending ingestion step, for
// manually polled downstream processing.
func (s *Service) JobQueue(ctx context.Context) ([]submission.Submission, error) {
	return s.submissions.GetSubmissionJobQueue(ctx)
}

// StatusHistory returns the append-only status log for a submission.
func (s *Service) StatusHistory(ctx context.Context, submissionID uint) ([]submission.SubmissionStatus, error) {
	return s.submissions.ListStatusHistory(ctx, submissionID)
}

func (s *Service) loadArchive(ctx context.Context, submissionID uint) (*dwca.DWCArchive, error) {
	sub, err := s.submissions.GetSubmissionRecordBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.InputKey == nil {
		return nil, fmt.Errorf("submission %d has no stored input", submissionID)
	}

	data, _, err := s.objects.GetObject(ctx, *sub.InputKey)
	if err != nil {
		return nil, fmt.Errorf("fetching submission input %q: %w", *sub.InputKey, err)
	}

	fileName := ""
	if sub.InputFileName != nil {
		fileName = *sub.InputFileName
	}

	parsed := media.Parse(fileName, data)
	if parsed == nil {
		return nil, apperrors.ErrMalformedMedia
	}
	return dwca.NewDWCArchive(parsed)
}

// buildNormalizedSource combines the transformed EML document with a
// full dump of the archive's worksheets into the normalized JSON
// representation stored on the submission row.
func (s *Service) buildNormalizedSource(ctx context.Context, sub *submission.Submission, emlDoc map[string]interface{}) ([]byte, error) {
	normalized := map[string]interface{}{
		"eml": emlDoc,
	}

	archive, err := s.loadArchive(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	worksheets := make(map[string]interface{})
	for role, ws := range archive.Worksheets() {
		headers, err := ws.Headers()
		if err != nil {
			return nil, err
		}
		rows, err := ws.Rows()
		if err != nil {
			return nil, err
		}

		records := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			record := make(map[string]string, len(headers))
			for i, header := range headers {
				record[header] = dwca.Cell(row, i)
			}
			records = append(records, record)
		}
		worksheets[role] = records
	}
	normalized["worksheets"] = worksheets

	return json.Marshal(normalized)
}

func (s *Service) notifyForSubmission(ctx context.Context, milestone string, submissionID uint) {
	sub, err := s.submissions.GetSubmissionRecordBySubmissionID(ctx, submissionID)
	if err != nil {
		logger.Log.WithError(err).Warn("skipping milestone notification, submission lookup failed")
		return
	}
	s.notify(ctx, milestone, submissionID, sub.UUID)
}

// notify publishes a status milestone event. Delivery is fire and
// forget: a broker failure is logged and never fails the pipeline.
func (s *Service) notify(ctx context.Context, milestone string, submissionID uint, packageID string) {
	if s.producer == nil {
		return
	}
	data := map[string]interface{}{
		"submission_id":   submissionID,
		"data_package_id": packageID,
		"milestone":       milestone,
	}
	if err := s.producer.PublishEvent(ctx, "submission-milestone", "biohub-pipeline", data); err != nil {
		logger.Log.WithError(err).WithField("submission_id", submissionID).Warn("failed to publish milestone event")
	}
}
