package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fines-service/internal/domain/fine"
	"fines-service/internal/erap"
	"fines-service/internal/extract"
	"fines-service/internal/repository"
	"fines-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrValidation means a record failed a required-field invariant and was
	// dropped before persist.
	ErrValidation = errors.New("record validation failed")
)

var prescriptionNumberRe = regexp.MustCompile(`^\d{15}$`)

// ListingFetcher retrieves one page of violation summaries.
type ListingFetcher interface {
	FetchListing(ctx context.Context, plate, techPassport string, page, limit int) ([]erap.ListingEntry, error)
}

// DocumentAcquirer downloads, stores and decodes violation documents.
type DocumentAcquirer interface {
	Acquire(ctx context.Context, rid, caseNumber string) (path string, data []byte, err error)
	StoreUpload(data []byte) (string, error)
	ReadText(data []byte) (string, error)
}

type FineService struct {
	repo     *repository.FineRepository
	fetcher  ListingFetcher
	acquirer DocumentAcquirer
	pageSize int
	log      zerolog.Logger
}

func NewFineService(repo *repository.FineRepository, fetcher ListingFetcher, acquirer DocumentAcquirer, pageSize int, log zerolog.Logger) *FineService {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &FineService{
		repo:     repo,
		fetcher:  fetcher,
		acquirer: acquirer,
		pageSize: pageSize,
		log:      log,
	}
}

// IngestResult summarizes one listing ingestion batch.
type IngestResult struct {
	Listed     int     `json:"listed"`
	Created    int     `json:"created_count"`
	CreatedIDs []int64 `json:"created_ids"`
	Skipped    int     `json:"skipped"`
}

// IngestFromListing pulls the first listing page for a vehicle and persists
// every violation not yet known, one record per prescription number.
//
// Entries are processed sequentially. Per-entry failures (document download,
// unreadable document, validation) are soft: the entry is logged and
// skipped. Validated records are buffered and written in a single store
// transaction after the page completes, so a store failure leaves zero
// partial effects and can never roll back previously committed batches.
func (s *FineService) IngestFromListing(ctx context.Context, plate, techPassport string) (*IngestResult, error) {
	if strings.TrimSpace(plate) == "" {
		return nil, fmt.Errorf("%w: plate_number is required", ErrInvalidInput)
	}
	if strings.TrimSpace(techPassport) == "" {
		return nil, fmt.Errorf("%w: tech_passport is required", ErrInvalidInput)
	}

	entries, err := s.fetcher.FetchListing(ctx, plate, techPassport, 1, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	// The listing service does not echo the queried plate on each line item;
	// the caller-supplied value is authoritative.
	normalizedPlate := utils.NormalizePlate(plate)

	result := &IngestResult{Listed: len(entries), CreatedIDs: []int64{}}
	var pending []*fine.Fine
	seen := make(map[string]bool)

	for _, entry := range entries {
		caseNumber := entry.CaseNumber
		if seen[caseNumber] {
			result.Skipped++
			continue
		}
		seen[caseNumber] = true

		existing, err := s.repo.GetByPrescriptionNumber(ctx, caseNumber)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup for %s: %w", caseNumber, err)
		}
		if existing != nil {
			s.log.Debug().Str("prescription_number", caseNumber).Msg("fine already exists, skipping")
			result.Skipped++
			continue
		}

		path, data, err := s.acquirer.Acquire(ctx, entry.RID, caseNumber)
		if err != nil {
			s.log.Error().Err(err).Str("prescription_number", caseNumber).
				Msg("document acquisition failed, skipping entry")
			result.Skipped++
			continue
		}

		text, err := s.acquirer.ReadText(data)
		if err != nil {
			s.log.Error().Err(err).Str("prescription_number", caseNumber).
				Msg("document unreadable, skipping entry")
			result.Skipped++
			continue
		}

		fields := extract.Extract(text)

		rec, err := s.buildRecord(entry, fields, path)
		if err != nil {
			s.log.Warn().Err(err).Str("prescription_number", caseNumber).
				Msg("record dropped before persist")
			result.Skipped++
			continue
		}
		rec.LicensePlate = normalizedPlate
		pending = append(pending, rec)
	}

	if len(pending) > 0 {
		ids, err := s.repo.CreateBatch(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("persist batch: %w", err)
		}
		result.CreatedIDs = ids
		result.Created = len(ids)
	}

	s.log.Info().
		Int("listed", result.Listed).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Str("plate", normalizedPlate).
		Msg("listing ingestion finished")

	return result, nil
}

// buildRecord layers extracted document fields over listing-derived
// defaults. Extraction takes precedence wherever it produced a value; the
// listing seeds identity, timestamp, amount, description, department and
// payment status.
func (s *FineService) buildRecord(entry erap.ListingEntry, fields fine.ExtractedFields, documentPath string) (*fine.Fine, error) {
	if !prescriptionNumberRe.MatchString(entry.CaseNumber) {
		return nil, fmt.Errorf("%w: case number %q is not a 15-digit prescription number", ErrValidation, entry.CaseNumber)
	}

	rec := &fine.Fine{
		PrescriptionNumber:   entry.CaseNumber,
		DiscountDeadlineDays: fine.DefaultDiscountDeadlineDays,
		DocumentReference:    documentPath,
	}

	rec.ViolationDatetime = coalesceTime(fields.ViolationDatetime, parseListingDate(entry.CommitDate))
	if rec.ViolationDatetime.IsZero() {
		return nil, fmt.Errorf("%w: violation datetime missing from both listing and document", ErrValidation)
	}

	rec.FineAmount = coalesceFloat(fields.FineAmount, parsePenaltySize(entry.PenaltySize))
	if rec.FineAmount <= 0 {
		return nil, fmt.Errorf("%w: no positive fine amount in listing or document", ErrValidation)
	}

	if fields.DiscountedAmount != nil && *fields.DiscountedAmount > 0 {
		rec.DiscountedAmount = *fields.DiscountedAmount
	} else {
		rec.DiscountedAmount = rec.FineAmount * 0.5
	}

	rec.ViolationDescription = coalesceString(fields.ViolationDescription, entry.PenaltyMeasure.NameRu)
	rec.IssuingDepartment = coalesceString(fields.IssuingDepartment, entry.Organ.NameRu)
	if rec.IssuingDepartment == nil {
		dept := extract.DefaultIssuingDepartment
		rec.IssuingDepartment = &dept
	}

	status := fine.ParsePaymentStatus(entry.Status)
	if status == fine.PaymentUnknown && entry.Status != "" {
		s.log.Warn().Str("status", entry.Status).Str("prescription_number", entry.CaseNumber).
			Msg("unrecognized payment status label, treating as unknown")
	}
	rec.IsPaid = status == fine.PaymentPaid

	copyExtracted(rec, fields)

	if raw, err := json.Marshal(entry); err == nil {
		rec.RawListing = raw
	}

	return rec, nil
}

// IngestFromDocument creates one record from an uploaded notice. A document
// whose prescription number is already known is not re-persisted; the
// existing record is returned with created=false.
func (s *FineService) IngestFromDocument(ctx context.Context, data []byte) (*fine.Fine, bool, error) {
	text, err := s.acquirer.ReadText(data)
	if err != nil {
		return nil, false, err
	}

	fields := extract.Extract(text)
	if fields.PrescriptionNumber == nil || !prescriptionNumberRe.MatchString(*fields.PrescriptionNumber) {
		return nil, false, fmt.Errorf("%w: document carries no 15-digit prescription number", ErrValidation)
	}
	if fields.ViolationDatetime == nil {
		return nil, false, fmt.Errorf("%w: document carries no violation datetime", ErrValidation)
	}
	if fields.FineAmount == nil || *fields.FineAmount <= 0 {
		return nil, false, fmt.Errorf("%w: document carries no positive fine amount", ErrValidation)
	}

	existing, err := s.repo.GetByPrescriptionNumber(ctx, *fields.PrescriptionNumber)
	if err != nil {
		return nil, false, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		s.log.Warn().Str("prescription_number", existing.PrescriptionNumber).
			Msg("duplicate document upload")
		return existing, false, nil
	}

	path, err := s.acquirer.StoreUpload(data)
	if err != nil {
		return nil, false, fmt.Errorf("store upload: %w", err)
	}

	rec := &fine.Fine{
		PrescriptionNumber:   *fields.PrescriptionNumber,
		ViolationDatetime:    *fields.ViolationDatetime,
		FineAmount:           *fields.FineAmount,
		DiscountDeadlineDays: fine.DefaultDiscountDeadlineDays,
		DocumentReference:    path,
	}
	if fields.LicensePlate != nil {
		rec.LicensePlate = utils.NormalizePlate(*fields.LicensePlate)
	}
	if fields.DiscountedAmount != nil && *fields.DiscountedAmount > 0 {
		rec.DiscountedAmount = *fields.DiscountedAmount
	} else {
		rec.DiscountedAmount = rec.FineAmount * 0.5
	}
	rec.ViolationDescription = fields.ViolationDescription
	rec.IssuingDepartment = fields.IssuingDepartment
	if rec.IssuingDepartment == nil {
		dept := extract.DefaultIssuingDepartment
		rec.IssuingDepartment = &dept
	}
	copyExtracted(rec, fields)

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("persist fine: %w", err)
	}

	s.log.Info().
		Int64("fine_id", rec.ID).
		Str("prescription_number", rec.PrescriptionNumber).
		Bool("created", created).
		Msg("document ingested")

	return rec, created, nil
}

func (s *FineService) GetFine(ctx context.Context, id int64) (*fine.Fine, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load fine: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: fine %d", ErrNotFound, id)
	}
	return f, nil
}

func (s *FineService) MarkPaid(ctx context.Context, id int64) (*fine.Fine, error) {
	f, err := s.repo.MarkPaid(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: fine %d", ErrNotFound, id)
	}
	s.log.Info().Int64("fine_id", id).Msg("fine marked as paid")
	return f, nil
}

func (s *FineService) ListFines(ctx context.Context, filter repository.ListFilter) ([]fine.Fine, int64, error) {
	if filter.LicensePlate != nil {
		normalized := utils.NormalizePlate(*filter.LicensePlate)
		filter.LicensePlate = &normalized
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	fines, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list fines: %w", err)
	}
	return fines, total, nil
}

// copyExtracted moves the document-only facts onto the record; these have no
// listing counterpart, so presence always wins.
func copyExtracted(rec *fine.Fine, fields fine.ExtractedFields) {
	rec.VehicleCertificate = fields.VehicleCertificate
	rec.VehicleMakeModel = fields.VehicleMakeModel
	rec.VehicleColor = fields.VehicleColor
	rec.ViolationLocation = fields.ViolationLocation
	rec.DetectedSpeed = fields.DetectedSpeed
	rec.AllowedSpeed = fields.AllowedSpeed
	rec.SpeedWithMargin = fields.SpeedWithMargin
	rec.DeviceName = fields.DeviceName
	rec.DeviceSerial = fields.DeviceSerial
	rec.CertificateNumber = fields.CertificateNumber
	rec.CertificateDate = fields.CertificateDate
	rec.CertificateValidUntil = fields.CertificateValidUntil
	rec.OwnerName = fields.OwnerName
	rec.OwnerBIN = fields.OwnerBIN
	rec.OwnerAddress = fields.OwnerAddress
	rec.IssuingOfficer = fields.IssuingOfficer
	rec.ArticleCode = fields.ArticleCode
}

// parseListingDate reads the ISO 8601 Z-suffixed timestamps eRAP emits.
func parseListingDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parsePenaltySize reads the listing's numeric-or-placeholder amount string;
// "-" and "" mean the listing carries no amount.
func parsePenaltySize(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func coalesceTime(extracted *time.Time, listing time.Time) time.Time {
	if extracted != nil {
		return *extracted
	}
	return listing
}

func coalesceFloat(extracted *float64, listing float64) float64 {
	if extracted != nil {
		return *extracted
	}
	return listing
}

func coalesceString(extracted *string, listing string) *string {
	if extracted != nil && *extracted != "" {
		return extracted
	}
	if listing != "" {
		return &listing
	}
	return nil
}
