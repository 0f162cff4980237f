package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fines-service/internal/domain/fine"
)

type FineRepository struct {
	db *gorm.DB
}

func NewFineRepository(db *gorm.DB) *FineRepository {
	return &FineRepository{db: db}
}

// FineRow is the persisted shape of one normalized fine record.
type FineRow struct {
	ID                 int64  `gorm:"primaryKey"`
	PrescriptionNumber string `gorm:"not null;uniqueIndex"`

	LicensePlate       string `gorm:"not null;index"`
	VehicleCertificate *string
	VehicleMakeModel   *string
	VehicleColor       *string

	ViolationDatetime    time.Time `gorm:"not null;index"`
	ViolationLocation    *string
	ViolationDescription *string
	DetectedSpeed        *float64
	AllowedSpeed         *float64
	SpeedWithMargin      *float64

	DeviceName            *string
	DeviceSerial          *string
	CertificateNumber     *string
	CertificateDate       *time.Time
	CertificateValidUntil *time.Time

	FineAmount           float64 `gorm:"not null"`
	DiscountedAmount     float64 `gorm:"not null"`
	DiscountDeadlineDays int     `gorm:"not null;default:7"`

	OwnerName    *string
	OwnerBIN     *string
	OwnerAddress *string

	IssuingDepartment *string
	IssuingOfficer    *string
	ArticleCode       *string

	DocumentReference string
	RawListing        datatypes.JSON

	CreatedAt time.Time
	IsPaid    bool `gorm:"not null;default:false"`
}

func (FineRow) TableName() string {
	return "traffic_fines"
}

// GetByPrescriptionNumber returns nil without error when no record exists;
// duplicate detection is a normal outcome, not a failure.
func (r *FineRepository) GetByPrescriptionNumber(ctx context.Context, number string) (*fine.Fine, error) {
	var row FineRow
	err := r.db.WithContext(ctx).Where("prescription_number = ?", number).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f := fromRow(&row)
	return f, nil
}

func (r *FineRepository) GetByID(ctx context.Context, id int64) (*fine.Fine, error) {
	var row FineRow
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row), nil
}

// Create persists a single record. A record with the same prescription
// number already present makes the call a no-op: the existing record is
// returned and created reports false.
func (r *FineRepository) Create(ctx context.Context, f *fine.Fine) (created bool, err error) {
	existing, err := r.GetByPrescriptionNumber(ctx, f.PrescriptionNumber)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*f = *existing
		return false, nil
	}

	row := toRow(f)
	row.CreatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return false, err
	}

	f.ID = row.ID
	f.CreatedAt = row.CreatedAt
	return true, nil
}

// CreateBatch writes every record in one transaction. Either the whole batch
// becomes visible or none of it does; callers rely on this for the
// zero-partial-effects guarantee of a failed ingestion page.
func (r *FineRepository) CreateBatch(ctx context.Context, fines []*fine.Fine) ([]int64, error) {
	ids := make([]int64, 0, len(fines))
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range fines {
			row := toRow(f)
			row.CreatedAt = now
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			f.ID = row.ID
			f.CreatedAt = row.CreatedAt
			ids = append(ids, row.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListFilter narrows List; nil fields are not applied.
type ListFilter struct {
	LicensePlate *string
	DateFrom     *time.Time
	DateTo       *time.Time
	IsPaid       *bool
	DiscountOnly bool
	Offset       int
	Limit        int
}

func (r *FineRepository) List(ctx context.Context, filter ListFilter) ([]fine.Fine, int64, error) {
	query := r.db.WithContext(ctx).Model(&FineRow{})

	if filter.LicensePlate != nil {
		query = query.Where("license_plate = ?", *filter.LicensePlate)
	}
	if filter.DateFrom != nil {
		query = query.Where("violation_datetime >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("violation_datetime <= ?", *filter.DateTo)
	}
	if filter.IsPaid != nil {
		query = query.Where("is_paid = ?", *filter.IsPaid)
	}
	if filter.DiscountOnly {
		cutoff := time.Now().UTC().AddDate(0, 0, -fine.DefaultDiscountDeadlineDays)
		query = query.Where("violation_datetime >= ?", cutoff).Where("is_paid = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("violation_datetime DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []FineRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	fines := make([]fine.Fine, 0, len(rows))
	for i := range rows {
		fines = append(fines, *fromRow(&rows[i]))
	}
	return fines, total, nil
}

// MarkPaid performs the unpaid -> paid transition, the only mutation a
// record sees after creation. Returns nil when no record has the id.
func (r *FineRepository) MarkPaid(ctx context.Context, id int64) (*fine.Fine, error) {
	var row FineRow
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !row.IsPaid {
		if err := r.db.WithContext(ctx).Model(&row).Update("is_paid", true).Error; err != nil {
			return nil, err
		}
		row.IsPaid = true
	}
	return fromRow(&row), nil
}

func toRow(f *fine.Fine) *FineRow {
	return &FineRow{
		ID:                    f.ID,
		PrescriptionNumber:    f.PrescriptionNumber,
		LicensePlate:          f.LicensePlate,
		VehicleCertificate:    f.VehicleCertificate,
		VehicleMakeModel:      f.VehicleMakeModel,
		VehicleColor:          f.VehicleColor,
		ViolationDatetime:     f.ViolationDatetime,
		ViolationLocation:     f.ViolationLocation,
		ViolationDescription:  f.ViolationDescription,
		DetectedSpeed:         f.DetectedSpeed,
		AllowedSpeed:          f.AllowedSpeed,
		SpeedWithMargin:       f.SpeedWithMargin,
		DeviceName:            f.DeviceName,
		DeviceSerial:          f.DeviceSerial,
		CertificateNumber:     f.CertificateNumber,
		CertificateDate:       f.CertificateDate,
		CertificateValidUntil: f.CertificateValidUntil,
		FineAmount:            f.FineAmount,
		DiscountedAmount:      f.DiscountedAmount,
		DiscountDeadlineDays:  f.DiscountDeadlineDays,
		OwnerName:             f.OwnerName,
		OwnerBIN:              f.OwnerBIN,
		OwnerAddress:          f.OwnerAddress,
		IssuingDepartment:     f.IssuingDepartment,
		IssuingOfficer:        f.IssuingOfficer,
		ArticleCode:           f.ArticleCode,
		DocumentReference:     f.DocumentReference,
		RawListing:            f.RawListing,
		CreatedAt:             f.CreatedAt,
		IsPaid:                f.IsPaid,
	}
}

func fromRow(row *FineRow) *fine.Fine {
	return &fine.Fine{
		ID:                    row.ID,
		PrescriptionNumber:    row.PrescriptionNumber,
		LicensePlate:          row.LicensePlate,
		VehicleCertificate:    row.VehicleCertificate,
		VehicleMakeModel:      row.VehicleMakeModel,
		VehicleColor:          row.VehicleColor,
		ViolationDatetime:     row.ViolationDatetime,
		ViolationLocation:     row.ViolationLocation,
		ViolationDescription:  row.ViolationDescription,
		DetectedSpeed:         row.DetectedSpeed,
		AllowedSpeed:          row.AllowedSpeed,
		SpeedWithMargin:       row.SpeedWithMargin,
		DeviceName:            row.DeviceName,
		DeviceSerial:          row.DeviceSerial,
		CertificateNumber:     row.CertificateNumber,
		CertificateDate:       row.CertificateDate,
		CertificateValidUntil: row.CertificateValidUntil,
		FineAmount:            row.FineAmount,
		DiscountedAmount:      row.DiscountedAmount,
		DiscountDeadlineDays:  row.DiscountDeadlineDays,
		OwnerName:             row.OwnerName,
		OwnerBIN:              row.OwnerBIN,
		OwnerAddress:          row.OwnerAddress,
		IssuingDepartment:     row.IssuingDepartment,
		IssuingOfficer:        row.IssuingOfficer,
		ArticleCode:           row.ArticleCode,
		DocumentReference:     row.DocumentReference,
		RawListing:            row.RawListing,
		CreatedAt:             row.CreatedAt,
		IsPaid:                row.IsPaid,
	}
}
