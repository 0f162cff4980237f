package fine

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultDiscountDeadlineDays is the statutory window during which a fine
// can be paid at the reduced amount.
const DefaultDiscountDeadlineDays = 7

// Fine is the canonical, normalized record of one traffic violation.
// PrescriptionNumber is the natural key: exactly 15 digits, unique,
// immutable once created.
type Fine struct {
	ID                 int64  `json:"id"`
	PrescriptionNumber string `json:"prescription_number"`

	LicensePlate       string  `json:"license_plate"`
	VehicleCertificate *string `json:"vehicle_certificate,omitempty"`
	VehicleMakeModel   *string `json:"vehicle_make_model,omitempty"`
	VehicleColor       *string `json:"vehicle_color,omitempty"`

	ViolationDatetime    time.Time `json:"violation_datetime"`
	ViolationLocation    *string   `json:"violation_location,omitempty"`
	ViolationDescription *string   `json:"violation_description,omitempty"`
	DetectedSpeed        *float64  `json:"detected_speed,omitempty"`
	AllowedSpeed         *float64  `json:"allowed_speed,omitempty"`
	SpeedWithMargin      *float64  `json:"speed_with_margin,omitempty"`

	DeviceName            *string    `json:"device_name,omitempty"`
	DeviceSerial          *string    `json:"device_serial,omitempty"`
	CertificateNumber     *string    `json:"certificate_number,omitempty"`
	CertificateDate       *time.Time `json:"certificate_date,omitempty"`
	CertificateValidUntil *time.Time `json:"certificate_valid_until,omitempty"`

	FineAmount           float64 `json:"fine_amount"`
	DiscountedAmount     float64 `json:"discounted_amount"`
	DiscountDeadlineDays int     `json:"discount_deadline_days"`

	OwnerName    *string `json:"owner_name,omitempty"`
	OwnerBIN     *string `json:"owner_bin,omitempty"`
	OwnerAddress *string `json:"owner_address,omitempty"`

	IssuingDepartment *string `json:"issuing_department,omitempty"`
	IssuingOfficer    *string `json:"issuing_officer,omitempty"`
	ArticleCode       *string `json:"article_code,omitempty"`

	DocumentReference string         `json:"document_reference,omitempty"`
	RawListing        datatypes.JSON `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	IsPaid    bool      `json:"is_paid"`
}

// DiscountAvailable reports whether the reduced amount can still be paid at
// the given moment. Both timestamps are moved to UTC before subtraction so a
// zone-less violation time compares correctly.
func (f *Fine) DiscountAvailable(now time.Time) bool {
	if f.ViolationDatetime.IsZero() {
		return false
	}
	elapsed := daysBetween(f.ViolationDatetime, now)
	return elapsed <= f.deadlineDays()
}

// DaysRemainingForDiscount returns how many whole days of the discount
// window are left, never negative.
func (f *Fine) DaysRemainingForDiscount(now time.Time) int {
	if f.ViolationDatetime.IsZero() {
		return 0
	}
	remaining := f.deadlineDays() - daysBetween(f.ViolationDatetime, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (f *Fine) deadlineDays() int {
	if f.DiscountDeadlineDays > 0 {
		return f.DiscountDeadlineDays
	}
	return DefaultDiscountDeadlineDays
}

func daysBetween(from, to time.Time) int {
	return int(to.UTC().Sub(from.UTC()).Hours() / 24)
}

// ExtractedFields is the sparse output of the document extraction engine.
// A nil field means "not found in this document", never an error.
type ExtractedFields struct {
	PrescriptionNumber *string
	LicensePlate       *string
	VehicleCertificate *string
	VehicleMakeModel   *string
	VehicleColor       *string

	ViolationDatetime    *time.Time
	ViolationLocation    *string
	ViolationDescription *string
	DetectedSpeed        *float64
	AllowedSpeed         *float64
	SpeedWithMargin      *float64

	FineAmount       *float64
	DiscountedAmount *float64

	DeviceName            *string
	DeviceSerial          *string
	CertificateNumber     *string
	CertificateDate       *time.Time
	CertificateValidUntil *time.Time

	OwnerName    *string
	OwnerBIN     *string
	OwnerAddress *string

	IssuingDepartment *string
	IssuingOfficer    *string
	ArticleCode       *string
}
