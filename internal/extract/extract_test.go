package extract

import (
	"testing"
	"time"
)

const fullNotice = `ДЕПАРТАМЕНТ ПОЛИЦИИ АЛМАТИНСКОЙ ОБЛАСТИ
ПРЕДПИСАНИЕ о необходимости уплаты штрафа № 123456789012345
Госномер: A123BC02
№ СРТС: AB12345678
Марка, модель: TOYOTA CAMRY
Цвет: белый
Дата, время совершения: 15.01.2024 14:30
Место совершения: трасса Алматы - Талдыкорган, 45 км
Сущность правонарушения: превышение установленной скорости движения
на величину более двадцати километров в час

зафиксированная скорость - 112,4 км/ч
разрешенная скорость - 90 км/ч
скорость, исключающая погрешность - 110,4 км/ч
предусмотренного статьей 592 частью 1 КоАП
Сумма наложенного штрафа: 85500 тенге
при оплате в семидневный срок ( 42750 ) тенге
Прибор: SUNQAR
Серийный номер: SQ-2023-0815
Номер сертификата: KZ-7-2023-1234
Дата поверки: 10.06.2023
действительна до: 10.06.2025
Наименование юридического лица: ТОО Жетысу Транс
ИИН/БИН: 123456789012
Адрес: г. Алматы, ул. Абая 10
постановление подписал: ИВАНОВ ИВАН, майор полиции
`

func TestExtractFullNotice(t *testing.T) {
	got := Extract(fullNotice)

	wantStr := func(name string, ptr *string, want string) {
		t.Helper()
		if ptr == nil {
			t.Fatalf("%s not extracted", name)
		}
		if *ptr != want {
			t.Fatalf("%s = %q, want %q", name, *ptr, want)
		}
	}
	wantFloat := func(name string, ptr *float64, want float64) {
		t.Helper()
		if ptr == nil {
			t.Fatalf("%s not extracted", name)
		}
		if *ptr != want {
			t.Fatalf("%s = %v, want %v", name, *ptr, want)
		}
	}

	wantStr("prescription number", got.PrescriptionNumber, "123456789012345")
	wantStr("license plate", got.LicensePlate, "A123BC02")
	wantStr("vehicle certificate", got.VehicleCertificate, "AB12345678")
	wantStr("make/model", got.VehicleMakeModel, "TOYOTA CAMRY")
	wantStr("color", got.VehicleColor, "белый")
	wantStr("location", got.ViolationLocation, "трасса Алматы - Талдыкорган, 45 км")

	if got.ViolationDatetime == nil {
		t.Fatalf("violation datetime not extracted")
	}
	wantTime := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	if !got.ViolationDatetime.Equal(wantTime) {
		t.Fatalf("violation datetime = %v, want %v", got.ViolationDatetime, wantTime)
	}

	wantFloat("detected speed", got.DetectedSpeed, 112.4)
	wantFloat("allowed speed", got.AllowedSpeed, 90)
	wantFloat("speed with margin", got.SpeedWithMargin, 110.4)
	wantFloat("fine amount", got.FineAmount, 85500)
	wantFloat("discounted amount", got.DiscountedAmount, 42750)

	wantStr("device name", got.DeviceName, "SUNQAR")
	wantStr("device serial", got.DeviceSerial, "SQ-2023-0815")
	wantStr("certificate number", got.CertificateNumber, "KZ-7-2023-1234")

	if got.CertificateDate == nil || !got.CertificateDate.Equal(time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("certificate date = %v, want 10.06.2023", got.CertificateDate)
	}
	if got.CertificateValidUntil == nil || !got.CertificateValidUntil.Equal(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("certificate valid until = %v, want 10.06.2025", got.CertificateValidUntil)
	}

	wantStr("owner name", got.OwnerName, "ТОО Жетысу Транс")
	wantStr("owner BIN", got.OwnerBIN, "123456789012")
	wantStr("owner address", got.OwnerAddress, "г. Алматы, ул. Абая 10")
	wantStr("issuing officer", got.IssuingOfficer, "ИВАНОВ ИВАН")
	wantStr("article code", got.ArticleCode, "592.1")
	wantStr("department", got.IssuingDepartment, "ДЕПАРТАМЕНТ ПОЛИЦИИ АЛМАТИНСКОЙ ОБЛАСТИ")

	wantStr("description", got.ViolationDescription,
		"превышение установленной скорости движения\nна величину более двадцати километров в час")
}

func TestExtractKazakhLabels(t *testing.T) {
	text := `ПОЛИЦИЯ ДЕПАРТАМЕНТІНІҢ АЛМАТЫ ОБЛЫСЫ
№ 987654321098765
Мемл. нөмірі: B456DE05
Жасалған күні, уақыты: 01.02.2024 09:15
Салынған айыппұл сомасы: 5000 тенге
Құқық бұзушылық мәні: белгіленген жылдамдықты арттыру
`
	got := Extract(text)

	if got.PrescriptionNumber == nil || *got.PrescriptionNumber != "987654321098765" {
		t.Fatalf("prescription number = %v, want 987654321098765", got.PrescriptionNumber)
	}
	if got.LicensePlate == nil || *got.LicensePlate != "B456DE05" {
		t.Fatalf("license plate = %v, want B456DE05", got.LicensePlate)
	}
	if got.ViolationDatetime == nil || !got.ViolationDatetime.Equal(time.Date(2024, 2, 1, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("violation datetime = %v, want 01.02.2024 09:15", got.ViolationDatetime)
	}
	if got.FineAmount == nil || *got.FineAmount != 5000 {
		t.Fatalf("fine amount = %v, want 5000", got.FineAmount)
	}
	if got.ViolationDescription == nil || *got.ViolationDescription != "белгіленген жылдамдықты арттыру" {
		t.Fatalf("description = %v", got.ViolationDescription)
	}
	if got.IssuingDepartment == nil || *got.IssuingDepartment != "ПОЛИЦИЯ ДЕПАРТАМЕНТІНІҢ АЛМАТЫ ОБЛЫСЫ" {
		t.Fatalf("department = %v", got.IssuingDepartment)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	got := Extract("совершенно посторонний текст без единой метки")

	if got.PrescriptionNumber != nil {
		t.Fatalf("prescription number = %v, want nil", got.PrescriptionNumber)
	}
	if got.FineAmount != nil {
		t.Fatalf("fine amount = %v, want nil", got.FineAmount)
	}
	if got.ViolationDatetime != nil {
		t.Fatalf("violation datetime = %v, want nil", got.ViolationDatetime)
	}
	if got.IssuingDepartment != nil {
		t.Fatalf("department = %v, want nil when no template matches", got.IssuingDepartment)
	}
	if got.ViolationDescription != nil {
		t.Fatalf("description = %v, want nil", got.ViolationDescription)
	}
}

func TestExtractFieldIndependence(t *testing.T) {
	// A malformed amount must not disturb neighbouring fields.
	text := `№ 111222333444555
Сумма наложенного штрафа: 12.000.50 тенге
Госномер: C789FG02
`
	got := Extract(text)

	if got.FineAmount != nil {
		t.Fatalf("fine amount = %v, want nil for unparseable value", got.FineAmount)
	}
	if got.PrescriptionNumber == nil || *got.PrescriptionNumber != "111222333444555" {
		t.Fatalf("prescription number = %v, want 111222333444555", got.PrescriptionNumber)
	}
	if got.LicensePlate == nil || *got.LicensePlate != "C789FG02" {
		t.Fatalf("license plate = %v, want C789FG02", got.LicensePlate)
	}
}

func TestExtractDatetimeRequiresTimeToken(t *testing.T) {
	got := Extract("Дата, время совершения: 15.01.2024\nМесто совершения: где-то")

	if got.ViolationDatetime != nil {
		t.Fatalf("violation datetime = %v, want nil without a time token", got.ViolationDatetime)
	}
	if got.ViolationLocation == nil {
		t.Fatalf("location should still extract")
	}
}

func TestExtractCommaDecimal(t *testing.T) {
	got := Extract("Сумма наложенного штрафа: 85,5 тенге")

	if got.FineAmount == nil || *got.FineAmount != 85.5 {
		t.Fatalf("fine amount = %v, want 85.5", got.FineAmount)
	}
}

func TestExtractParenthesizedDiscount(t *testing.T) {
	// The discounted total sometimes appears only in parentheses, without
	// its own label; the first parenthesized amount wins.
	got := Extract("Сумма наложенного штрафа: 12000 тенге\nльготная сумма (6000) тенге\n(9999)")

	if got.FineAmount == nil || *got.FineAmount != 12000 {
		t.Fatalf("fine amount = %v, want 12000", got.FineAmount)
	}
	if got.DiscountedAmount == nil || *got.DiscountedAmount != 6000 {
		t.Fatalf("discounted amount = %v, want 6000", got.DiscountedAmount)
	}
}

func TestExtractDescriptionStopsAtNextLabel(t *testing.T) {
	text := `Сущность правонарушения: первая строка
вторая строка
Адрес: г. Алматы
`
	got := Extract(text)

	want := "первая строка\nвторая строка"
	if got.ViolationDescription == nil || *got.ViolationDescription != want {
		t.Fatalf("description = %v, want %q", got.ViolationDescription, want)
	}
}
