// Package extract turns the text layer of a traffic-fine notice into typed
// fields. Notices from the Almaty region police are printed in Russian or
// Kazakh; every field carries an ordered list of label-anchored patterns so
// whichever language is present wins. Fields are extracted independently:
// malformed text for one field never affects another, and a field with no
// matching label is simply left unset.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"fines-service/internal/domain/fine"
)

// DefaultIssuingDepartment is used when a document names no recognizable
// issuing department and there is no listing value to fall back on.
const DefaultIssuingDepartment = "Алматы облысы Полиция Департаменті"

const (
	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
)

// rule binds one target field to its ordered pattern list and a coercion
// step. apply receives the capture groups of the first pattern that matched
// and may reject them (parse failure leaves the field unset).
type rule struct {
	patterns []*regexp.Regexp
	apply    func(out *fine.ExtractedFields, groups []string)
}

var rules = []rule{
	{pats(`№\s*(\d{15})`), setString(func(o *fine.ExtractedFields) **string { return &o.PrescriptionNumber })},
	{pats(`(?:Госномер|Мемл\. нөмірі):\s*([\p{L}\p{N}_]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.LicensePlate })},
	{pats(`(?:№ СРТС|КҚТК №):\s*([\p{L}\p{N}_]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.VehicleCertificate })},
	{pats(`(?:Марка, модель|Маркасы, үлгісі):\s*([A-Z\s]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.VehicleMakeModel })},
	{pats(`(?:Цвет|Түсі):\s*([\p{L}\p{N}_]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.VehicleColor })},
	{pats(`(?:Дата, время совершения|Жасалған күні, уақыты):[ \t]*(\d{2}\.\d{2}\.\d{4})[ \t]*(\d{2}:\d{2})`), applyDateTime},
	{pats(`(?:Место совершения|Жасалған орны):\s*([^\n]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.ViolationLocation })},
	{pats(`(?:зафиксированная скорость|анықталған жылдамдық)\s*-\s*([\d,.]+)\s*км`), setFloat(func(o *fine.ExtractedFields) **float64 { return &o.DetectedSpeed })},
	{pats(`(?:разрешенная скорость|рұқсат етілген жылдамдық)\s*-\s*([\d,.]+)\s*км`), setFloat(func(o *fine.ExtractedFields) **float64 { return &o.AllowedSpeed })},
	{pats(`(?:исключающая погрешность|ауытқушылығын есепке алмайтын)\s*-\s*([\d,.]+)\s*км`), setFloat(func(o *fine.ExtractedFields) **float64 { return &o.SpeedWithMargin })},
	{pats(`(?:Сумма наложенного штрафа|Салынған айыппұл сомасы):\s*([\d,.]+)\s*тенге`), setFloat(func(o *fine.ExtractedFields) **float64 { return &o.FineAmount })},
	{pats(`(?:Серийный номер|Сериялық нөмірі):\s*([\w-]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.DeviceSerial })},
	{pats(`(?:Номер сертификата|Сынақ куәлігінің нөмірі):\s*([\w-]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.CertificateNumber })},
	{pats(`(?:Дата поверки|Сынақ күні):\s*(\d{2}\.\d{2}\.\d{4})`), setDate(func(o *fine.ExtractedFields) **time.Time { return &o.CertificateDate })},
	{pats(`(?:действительна до|дейін):\s*(\d{2}\.\d{2}\.\d{4})`), setDate(func(o *fine.ExtractedFields) **time.Time { return &o.CertificateValidUntil })},
	{pats(`(?:Наименование юридического лица|Заңды тұлғаның атауы):\s*([^\n]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.OwnerName })},
	{pats(`(?:ИИН/БИН|ЖСН/БСН):\s*(\d+)`), setString(func(o *fine.ExtractedFields) **string { return &o.OwnerBIN })},
	{pats(`(?:Адрес|Мекен-жайы):\s*([^\n]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.OwnerAddress })},
	{pats(`(?:подписал|қол қойды):\s*([А-ЯЁ\s]+),`), setString(func(o *fine.ExtractedFields) **string { return &o.IssuingOfficer })},
	{pats(`статьей\s*(\d+)\s*частью\s*(\d+)`), applyArticle},
	{pats(`(ДЕПАРТАМЕНТ ПОЛИЦИИ [^\n]+)`, `(ПОЛИЦИЯ ДЕПАРТАМЕНТІНІҢ [^\n]+)`), setString(func(o *fine.ExtractedFields) **string { return &o.IssuingDepartment })},
}

var (
	discountedRe = regexp.MustCompile(`\(\s*([\d,.]+)\s*\)`)
	descLabelRe  = regexp.MustCompile(`(?:Сущность правонарушения|Құқық бұзушылық мәні):\s*([^\n]+)`)
	labelLineRe  = regexp.MustCompile(`^[\p{L}\p{N}_]+:`)
)

// Extract runs every rule over the concatenated page text of one document.
// It never fails: absent or malformed values leave their field nil.
func Extract(text string) fine.ExtractedFields {
	var out fine.ExtractedFields

	for _, r := range rules {
		for _, p := range r.patterns {
			if m := p.FindStringSubmatch(text); m != nil {
				r.apply(&out, m[1:])
				break
			}
		}
	}

	// Documents sometimes print the discounted total only in parentheses
	// instead of under its own label; the first parenthesized amount in the
	// whole text recovers it.
	if m := discountedRe.FindStringSubmatch(text); m != nil {
		if v, err := parseAmount(m[1]); err == nil {
			out.DiscountedAmount = &v
		}
	}

	if strings.Contains(text, "SUNQAR") {
		name := "SUNQAR"
		out.DeviceName = &name
	}

	if desc := extractDescription(text); desc != "" {
		out.ViolationDescription = &desc
	}

	return out
}

// extractDescription captures the block that follows the violation-essence
// label: the rest of the label line plus every following non-empty line up
// to the next "label:" line.
func extractDescription(text string) string {
	loc := descLabelRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(text[loc[2]:loc[3]])

	rest := strings.Split(text[loc[1]:], "\n")
	for _, line := range rest[1:] {
		if line == "" || labelLineRe.MatchString(line) {
			break
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}

func pats(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		compiled = append(compiled, regexp.MustCompile(e))
	}
	return compiled
}

func setString(field func(*fine.ExtractedFields) **string) func(*fine.ExtractedFields, []string) {
	return func(out *fine.ExtractedFields, groups []string) {
		v := strings.TrimSpace(groups[0])
		if v == "" {
			return
		}
		*field(out) = &v
	}
}

func setFloat(field func(*fine.ExtractedFields) **float64) func(*fine.ExtractedFields, []string) {
	return func(out *fine.ExtractedFields, groups []string) {
		v, err := parseAmount(groups[0])
		if err != nil {
			return
		}
		*field(out) = &v
	}
}

func setDate(field func(*fine.ExtractedFields) **time.Time) func(*fine.ExtractedFields, []string) {
	return func(out *fine.ExtractedFields, groups []string) {
		t, err := time.Parse(dateLayout, groups[0])
		if err != nil {
			return
		}
		*field(out) = &t
	}
}

func applyDateTime(out *fine.ExtractedFields, groups []string) {
	t, err := time.Parse(dateTimeLayout, groups[0]+" "+groups[1])
	if err != nil {
		return
	}
	out.ViolationDatetime = &t
}

// The statute reference is printed as separate article and part numbers;
// they are persisted joined as "article.part".
func applyArticle(out *fine.ExtractedFields, groups []string) {
	code := groups[0] + "." + groups[1]
	out.ArticleCode = &code
}

// parseAmount converts a captured numeric with comma decimal separators to a
// float ("85,5" -> 85.5).
func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
