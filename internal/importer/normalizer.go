package importer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

type column int

const (
	colUnknown column = iota
	colName
	colEmail
	colShortID
	colBirthDate
	colPhone
)

// Canonical template headers, in upload order.
const (
	HeaderName      = "Nome Completo"
	HeaderEmail     = "Email"
	HeaderShortID   = "Matrícula"
	HeaderBirthDate = "Data de Nascimento"
	HeaderPhone     = "Telefone de Emergencia"
)

// TemplateHeaders lists the columns of the downloadable import template.
var TemplateHeaders = []string{HeaderName, HeaderEmail, HeaderShortID, HeaderBirthDate, HeaderPhone}

var headerAliases = map[string]column{
	"nome completo":          colName,
	"nome":                   colName,
	"name":                   colName,
	"full name":              colName,
	"email":                  colEmail,
	"e-mail":                 colEmail,
	"matricula":              colShortID,
	"short id":               colShortID,
	"employee id":            colShortID,
	"data de nascimento":     colBirthDate,
	"birth date":             colBirthDate,
	"birthdate":              colBirthDate,
	"telefone de emergencia": colPhone,
	"telefone":               colPhone,
	"phone":                  colPhone,
	"emergency phone":        colPhone,
}

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	nonDigits    = regexp.MustCompile(`\D`)
	spaces       = regexp.MustCompile(`\s+`)
)

var birthDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// CanonicalHeader folds a sheet header into its lookup form: lower case,
// no diacritics, single spaces.
func CanonicalHeader(header string) string {
	decomposed := norm.NFD.String(strings.TrimSpace(header))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == '_' {
			r = ' '
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return spaces.ReplaceAllString(strings.TrimSpace(b.String()), " ")
}

// Normalize validates one raw row and produces a candidate or a row error.
func Normalize(row RawRow, rules Rules) (Candidate, *RowError) {
	headers := make([]string, 0, len(row.Fields))
	for header := range row.Fields {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	values := make(map[column]string, len(row.Fields))
	for _, header := range headers {
		col, ok := headerAliases[CanonicalHeader(header)]
		if !ok || values[col] != "" {
			continue
		}
		values[col] = strings.TrimSpace(row.Fields[header])
	}

	name := spaces.ReplaceAllString(values[colName], " ")
	email := strings.ToLower(values[colEmail])
	if name == "" || email == "" {
		e := rowError(row.Line, row.Fields, ReasonMissingField, "name and email are required")
		return Candidate{}, &e
	}
	if !emailPattern.MatchString(email) {
		e := rowError(row.Line, row.Fields, ReasonInvalidEmail, "invalid email format")
		return Candidate{}, &e
	}

	var shortID string
	if raw := values[colShortID]; raw != "" {
		shortID = nonDigits.ReplaceAllString(raw, "")
		if len(shortID) != rules.width() {
			e := rowError(row.Line, row.Fields, ReasonInvalidShortID, "matricula must have exactly "+strconv.Itoa(rules.width())+" digits")
			return Candidate{}, &e
		}
	}

	return Candidate{
		Row:       row.Line,
		Name:      name,
		Email:     email,
		ShortID:   shortID,
		BirthDate: parseBirthDate(values[colBirthDate]),
		Phone:     values[colPhone],
		Source:    row.Fields,
	}, nil
}

// parseBirthDate is lenient: anything it cannot read is dropped.
func parseBirthDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial >= 20000 && serial <= 80000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}
