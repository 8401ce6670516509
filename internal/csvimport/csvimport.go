// Package csvimport разбирает CSV-файлы с перечнем медикаментов для запросов и предложений.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

const (
	colDrugName     = "drug_name"
	colDIN          = "din"
	colDosage       = "dosage"
	colDosageNeeded = "dosage_needed"
	colExpiryDate   = "expiry_date"

	// DateLayout задаёт формат даты в колонке expiry_date.
	DateLayout = "2006-01-02"
)

var (
	// ErrMissingDrugNameColumn возвращается, если в заголовке нет колонки drug_name.
	ErrMissingDrugNameColumn = errors.New("csv header has no drug_name column")
	// ErrNoEntries возвращается, если в файле нет ни одной строки с данными.
	ErrNoEntries = errors.New("no valid drug entries found in the CSV file")
)

// Entry описывает одну разобранную строку файла.
type Entry struct {
	Row        int        `json:"row"`
	Drug       model.Drug `json:"drug"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// RowError описывает ошибку в отдельной строке. Такие строки не прерывают разбор.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// Result содержит корректные строки и ошибки по строкам.
type Result struct {
	Entries []Entry    `json:"entries"`
	Errors  []RowError `json:"errors,omitempty"`
}

// HasErrors сообщает, есть ли в файле строки с ошибками.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Drugs возвращает препараты из корректных строк.
func (r *Result) Drugs() []model.Drug {
	drugs := make([]model.Drug, 0, len(r.Entries))
	for _, e := range r.Entries {
		drugs = append(drugs, e.Drug)
	}
	return drugs
}

// Parse читает CSV с заголовком. Строки нумеруются с единицы без учёта заголовка и пустых строк.
// Повреждённый CSV или заголовок без drug_name приводят к ошибке, остальные проблемы попадают в Result.Errors.
func Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoEntries
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	if _, ok := columns[colDrugName]; !ok {
		return nil, ErrMissingDrugNameColumn
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	res := &Result{}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		entry, rowErr := parseRow(row, func(name string) string { return field(record, name) })
		if rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		res.Entries = append(res.Entries, entry)
	}

	if len(res.Entries) == 0 && len(res.Errors) == 0 {
		return nil, ErrNoEntries
	}

	return res, nil
}

func parseRow(row int, get func(string) string) (Entry, *RowError) {
	entry := Entry{
		Row: row,
		Drug: model.Drug{
			Name:   get(colDrugName),
			DIN:    validation.NormalizeDIN(get(colDIN)),
			Dosage: get(colDosage),
		},
	}
	if entry.Drug.Dosage == "" {
		entry.Drug.Dosage = get(colDosageNeeded)
	}

	if entry.Drug.Name == "" {
		return Entry{}, &RowError{Row: row, Message: "Drug name is required"}
	}
	if entry.Drug.DIN != "" && !validation.IsValidDIN(entry.Drug.DIN) {
		return Entry{}, &RowError{Row: row, Message: fmt.Sprintf("DIN %q must be %d digits", entry.Drug.DIN, validation.DINLength)}
	}

	if v := get(colExpiryDate); v != "" {
		expiry, err := time.Parse(DateLayout, v)
		if err != nil {
			return Entry{}, &RowError{Row: row, Message: fmt.Sprintf("Expiry date %q must be YYYY-MM-DD", v)}
		}
		entry.ExpiryDate = &expiry
	}

	return entry, nil
}
