package federation

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/trackmeet/core/pkg/models"
)

// Roster feed columns. Header names are matched case-insensitively.
const (
	colLicense   = "license"
	colFirstName = "first_name"
	colLastName  = "last_name"
	colGender    = "gender"
	colBirthDate = "birth_date"
	colBib       = "bib"
	colClub      = "club"
	colClubName  = "club_name"
)

var requiredColumns = []string{colLicense, colFirstName, colLastName}

// ParseRoster decodes the federation roster export. The first line is a
// header; the delimiter is ';' when the header contains one and ',' otherwise.
// Short rows are accepted and their missing cells read as empty.
func ParseRoster(r io.Reader) ([]models.ExternalRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comma = detectDelimiter(data)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("roster header is missing column %q", col)
		}
	}

	var records []models.ExternalRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read roster row: %w", err)
		}

		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		record := models.ExternalRecord{
			License:   cell(colLicense),
			FirstName: cell(colFirstName),
			LastName:  cell(colLastName),
			Gender:    cell(colGender),
			BirthDate: cell(colBirthDate),
			Bib:       cell(colBib),
		}
		if abbr := cell(colClub); abbr != "" {
			record.Club = &models.ExternalClub{
				Abbreviation: strings.ToUpper(abbr),
				Name:         cell(colClubName),
			}
		}
		records = append(records, record)
	}

	return records, nil
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.IndexByte(firstLine, ';') >= 0 {
		return ';'
	}
	return ','
}
