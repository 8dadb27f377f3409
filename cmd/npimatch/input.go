package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
)

// columnAliases maps normalized header names to identity fields.
var columnAliases = map[string]string{
	"row_id":      "row_id",
	"rec_id":      "row_id",
	"id":          "row_id",
	"first_name":  "first_name",
	"firstname":   "first_name",
	"last_name":   "last_name",
	"lastname":    "last_name",
	"middle_name": "middle_name",
	"middlename":  "middle_name",
	"specialty":   "specialty",
	"speciality":  "specialty",
	"suffix":      "suffix",
}

// parseDelimiter accepts tab, comma or auto. Auto picks tab when the header
// line contains one.
func parseDelimiter(name string, data []byte) (rune, error) {
	switch strings.ToLower(name) {
	case "tab", `\t`:
		return '\t', nil
	case "comma", ",":
		return ',', nil
	case "", "auto":
		header, _, _ := bytes.Cut(data, []byte("\n"))
		if bytes.ContainsRune(header, '\t') {
			return '\t', nil
		}
		return ',', nil
	default:
		return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown delimiter %q", name))
	}
}

// decodeRoster converts roster bytes to UTF-8. Auto keeps valid UTF-8 and
// reads anything else as Windows-1252, the encoding spreadsheet exports use.
func decodeRoster(data []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.ReplaceAll(encoding, "-", "")) {
	case "utf8":
		if !utf8.Valid(data) {
			return nil, dErrors.New(dErrors.CodeValidation, "roster is not valid utf-8; try --encoding cp1252")
		}
		return data, nil
	case "", "auto":
		if utf8.Valid(data) {
			return data, nil
		}
	case "cp1252", "windows1252":
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown encoding %q", encoding))
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decode roster as cp1252")
	}
	return decoded, nil
}

// readRoster parses a delimited roster with a header row. Rows without a row
// id are numbered by their 1-based position.
func readRoster(r io.Reader, delimiter, encoding string) ([]models.SuppliedIdentity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if data, err = decodeRoster(data, encoding); err != nil {
		return nil, err
	}
	comma, err := parseDelimiter(delimiter, data)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeValidation, "roster is empty")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid roster header")
	}
	columns := make(map[string]int)
	for i, name := range header {
		key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(name)))
		if field, ok := columnAliases[key]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = i
			}
		}
	}
	for _, required := range []string{"first_name", "last_name"} {
		if _, ok := columns[required]; !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "roster header is missing "+required)
		}
	}

	var identities []models.SuppliedIdentity
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid roster row")
		}
		if blank(record) {
			continue
		}
		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}
		identity := models.SuppliedIdentity{
			RowID:      field("row_id"),
			FirstName:  field("first_name"),
			LastName:   field("last_name"),
			MiddleName: field("middle_name"),
			Specialty:  field("specialty"),
			Suffix:     field("suffix"),
		}.Trimmed()
		if identity.RowID == "" {
			identity.RowID = strconv.Itoa(len(identities) + 1)
		}
		if identity.FirstName == "" || identity.LastName == "" {
			line, _ := cr.FieldPos(0)
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("line %d: first and last name are required", line))
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
