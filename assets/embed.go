// assets/embed.go
//
// Embedded reference data:
//   - countries.csv: the real country pool (code, centroid, name, OEC code, aliases).
//   - fictional.csv: the stand-in pool used on the special calendar day.
//   - sql/*.sql:     schema migrations applied at startup.
package assets

import (
	"embed"
	"encoding/csv"
	"io"
	"strings"
)

//go:embed countries.csv fictional.csv sql/*.sql
var FS embed.FS

// readRecords returns the non-comment CSV rows of an embedded file.
func readRecords(name string) ([][]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountryRecords returns the rows of countries.csv.
func CountryRecords() ([][]string, error) {
	return readRecords("countries.csv")
}

// FictionalRecords returns the rows of fictional.csv.
func FictionalRecords() ([][]string, error) {
	return readRecords("fictional.csv")
}
