// Package countries provides the ISO 3166-1 alpha-2 country table used for
// profile and repository country fields. The table is embedded so lookups
// work without a database or network round trip.
package countries

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed data/iso3166.csv
var dataFS embed.FS

// Country is one ISO 3166-1 entry.
type Country struct {
	// Code is the upper-case alpha-2 code, e.g. "FR"
	Code string `json:"code"`
	// Name is the English short name, e.g. "France"
	Name string `json:"name"`
}

type table struct {
	ordered []Country
	byCode  map[string]Country
	byName  map[string]string
}

var loadTable = sync.OnceValues(func() (*table, error) {
	raw, err := dataFS.ReadFile("data/iso3166.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded country table: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded country table: %w", err)
	}

	t := &table{
		ordered: make([]Country, 0, len(records)),
		byCode:  make(map[string]Country, len(records)),
		byName:  make(map[string]string, len(records)),
	}
	for _, rec := range records {
		c := Country{
			Code: strings.ToUpper(strings.TrimSpace(rec[0])),
			Name: strings.TrimSpace(rec[1]),
		}
		if len(c.Code) != 2 {
			return nil, fmt.Errorf("invalid country code %q in embedded table", rec[0])
		}
		t.ordered = append(t.ordered, c)
		t.byCode[c.Code] = c
		t.byName[strings.ToLower(c.Name)] = c.Code
	}

	// Sorted by name for API responses, the CSV itself is ordered by code.
	sort.Slice(t.ordered, func(i, j int) bool {
		return t.ordered[i].Name < t.ordered[j].Name
	})
	return t, nil
})

// All returns every country sorted by English name. The returned slice is
// shared, callers must not modify it.
func All() ([]Country, error) {
	t, err := loadTable()
	if err != nil {
		return nil, err
	}
	return t.ordered, nil
}

// ByCode looks up a country by its alpha-2 code, case-insensitively.
func ByCode(code string) (Country, bool) {
	t, err := loadTable()
	if err != nil {
		return Country{}, false
	}
	c, ok := t.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// CodeForName resolves an English country name to its alpha-2 code,
// case-insensitively. Legacy profile imports carry free-text country
// names, unknown names resolve to ok=false rather than an error so the
// caller can keep the row with an empty code.
func CodeForName(name string) (string, bool) {
	t, err := loadTable()
	if err != nil {
		return "", false
	}
	code, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// ValidCode reports whether code is an assigned alpha-2 code. Empty input
// is valid because country fields are optional.
func ValidCode(code string) bool {
	if strings.TrimSpace(code) == "" {
		return true
	}
	_, ok := ByCode(code)
	return ok
}
