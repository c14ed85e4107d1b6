// Package ingest parses business records out of CSV and XLSX lead exports.
package ingest

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/anthrasite/leadfactory-cli/internal/model"
)

// columnAliases maps the header spellings seen across lead export formats
// to business fields.
var columnAliases = map[string]string{
	"name":          "name",
	"business_name": "name",
	"company":       "name",
	"company_name":  "name",
	"address":       "address",
	"street":        "address",
	"address1":      "address",
	"city":          "city",
	"state":         "state",
	"province":      "state",
	"zip":           "zip",
	"zipcode":       "zip",
	"zip_code":      "zip",
	"postal_code":   "zip",
	"phone":         "phone",
	"phone_number":  "phone",
	"telephone":     "phone",
	"email":         "email",
	"website":       "website",
	"url":           "website",
	"category":      "category",
	"vertical":      "category",
	"industry":      "category",
	"description":   "description",
}

// mapHeader resolves a header row to field -> column index. The name
// column is required; everything else is optional.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := columnAliases[key]; ok {
			if _, seen := cols[field]; !seen {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("ingest: no name column in header")
	}
	return cols, nil
}

func rowToBusiness(cols map[string]int, row []string) model.Business {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return model.Business{
		Name:        get("name"),
		Address:     get("address"),
		City:        get("city"),
		State:       get("state"),
		Zip:         get("zip"),
		Phone:       get("phone"),
		Email:       get("email"),
		Website:     get("website"),
		Category:    get("category"),
		Description: get("description"),
	}
}

// Result reports what a parse produced.
type Result struct {
	Businesses []model.Business
	Skipped    int
}
