package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaError reports a structural violation in the extracted document.
// This is the one error class that aborts a run: missing individual numbers
// are normal and flow through as unavailable, but a document whose shape is
// wrong cannot be trusted at all.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("extract schema violation at %s: %s", e.Field, e.Reason)
}

// IsSchemaError reports whether err is a structural schema violation.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// ParseDocument decodes and structurally validates an extracted document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		// Unknown fields are tolerated on a second, lenient pass; only
		// malformed JSON is structural.
		if err2 := json.Unmarshal(data, &doc); err2 != nil {
			return nil, &SchemaError{Field: "document", Reason: err2.Error()}
		}
	}
	if err := ValidateDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ValidateDocument checks the structural invariants of a decoded document.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return &SchemaError{Field: "document", Reason: "nil document"}
	}
	if doc.OIDeltas == nil {
		return &SchemaError{Field: "oi_deltas", Reason: "open-interest delta table missing"}
	}
	for class := range doc.OIDeltas {
		switch class {
		case ClassEquity, ClassRates, ClassFX:
		default:
			return &SchemaError{
				Field:  "oi_deltas." + string(class),
				Reason: "unknown asset class",
			}
		}
	}
	for _, field := range []struct{ name, val string }{
		{"metrics.dashboard_as_of_date", doc.Metrics.DashboardAsOfDate},
		{"metrics.bulletin_date", doc.Metrics.BulletinDate},
	} {
		if field.val == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", field.val); err != nil {
			return &SchemaError{Field: field.name, Reason: "date not in YYYY-MM-DD form"}
		}
	}
	if doc.Live != nil {
		switch doc.Live.TrendStatus {
		case "", TrendUp, TrendDown, TrendFlat, TrendUnknown:
		default:
			return &SchemaError{
				Field:  "live.sp500_trend_status",
				Reason: fmt.Sprintf("unknown trend status %q", doc.Live.TrendStatus),
			}
		}
	}
	return nil
}

// StalenessDays returns how many calendar days a source's as-of date lags the
// run date, or -1 when the as-of date is absent.
func StalenessDays(asOf string, runDate time.Time) int {
	if asOf == "" {
		return -1
	}
	t, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		return -1
	}
	days := int(runDate.Sub(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
