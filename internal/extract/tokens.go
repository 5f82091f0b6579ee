package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBulletinToken converts one raw bulletin table token into a numeric
// value. The exchange PDFs are not clean: "UNCH" means zero change, dashes
// or an empty cell mean the value is absent, and a sign sometimes gets
// split from its digits during extraction ("- 64"). A nil result with a nil
// error means the cell is legitimately absent.
func ParseBulletinToken(raw string) (*float64, error) {
	tok := strings.TrimSpace(raw)
	if tok == "" {
		return nil, nil
	}

	upper := strings.ToUpper(tok)
	if upper == "UNCH" || upper == "UNCHANGED" {
		zero := 0.0
		return &zero, nil
	}

	// Dash runs ("----", "—") are placeholder cells.
	if strings.Trim(tok, "-—– ") == "" {
		return nil, nil
	}

	// Rejoin a detached sign and drop thousands separators.
	tok = strings.ReplaceAll(tok, ",", "")
	if strings.HasPrefix(tok, "- ") || strings.HasPrefix(tok, "+ ") {
		tok = string(tok[0]) + strings.TrimSpace(tok[1:])
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable bulletin token %q: %w", raw, err)
	}
	return &v, nil
}
