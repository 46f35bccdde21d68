package services

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/macrame/admin/pkg/errors"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// slugify lowercases value and joins its letters and digits with single dashes.
func slugify(value string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// jsonColumn validates raw JSON for a datatypes.JSON column. Empty input stores NULL.
func jsonColumn(field string, raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, apperrors.NewBadRequest(field + " must be valid JSON")
	}
	return datatypes.JSON(raw), nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = 25
	case perPage > 200:
		perPage = 200
	}
	return page, perPage
}

// byIDOrKey matches a row by id or by its unique key. Column names go through the
// dialect quoting since key is reserved in MySQL.
func byIDOrKey(db *gorm.DB, ref string) *gorm.DB {
	return db.Where(clause.Or(
		clause.Eq{Column: clause.Column{Name: "id"}, Value: ref},
		clause.Eq{Column: clause.Column{Name: "key"}, Value: ref},
	))
}
