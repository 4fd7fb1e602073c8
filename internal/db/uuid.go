package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func uuidValue(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// lookupID parses an id used for a single-row lookup; malformed ids cannot match a row.
func lookupID(id string) (pgtype.UUID, error) {
	v, err := uuidValue(id)
	if err != nil {
		return pgtype.UUID{}, pgx.ErrNoRows
	}
	return v, nil
}

// uuidValues parses ids for an IN clause, dropping malformed ones.
func uuidValues(ids []string) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if v, err := uuidValue(id); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func uuidString(v pgtype.UUID) string {
	if !v.Valid {
		return ""
	}
	return uuid.UUID(v.Bytes).String()
}

func uuidPtr(v pgtype.UUID) *string {
	if !v.Valid {
		return nil
	}
	s := uuidString(v)
	return &s
}
