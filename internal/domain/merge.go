package domain

import (
	"encoding/json"
	"fmt"
)

// Conflict pairs a remote record with the local record sharing its ID.
type Conflict struct {
	ID     int64 `json:"id"`
	Server Quote `json:"server"`
	Local  Quote `json:"local"`
}

// Resolution selects which side of a conflict wins.
type Resolution string

const (
	// ResolveServer overwrites the local record with the server version.
	ResolveServer Resolution = "server"

	// ResolveLocal keeps the local record unchanged.
	ResolveLocal Resolution = "local"
)

// ParseResolution validates a user supplied choice.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case ResolveServer, ResolveLocal:
		return Resolution(s), nil
	default:
		return "", NewValidationError("choice", fmt.Sprintf(`must be "server" or "local", got %q`, s))
	}
}

// DetectConflicts returns the remote records that share an ID with a local
// record but carry different text. Remote records without an ID never conflict.
// The result follows remote order.
func DetectConflicts(local, remote []Quote) []Quote {
	out := make([]Quote, 0)

	for _, r := range remote {
		if !r.HasID() {
			continue
		}

		for _, l := range local {
			if l.SameID(r) && l.Text != r.Text {
				out = append(out, r)
				break
			}
		}
	}

	return out
}

// BuildConflicts pairs each conflicting remote record with its local
// counterpart (the first local record with that ID).
func BuildConflicts(local, conflicting []Quote) []Conflict {
	out := make([]Conflict, 0, len(conflicting))

	for _, r := range conflicting {
		for _, l := range local {
			if l.SameID(r) {
				out = append(out, Conflict{ID: *r.ID, Server: r.Clone(), Local: l.Clone()})
				break
			}
		}
	}

	return out
}

// MergeRemote appends remote records whose ID is not yet present in local.
// Records without an ID are skipped. It returns the merged list and the
// records that were appended. local is not modified.
func MergeRemote(local, remote []Quote) (merged, added []Quote) {
	merged = CloneQuotes(local)
	present := make(map[int64]struct{}, len(local))

	for _, q := range local {
		if q.HasID() {
			present[*q.ID] = struct{}{}
		}
	}

	added = make([]Quote, 0)

	for _, r := range remote {
		if !r.HasID() {
			continue
		}

		if _, ok := present[*r.ID]; ok {
			continue
		}

		present[*r.ID] = struct{}{}
		merged = append(merged, r.Clone())
		added = append(added, r.Clone())
	}

	return merged, added
}

// ReplaceByID overwrites every record sharing q's ID with q.
// Returns the new list and the number of records replaced.
func ReplaceByID(quotes []Quote, q Quote) ([]Quote, int) {
	out := CloneQuotes(quotes)
	replaced := 0

	for i := range out {
		if out[i].SameID(q) {
			out[i] = q.Clone()
			replaced++
		}
	}

	return out, replaced
}

// UnionDedup appends imported to existing, dropping every record that is
// structurally equal to one already kept. The first occurrence wins.
// added counts only imported records that made it into merged.
func UnionDedup(existing, imported []Quote) (merged []Quote, added int) {
	seen := make(map[string]struct{}, len(existing)+len(imported))
	merged = make([]Quote, 0, len(existing)+len(imported))

	for i, list := range [][]Quote{existing, imported} {
		for _, q := range list {
			key := q.Key()
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			merged = append(merged, q.Clone())

			if i == 1 {
				added++
			}
		}
	}

	return merged, added
}

// importRecord mirrors Quote with pointer fields so missing keys are detectable.
// Non-string values fail json decoding, which rejects them.
type importRecord struct {
	ID       *int64  `json:"id"`
	Text     *string `json:"text"`
	Category *string `json:"category"`
}

// ParseImport decodes an import payload. It must be a JSON array of objects
// with non-blank string text and category.
func ParseImport(data []byte) ([]Quote, error) {
	var raw []json.RawMessage
	// null decodes into a nil slice without error.
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, NewValidationError("quotes", "must be a JSON array of quotes")
	}

	quotes := make([]Quote, 0, len(raw))

	for i, item := range raw {
		var rec importRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, NewValidationError(fmt.Sprintf("quotes[%d]", i), "must be an object with string text and category")
		}

		if rec.Text == nil || *rec.Text == "" {
			return nil, NewValidationError(fmt.Sprintf("quotes[%d].text", i), "must be a non-empty string")
		}

		if rec.Category == nil || *rec.Category == "" {
			return nil, NewValidationError(fmt.Sprintf("quotes[%d].category", i), "must be a non-empty string")
		}

		quotes = append(quotes, Quote{ID: rec.ID, Text: *rec.Text, Category: *rec.Category})
	}

	return quotes, nil
}
