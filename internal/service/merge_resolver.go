package service

import (
	"fmt"
	"sort"

	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

// ResolveMerge computes the field set applied to the surviving target record
// when a candidate is merged into an existing student. It is a pure function
// of its inputs: identical inputs always produce identical payloads, and no
// validation or I/O happens here.
//
// Scalar fields copy verbatim from whichever side is selected, defaulting to
// the source (the freshly submitted intake). Tags additionally support a
// combined mode producing the deduplicated union of both sets.
func ResolveMerge(source, target *models.Student, selections models.MergeSelections) models.MergePayload {
	payload := models.MergePayload{
		Name:                 pickString(source.Name, target.Name, selections[models.MergeFieldName]),
		NationalID:           pickString(source.NationalID, target.NationalID, selections[models.MergeFieldNationalID]),
		ContactName:          pickString(source.ContactName, target.ContactName, selections[models.MergeFieldContactName]),
		ContactPhone:         pickString(source.ContactPhone, target.ContactPhone, selections[models.MergeFieldContactPhone]),
		Notes:                pickString(source.Notes, target.Notes, selections[models.MergeFieldNotes]),
		AssignedInstructorID: pickInstructor(source.AssignedInstructorID, target.AssignedInstructorID, selections[models.MergeFieldInstructor]),
	}

	switch selections[models.MergeFieldTags] {
	case models.ChoiceTarget:
		payload.Tags = sortedCopy(target.Tags)
	case models.ChoiceCombined:
		payload.Tags = unionTags(source.Tags, target.Tags)
	default:
		payload.Tags = sortedCopy(source.Tags)
	}

	return payload
}

// ValidateMergeSelections rejects unknown fields and choices before any
// merge work begins. Combined is only meaningful for tags.
func ValidateMergeSelections(selections models.MergeSelections) error {
	for field, choice := range selections {
		switch field {
		case models.MergeFieldName, models.MergeFieldNationalID, models.MergeFieldContactName,
			models.MergeFieldContactPhone, models.MergeFieldInstructor, models.MergeFieldNotes:
			if choice != models.ChoiceSource && choice != models.ChoiceTarget {
				return errInvalidChoice(field, choice)
			}
		case models.MergeFieldTags:
			if choice != models.ChoiceSource && choice != models.ChoiceTarget && choice != models.ChoiceCombined {
				return errInvalidChoice(field, choice)
			}
		default:
			return errUnknownField(field)
		}
	}
	return nil
}

func errInvalidChoice(field models.MergeField, choice models.FieldChoice) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid choice %q for field %q", choice, field))
}

func errUnknownField(field models.MergeField) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown merge field %q", field))
}

func pickString(source, target string, choice models.FieldChoice) string {
	if choice == models.ChoiceTarget {
		return target
	}
	return source
}

func pickInstructor(source, target *string, choice models.FieldChoice) *string {
	side := source
	if choice == models.ChoiceTarget {
		side = target
	}
	if side == nil {
		return nil
	}
	v := *side
	return &v
}

// unionTags returns the deduplicated union. The result is sorted so the
// payload is byte-identical across calls regardless of input order.
func unionTags(source, target []string) []string {
	seen := make(map[string]struct{}, len(source)+len(target))
	out := make([]string, 0, len(source)+len(target))
	for _, tag := range source {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	for _, tag := range target {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

func sortedCopy(tags []string) []string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return out
}
