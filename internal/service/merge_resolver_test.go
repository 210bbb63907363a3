package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorium/intake-api/internal/models"
)

func mergeFixture() (*models.Student, *models.Student) {
	instructor := "inst-1"
	source := &models.Student{
		ID:                   "src-1",
		Name:                 "Dana Levi",
		NationalID:           "123456789",
		ContactName:          "Noa Levi",
		ContactPhone:         "050-1111111",
		Notes:                "prefers afternoons",
		Tags:                 []string{"math", "grade-7"},
		AssignedInstructorID: &instructor,
	}
	target := &models.Student{
		ID:           "tgt-1",
		Name:         "Dana Levy",
		NationalID:   "",
		ContactName:  "N. Levy",
		ContactPhone: "050-2222222",
		Notes:        "existing roster record",
		Tags:         []string{"grade-7", "english"},
	}
	return source, target
}

func TestResolveMergeDefaultsToSource(t *testing.T) {
	source, target := mergeFixture()

	payload := ResolveMerge(source, target, models.MergeSelections{})

	assert.Equal(t, source.Name, payload.Name)
	assert.Equal(t, source.NationalID, payload.NationalID)
	assert.Equal(t, source.ContactName, payload.ContactName)
	assert.Equal(t, source.ContactPhone, payload.ContactPhone)
	assert.Equal(t, source.Notes, payload.Notes)
	require.NotNil(t, payload.AssignedInstructorID)
	assert.Equal(t, "inst-1", *payload.AssignedInstructorID)
	assert.Equal(t, []string{"grade-7", "math"}, payload.Tags)
}

func TestResolveMergePerFieldSelections(t *testing.T) {
	source, target := mergeFixture()

	payload := ResolveMerge(source, target, models.MergeSelections{
		models.MergeFieldName:       models.ChoiceTarget,
		models.MergeFieldNotes:      models.ChoiceTarget,
		models.MergeFieldInstructor: models.ChoiceTarget,
	})

	assert.Equal(t, target.Name, payload.Name)
	assert.Equal(t, target.Notes, payload.Notes)
	assert.Nil(t, payload.AssignedInstructorID)
	// unselected fields still come from the source
	assert.Equal(t, source.NationalID, payload.NationalID)
	assert.Equal(t, source.ContactPhone, payload.ContactPhone)
}

func TestResolveMergeCombinedTagsUnion(t *testing.T) {
	source, target := mergeFixture()
	source.Tags = []string{"a", "b"}
	target.Tags = []string{"b", "c"}

	payload := ResolveMerge(source, target, models.MergeSelections{
		models.MergeFieldTags: models.ChoiceCombined,
	})

	assert.Equal(t, []string{"a", "b", "c"}, payload.Tags)
}

func TestResolveMergeDeterministic(t *testing.T) {
	source, target := mergeFixture()
	selections := models.MergeSelections{
		models.MergeFieldName: models.ChoiceTarget,
		models.MergeFieldTags: models.ChoiceCombined,
	}

	first, err := json.Marshal(ResolveMerge(source, target, selections))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		next, err := json.Marshal(ResolveMerge(source, target, selections))
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestResolveMergeDoesNotMutateInputs(t *testing.T) {
	source, target := mergeFixture()
	sourceTags := append([]string(nil), source.Tags...)
	targetTags := append([]string(nil), target.Tags...)

	ResolveMerge(source, target, models.MergeSelections{
		models.MergeFieldTags: models.ChoiceCombined,
	})

	assert.Equal(t, sourceTags, []string(source.Tags))
	assert.Equal(t, targetTags, []string(target.Tags))
}

func TestValidateMergeSelections(t *testing.T) {
	assert.NoError(t, ValidateMergeSelections(nil))
	assert.NoError(t, ValidateMergeSelections(models.MergeSelections{
		models.MergeFieldName: models.ChoiceSource,
		models.MergeFieldTags: models.ChoiceCombined,
	}))

	err := ValidateMergeSelections(models.MergeSelections{
		models.MergeFieldName: models.ChoiceCombined,
	})
	require.Error(t, err, "combined is only valid for tags")

	err = ValidateMergeSelections(models.MergeSelections{
		models.MergeField("favorite_color"): models.ChoiceSource,
	})
	require.Error(t, err)

	err = ValidateMergeSelections(models.MergeSelections{
		models.MergeFieldTags: models.FieldChoice("both"),
	})
	require.Error(t, err)
}
