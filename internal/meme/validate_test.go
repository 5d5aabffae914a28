package meme

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/internal/domain"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	return ve.Field
}

func TestValidateDescription(t *testing.T) {
	t.Parallel()

	got, err := ValidateDescription("  a cat wearing sunglasses ")
	require.NoError(t, err)
	assert.Equal(t, "a cat wearing sunglasses", got)

	_, err = ValidateDescription("   ")
	assert.Equal(t, FieldDescription, fieldOf(t, err))

	_, err = ValidateDescription(strings.Repeat("й", MaxDescriptionRunes))
	assert.NoError(t, err)
	_, err = ValidateDescription(strings.Repeat("й", MaxDescriptionRunes+1))
	assert.Equal(t, FieldDescription, fieldOf(t, err))
}

func TestValidateTemplateID(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateTemplateID("two_buttons"))
	assert.NoError(t, ValidateTemplateID("a-1"))
	for _, bad := range []string{"", "has space", "semi;colon", strings.Repeat("x", 51)} {
		assert.Equal(t, FieldTemplate, fieldOf(t, ValidateTemplateID(bad)), bad)
	}
}

func TestValidateTemplateText(t *testing.T) {
	t.Parallel()

	lines, err := ValidateTemplateText("top\n\n  bottom  \n")
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "bottom"}, lines)

	_, err = ValidateTemplateText("\n \n")
	assert.Equal(t, FieldTemplateText, fieldOf(t, err))
	_, err = ValidateTemplateText(strings.Repeat("x\n", MaxTemplateLines+1))
	assert.Equal(t, FieldTemplateText, fieldOf(t, err))
	_, err = ValidateTemplateText(strings.Repeat("x", MaxLineRunes+1))
	assert.Equal(t, FieldTemplateText, fieldOf(t, err))
}

func TestValidateVoice(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateVoice([]byte{1}))
	assert.Equal(t, FieldVoice, fieldOf(t, ValidateVoice(nil)))
	assert.Equal(t, FieldVoice, fieldOf(t, ValidateVoice(make([]byte, MaxVoiceBytes+1))))
}

func TestTemplatesRegistry(t *testing.T) {
	t.Parallel()

	reg := NewTemplates(DefaultTemplates...)
	assert.Len(t, reg.List(), 5)
	require.NoError(t, reg.Add(Template{ID: "stonks"}))
	tpl, ok := reg.Get("stonks")
	require.True(t, ok)
	assert.Equal(t, "stonks", tpl.Title)
	assert.Error(t, reg.Add(Template{ID: "bad id"}))

	assert.True(t, reg.Remove("drake"))
	assert.False(t, reg.Remove("drake"))
	assert.Equal(t, []string{"distracted_boyfriend", "two_buttons", "change_my_mind", "expanding_brain", "stonks"}, reg.IDs())
}

func TestFeaturesToggle(t *testing.T) {
	t.Parallel()

	f := NewFeatures(true, false)
	assert.True(t, f.Enabled(domain.KindAI))
	assert.False(t, f.Enabled(domain.KindVoice))
	assert.True(t, f.Enabled(domain.KindTemplate))
	assert.False(t, f.Toggle(domain.KindAI))
	assert.True(t, f.Toggle(domain.KindVoice))
	assert.True(t, f.Toggle(domain.KindTemplate))
	assert.False(t, f.Enabled(domain.KindAI))
}
