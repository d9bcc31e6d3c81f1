package prompts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/heirloom/internal/agent/prompts"
	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/i18n"
	"github.com/runixer/heirloom/internal/testutil"
)

func TestBuilder_Build(t *testing.T) {
	b := prompts.NewBuilder(testutil.TestTranslator(t), "en", 60)
	profile := testutil.TestProfile()

	got, err := b.Build(&profile)
	require.NoError(t, err)
	assert.Equal(t,
		"You are Rosewood Chair, a chair from Louis XV. Character: proud and flirtatious. Accent: French Male. Under 60 words.",
		got)
}

func TestBuilder_Deterministic(t *testing.T) {
	tr, err := i18n.NewTranslator("en")
	require.NoError(t, err)
	b := prompts.NewBuilder(tr, "en", 0)

	profile := testutil.TestProfile()
	first, err := b.Build(&profile)
	require.NoError(t, err)
	second, err := b.Build(&profile)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "Jan van Mekeren")
	assert.Contains(t, first, "Made for a merchant's salon on the Herengracht.")
	assert.Contains(t, first, "under 60 words")
}

func TestBuilder_UsesDefaults(t *testing.T) {
	tr, err := i18n.NewTranslator("en")
	require.NoError(t, err)
	b := prompts.NewBuilder(tr, "en", 40)

	cradle, err := testutil.TestCatalog().FindByTitle("oak cradle")
	require.NoError(t, err)

	got, err := b.Build(cradle)
	require.NoError(t, err)
	assert.Contains(t, got, catalog.DefaultMaker)
	assert.Contains(t, got, catalog.DefaultDimensions)
	assert.Contains(t, got, "American")
	assert.Contains(t, got, "under 40 words")
}

func TestBuilder_BuildScriptwriter(t *testing.T) {
	b := prompts.NewBuilder(testutil.TestTranslator(t), "en", 60)
	profile := testutil.TestProfile()

	got, err := b.BuildScriptwriter(&profile, "  *creaks* Bonjour, mon ami!  ")
	require.NoError(t, err)
	assert.Equal(t, "Write three replies to Rosewood Chair. Reply: *creaks* Bonjour, mon ami!", got)
}

func TestBuilder_Dutch(t *testing.T) {
	tr, err := i18n.NewTranslator("en")
	require.NoError(t, err)
	b := prompts.NewBuilder(tr, "nl", 60)
	assert.Equal(t, "nl", b.Language())

	profile := testutil.TestProfile()
	got, err := b.Build(&profile)
	require.NoError(t, err)
	assert.Contains(t, got, "Je bent Rosewood Chair")
}

func TestBuilder_NilProfile(t *testing.T) {
	b := prompts.NewBuilder(testutil.TestTranslator(t), "en", 60)

	_, err := b.Build(nil)
	assert.Error(t, err)
	_, err = b.BuildScriptwriter(nil, "hi")
	assert.Error(t, err)
}

func TestHumanizeAccent(t *testing.T) {
	assert.Equal(t, "French Male", prompts.HumanizeAccent("french_male"))
	assert.Equal(t, "Dutch", prompts.HumanizeAccent(" dutch "))
	assert.Equal(t, "", prompts.HumanizeAccent(""))
}
