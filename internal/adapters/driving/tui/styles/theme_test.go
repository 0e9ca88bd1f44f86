package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTheme(t *testing.T) {
	theme := DefaultTheme()

	require.NotNil(t, theme)
	for name, c := range map[string]lipgloss.Color{
		"primary":    theme.Primary,
		"secondary":  theme.Secondary,
		"foreground": theme.Foreground,
		"muted":      theme.Muted,
		"error":      theme.Error,
		"border":     theme.Border,
		"bar":        theme.Bar,
	} {
		assert.NotEmpty(t, string(c), name)
	}
}

func TestDefaultTheme_SpeakersAreDistinct(t *testing.T) {
	theme := DefaultTheme()

	assert.NotEqual(t, theme.Primary, theme.Secondary, "user and assistant labels must differ")
	assert.NotEqual(t, theme.Error, theme.Muted)
}

func TestNewStyles_NilTheme(t *testing.T) {
	styles := NewStyles(nil)

	require.NotNil(t, styles)
	assert.Equal(t, DefaultTheme().Primary, styles.Title.GetForeground())
}

func TestStyles_AllStylesInitialised(t *testing.T) {
	styles := DefaultStyles()

	for name, s := range map[string]lipgloss.Style{
		"Title":      styles.Title,
		"Normal":     styles.Normal,
		"Muted":      styles.Muted,
		"Error":      styles.Error,
		"InputField": styles.InputField,
		"StatusBar":  styles.StatusBar,
		"User":       styles.User,
		"Assistant":  styles.Assistant,
		"Source":     styles.Source,
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, lipgloss.Style{}, s)
			assert.Contains(t, s.Render("test text"), "test text")
		})
	}
}

func TestStyles_SpeakerLabelsAreBold(t *testing.T) {
	styles := DefaultStyles()

	assert.True(t, styles.Title.GetBold())
	assert.True(t, styles.User.GetBold())
	assert.True(t, styles.Assistant.GetBold())
	assert.True(t, styles.Source.GetItalic())
}
