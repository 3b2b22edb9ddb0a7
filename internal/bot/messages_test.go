package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in       time.Time
		expected string
	}{
		{in: time.Date(2026, time.January, 1, 0, 5, 0, 0, time.UTC), expected: "1 января 2026 г. в 00:05"},
		{in: time.Date(2025, time.May, 9, 18, 45, 0, 0, time.UTC), expected: "9 мая 2025 г. в 18:45"},
		{in: time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC), expected: "31 декабря 2024 г. в 23:59"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDate(tt.in))
		})
	}
}

func TestTextsEscapeUserInput(t *testing.T) {
	assert.Contains(t, WelcomeText("a_b*c"), "a\\_b\\*c")
	assert.Contains(t, WelcomeText(""), "участник")
	assert.Contains(t, MainMenuText("  "), "Участник")

	log := NewUserLogText(Profile{ID: 1, FirstName: "[x]"}, time.Now(), nil, nil, false)
	assert.Contains(t, log, "\\[x\\]")
	assert.Contains(t, log, "Username: нет")
}

func TestKeyboards(t *testing.T) {
	main := MainMenuKeyboard("https://t.me/sponsor")
	assert.Len(t, main.InlineKeyboard, 3)
	assert.Equal(t, ActionMyStats, *main.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "https://t.me/sponsor", *main.InlineKeyboard[2][0].URL)

	invite := InviteKeyboard("https://t.me/sponsor")
	assert.Equal(t, ActionBackToMain, *invite.InlineKeyboard[1][0].CallbackData)
}
