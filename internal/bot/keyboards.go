package bot

import (
	"slices"
	"strings"

	"github.com/go-telegram/bot/models"
)

const (
	menuCallbackPrefix  = "menu"
	setupCallbackPrefix = "setup_"

	setupToggleCallbackPrefix = "setup_toggle_"
	setupDoneCallback         = "setup_done"

	// Telegram limits callback data to 64 bytes.
	maxCallbackDataLen = 64
)

func getReturnKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "⬅️ Return to menu", CallbackData: "menu"}},
		},
	}
}

func getMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "📂 Categories", CallbackData: "menu_categories"},
				{Text: "📰 My feeds", CallbackData: "menu_myfeeds"},
			},
			{
				{Text: "🤖 Summary", CallbackData: "menu_summary"},
				{Text: "📊 Stats", CallbackData: "menu_stats"},
			},
			{
				{Text: "⚙️ Setup", CallbackData: "menu_setup"},
			},
		},
	}
}

// getSetupKeyboard lists every category with its subscription state, one per
// row, so a tap toggles it.
func getSetupKeyboard(categories []string, subscribed []string) *models.InlineKeyboardMarkup {
	keyboard := make([][]models.InlineKeyboardButton, 0, len(categories)+1)

	for _, category := range categories {
		data := setupToggleCallbackPrefix + category
		if len(data) > maxCallbackDataLen {
			continue
		}

		mark := "⬜"
		if slices.Contains(subscribed, category) {
			mark = "✅"
		}

		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: mark + " " + category, CallbackData: data},
		})
	}

	keyboard = append(keyboard, []models.InlineKeyboardButton{
		{Text: "✔️ Done", CallbackData: setupDoneCallback},
	})

	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

func setupToggleCategory(data string) (string, bool) {
	category, ok := strings.CutPrefix(data, setupToggleCallbackPrefix)
	if !ok || category == "" {
		return "", false
	}

	return category, true
}
