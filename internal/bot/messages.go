package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	ActionMyStats       = "my_stats"
	ActionGetInviteLink = "get_invite_link"
	ActionBackToMain    = "back_to_main"
)

const (
	separator = "━━━━━━━━━━━━━━"

	TextSelfReferral = "❌ Нельзя использовать собственную реферальную ссылку!"
	TextTryLater     = "⚠️ Произошла ошибка. Пожалуйста, попробуйте позже."
)

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text)
}

// FormatDate renders t the way Russian-locale clients show a long date,
// e.g. "15 октября 2026 г. в 14:05".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d г. в %02d:%02d",
		t.Day(), monthsGenitive[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

func firstNameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func usernameOrNone(username string) string {
	if username == "" {
		return "нет"
	}
	return "@" + escape(username)
}

func WelcomeText(firstName string) string {
	return fmt.Sprintf("🎩 *Добро пожаловать, %s\\!* \n", escape(firstNameOr(firstName, "участник"))) +
		separator + "\n" +
		"Вы участвуете в розыгрыше *1\\.000\\.000 ⭐STARS*\\!\n\n" +
		"🔗 Приглашайте друзей и увеличивайте шансы\\!"
}

func MainMenuText(firstName string) string {
	return fmt.Sprintf("🎩 *%s\\, вы участвуете в розыгрыше\\!*\n", escape(firstNameOr(firstName, "Участник"))) +
		separator + "\n" +
		"🏆 Главный приз\\: 1\\.000\\.000 ⭐STARS\n\n" +
		"Приглашайте друзей и увеличивайте шансы\\!"
}

func StatsText(telegramID int64, joinTime time.Time, referralCount int) string {
	return "📊 *Ваша статистика*\n" +
		separator + "\n" +
		fmt.Sprintf("👤 ID\\: `%d`\n", telegramID) +
		fmt.Sprintf("📅 Дата регистрации\\: %s\n", escape(FormatDate(joinTime))) +
		fmt.Sprintf("👥 Рефералов\\: *%d*\n\n", referralCount) +
		"💎 Чем больше друзей вы приведёте \\- тем выше шансы\\!"
}

func InviteText(link string, referralCount int) string {
	return "🔗 *Ваша реферальная ссылка\\:*\n" +
		fmt.Sprintf("`%s`\n\n", escape(link)) +
		fmt.Sprintf("👥 Приглашено друзей\\: *%d*\n\n", referralCount) +
		"Поделитесь этой ссылкой с друзьями\\!\n" +
		"Каждый новый участник увеличивает ваши шансы\\!"
}

func ReferrerNotificationText(referralCount int) string {
	return "🎉 *Новый реферал\\!*\n" +
		fmt.Sprintf("👥 Приглашено друзей\\: *%d*\n", referralCount) +
		"🔗 Приглашайте друзей и увеличивайте шансы\\!"
}

// Profile is the descriptive data shown about a participant in the audit log.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
}

// NewUserLogText is the MarkdownV2 audit record for a newly registered user.
// inviter is nil when the inviter's profile could not be fetched.
func NewUserLogText(user Profile, joined time.Time, inviterID *int64, inviter *Profile, inviterUnknown bool) string {
	inviterInfo := "Прямой заход"
	if inviterID != nil {
		if inviter != nil {
			inviterInfo = strings.Join([]string{
				fmt.Sprintf("• ID пригласителя: `%d`", *inviterID),
				"• Имя: " + escape(firstNameOr(inviter.FirstName, "не указано")),
				"• Username: " + usernameOrNone(inviter.Username),
			}, "\n")
		} else {
			inviterInfo = fmt.Sprintf("ID пригласителя: `%d` \\(данные недоступны\\)", *inviterID)
		}
		if inviterUnknown {
			inviterInfo += "\n• Статус: пригласитель не зарегистрирован"
		}
	}

	return strings.Join([]string{
		"✨ *Новый участник* ✨",
		separator,
		fmt.Sprintf("• ID: `%d`", user.ID),
		"• Имя: " + escape(firstNameOr(user.FirstName, "не указано")),
		"• Username: " + usernameOrNone(user.Username),
		"• Дата: " + escape(FormatDate(joined)),
		separator,
		inviterInfo,
		separator,
	}, "\n")
}

func NewUserLogPlainText(user Profile) string {
	return fmt.Sprintf("Новый участник: %s (ID: %d)", firstNameOr(user.FirstName, "без имени"), user.ID)
}

func MainMenuKeyboard(sponsorLink string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎫 Моя статистика", ActionMyStats)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📢 Пригласить друзей", ActionGetInviteLink)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🌟 Спонсор розыгрыша", sponsorLink)),
	)
}

func StatsKeyboard(sponsorLink string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📢 Пригласить друзей", ActionGetInviteLink)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🌟 Спонсор розыгрыша", sponsorLink)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", ActionBackToMain)),
	)
}

func InviteKeyboard(sponsorLink string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("✨ Подписаться на спонсора", sponsorLink)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", ActionBackToMain)),
	)
}
