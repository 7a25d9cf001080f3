package moderation

import (
	"fmt"
	"html"
	"strings"
)

// User-facing texts. Everything is sent with HTML parse mode.
const (
	textUnidentifiedUser = "Не удается идентифицировать пользователя."

	textChannelNotConfigured = "Вы еще не настроили канал.\n\n" +
		"Используйте /setchannel &lt;@channel или ID&gt; для настройки.\n" +
		"Пример: /setchannel @mychannel"

	textNoPostPermission = "❌ У вас нет разрешения на публикацию сообщений в этот канал.\n\n" +
		"Только администраторы канала с разрешением \"Редактировать сообщения\" могут публиковать сообщения через этого бота.\n\n" +
		"Попросите администратора канала предоставить вам это разрешение."

	textSettingsUnavailable = "❌ Не удалось загрузить настройки канала. Попробуйте позже."

	textRejectionReason = "Отсутствует текст иностранного агента"

	textNextStepChannelGone = "<b>Следующий шаг:</b> Канал больше не существует или бот не может получить к нему доступ. " +
		"Пожалуйста, выберите другой канал."
	textNextStepAddBot    = "<b>Следующий шаг:</b> Попросите администратора канала добавить этого бота в качестве администратора в канал."
	textNextStepGrantPost = "<b>Следующий шаг:</b> Попросите администратора канала предоставить боту разрешение \"Публиковать сообщения\"."
	textOrSetChannel      = "\n\nИли используйте /setchannel для настройки другого канала"

	// ButtonSelectChannel and ButtonRemoveChannel label the re-selection keyboard.
	ButtonSelectChannel = "Выбрать другой канал"
	ButtonRemoveChannel = "/removechannel"
)

// FormatChannelInfo renders a channel as "Title (<code>id</code>)", or just the
// code-formatted id when the title is unknown.
func FormatChannelInfo(channelID, title string) string {
	id := "<code>" + html.EscapeString(channelID) + "</code>"
	if title == "" {
		return id
	}
	return html.EscapeString(title) + " (" + id + ")"
}

func blurbMissingText(channel string, reqs Requirements) string {
	return fmt.Sprintf("❌ Невозможно опубликовать сообщение: Блурб иностранного агента не настроен для %s\n\n"+
		"📋 Требования:\n%s\n\n"+
		"<b>Следующий шаг:</b> Используйте /set_fa_blurb &lt;ваш текст&gt; для настройки текста иностранного агента для этого канала.\n\n"+
		"Только администраторы канала могут настраивать параметры.",
		channel, FormatRequirements(reqs))
}

func rejectedReplyText(blurb string) string {
	return "❌ Невозможно опубликовать сообщение: Ваше сообщение должно содержать текст иностранного агента.\n\n" +
		"🌍 <b>Необходимый текст:</b>\n" + html.EscapeString(blurb) + "\n\n" +
		"Пожалуйста, добавьте этот текст к вашему сообщению и повторите попытку.\n" +
		"Оригинальное сообщение:"
}

func publishedText(channel string) string {
	return "✅ Сообщение опубликовано в " + channel
}

// publishFailedText explains a failed copy to the channel. The next step is
// chosen from the first unmet requirement.
func publishFailedText(channel string, reqs Requirements) string {
	var b strings.Builder
	b.WriteString("❌ Не удалось опубликовать сообщение в ")
	b.WriteString(channel)
	b.WriteString("\n\n📋 Требования:\n")
	b.WriteString(FormatRequirements(reqs))
	b.WriteString("\n\n")
	switch {
	case !reqs.ChannelExists:
		b.WriteString(textNextStepChannelGone)
		return b.String()
	case !reqs.BotIsAdded:
		b.WriteString(textNextStepAddBot)
	case !reqs.BotCanPost:
		b.WriteString(textNextStepGrantPost)
	}
	b.WriteString(textOrSetChannel)
	return b.String()
}
