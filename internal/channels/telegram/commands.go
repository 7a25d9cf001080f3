package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/fabot/internal/moderation"
	"github.com/nextlevelbuilder/fabot/internal/store"
)

// commandDef describes a user-facing command for /help and the bot menu.
type commandDef struct {
	command     string
	description string
	help        string
	// hiddenWhenFixed drops the command when a fixed channel is configured.
	hiddenWhenFixed bool
}

var commandDefs = []commandDef{
	{command: "start", description: "Запустить бота", help: "/start - Запустить бота и показать приветственное сообщение"},
	{command: "help", description: "Показать справочное сообщение", help: "/help - Показать это справочное сообщение"},
	{command: "info", description: "Показать конфигурацию бота", help: "/info - Показать сводку конфигурации бота"},
	{
		command:         "setchannel",
		description:     "Настроить канал",
		help:            "/setchannel &lt;@channel или ID&gt; - Настроить канал для публикации ваших сообщений\nПример: /setchannel @mychannel",
		hiddenWhenFixed: true,
	},
	{
		command:         "removechannel",
		description:     "Удалить настройку канала",
		help:            "/removechannel - Удалить настройку канала",
		hiddenWhenFixed: true,
	},
	{
		command:     "set_fa_blurb",
		description: "Настроить текст иностранного агента",
		help: "/set_fa_blurb &lt;текст&gt; - Настроить текст иностранного агента для канала\n" +
			"Пример: /set_fa_blurb НАСТОЯЩИЙ МАТЕРИАЛ (ИНФОРМАЦИЯ) ПРОИЗВЕДЕН И РАСПРОСТРАНЕН ИНОСТРАННЫМ АГЕНТОМ «ИМЯ АГЕНТА» " +
			"ЛИБО КАСАЕТСЯ ДЕЯТЕЛЬНОСТИ ИНОСТРАННОГО АГЕНТА «ИМЯ АГЕНТА». 18+",
	},
	{
		command:     "notify_add",
		description: "Добавить получателя уведомлений",
		help:        "/notify_add - Добавить администратора в список получателей уведомлений об отклоненных сообщениях. Откроется кнопка для выбора пользователя.",
	},
	{
		command:     "notify_remove",
		description: "Удалить получателя уведомлений",
		help:        "/notify_remove - Удалить администратора из списка получателей уведомлений. Откроется кнопка для выбора пользователя.",
	},
	{
		command:     "notify_list",
		description: "Показать список получателей уведомлений",
		help:        "/notify_list - Показать список администраторов, получающих уведомления об отклоненных сообщениях",
	},
}

func availableCommands(fixed bool) []commandDef {
	out := make([]commandDef, 0, len(commandDefs))
	for _, def := range commandDefs {
		if fixed && def.hiddenWhenFixed {
			continue
		}
		out = append(out, def)
	}
	return out
}

// MenuCommands returns the bot menu for the given channel mode.
func MenuCommands(fixed bool) []telego.BotCommand {
	defs := availableCommands(fixed)
	out := make([]telego.BotCommand, len(defs))
	for i, def := range defs {
		out[i] = telego.BotCommand{Command: def.command, Description: def.description}
	}
	return out
}

// HelpText renders /help from the available command definitions.
func HelpText(fixed bool) string {
	var b strings.Builder
	b.WriteString("📖 <b>Доступные команды:</b>\n")
	for _, def := range availableCommands(fixed) {
		b.WriteString("\n")
		b.WriteString(def.help)
	}
	b.WriteString("\n\nОтправьте мне сообщение, и я опубликую его в настроенном канале, если оно содержит текст иностранного агента.")
	return b.String()
}

const (
	textWelcome = "Добро пожаловать! 👋\n\n" +
		"Я публикую ваши сообщения в канал, проверяя, что они содержат текст иностранного агента.\n\n" +
		"Используйте /help, чтобы увидеть доступные команды."
	textUnidentified    = "Не удается идентифицировать пользователя."
	textFixedChannel    = "🔒 Канал установлен администратором бота и не может быть изменен."
	textNotConfigured   = "Вы еще не настроили канал.\n\nИспользуйте /setchannel &lt;@channel или ID&gt; для настройки.\nПример: /setchannel @mychannel"
	textSetChannelUsage = "Пожалуйста, укажите идентификатор канала.\n\nИспользование: /setchannel &lt;@channel или ID&gt;\nПример: /setchannel @mychannel"
	textChannelNotFound = "Не удалось найти канал или получить к нему доступ. Убедитесь, что:\n" +
		"1. Идентификатор канала указан верно (@channel или числовой ID)\n" +
		"2. Бот добавлен в канал как администратор (или имеет право публикации)\n" +
		"3. Канал существует и доступен"
	textBotCannotPost = "❌ У бота нет разрешения на публикацию в этот канал.\n\n" +
		"Убедитесь, что бот:\n" +
		"1. Добавлен в канал\n" +
		"2. Имеет право публиковать сообщения\n" +
		"3. Не ограничен настройками канала"
	textPermissionProbe  = "🤖 Проверка разрешений бота..."
	textNoChannel        = "У вас не настроен канал."
	textChannelRemoved   = "✅ Настройка канала удалена.\n\nВаши сообщения больше не будут публиковаться ни в какой канал."
	textBlurbNeedsManage = "❌ Вы должны быть администратором настроенного канала для изменения настроек.\n\n" +
		"Только администраторы канала могут обновлять общие настройки канала."
	textBlurbEmpty        = "❌ Текст иностранного агента не может быть пустым. Пожалуйста, укажите текст."
	textNotifyNeedsAdmin  = "❌ Только администраторы канала могут просматривать список уведомлений."
	textNotifyNeedsManage = "❌ Только администраторы канала с разрешением управления чатом могут управлять списком уведомлений."
	textTargetNotAdmin    = "❌ Только администраторы канала могут быть добавлены в список уведомлений."
	textBadUserID         = "❌ Не удалось найти пользователя. Убедитесь, что вы указали правильный числовой ID."
	textNoUserSelected    = "❌ Пользователь не был выбран. Попробуйте снова."
	textSettingsFailed    = "❌ Не удалось сохранить настройки. Попробуйте позже."
	textPrivateOnly       = "Эта команда доступна только в приватном чате с ботом."
	textDumpMissing       = "Файл базы данных не найден."
	textDumpFailed        = "Не удалось отправить файл базы данных. Проверьте логи сервера."
	textDumpCaption       = "📦 Резервная копия базы данных каналов."
	buttonSelectAdmin     = "Выбрать администратора"
)

// handleBotCommand runs a slash command. Returns false for unknown commands.
func (c *Channel) handleBotCommand(ctx context.Context, message *telego.Message) bool {
	text := strings.TrimSpace(message.Text)
	cmd, args, _ := strings.Cut(text, " ")
	// Strip the @botname suffix.
	cmd, _, _ = strings.Cut(cmd, "@")
	cmd = strings.ToLower(cmd)
	args = strings.TrimSpace(args)

	chatID := message.Chat.ID

	switch cmd {
	case "/start":
		c.reply(ctx, chatID, textWelcome)
	case "/help":
		c.reply(ctx, chatID, HelpText(c.config.IsFixedChannelMode()))
	case "/info":
		c.cmdInfo(ctx, message)
	case "/setchannel":
		c.cmdSetChannel(ctx, message, args)
	case "/removechannel":
		c.cmdRemoveChannel(ctx, message)
	case "/set_fa_blurb":
		c.cmdSetBlurb(ctx, message, args)
	case "/notify_add":
		c.cmdNotifyChange(ctx, message, args, store.NotifyAdd)
	case "/notify_remove":
		c.cmdNotifyChange(ctx, message, args, store.NotifyRemove)
	case "/notify_list":
		c.cmdNotifyList(ctx, message)
	case "/dump_db":
		c.cmdDumpDB(ctx, message)
	default:
		return false
	}
	return true
}

// requireChannel resolves the sender's channel, replying with guidance when
// the sender or the channel is unknown.
func (c *Channel) requireChannel(ctx context.Context, message *telego.Message) (*store.ChannelConfig, bool) {
	if message.From == nil {
		c.reply(ctx, message.Chat.ID, textUnidentified)
		return nil, false
	}
	channel, err := c.resolver.Resolve(ctx, message.From.ID)
	if err != nil {
		slog.Warn("telegram: resolve channel", "user_id", message.From.ID, "error", err)
	}
	if channel == nil {
		c.reply(ctx, message.Chat.ID, textNotConfigured)
		return nil, false
	}
	return channel, true
}

func (c *Channel) cmdInfo(ctx context.Context, message *telego.Message) {
	if message.From == nil {
		c.reply(ctx, message.Chat.ID, textUnidentified)
		return
	}
	user := message.From
	fixed := c.config.IsFixedChannelMode()

	var sections []string
	sections = append(sections, "🤖 <b>Конфигурация бота</b>")

	userLine := "👤 <b>Пользователь:</b> " + html.EscapeString(user.FirstName)
	if user.Username != "" {
		userLine += " (@" + html.EscapeString(user.Username) + ")"
	}
	sections = append(sections, fmt.Sprintf("%s\n📱 <b>ID пользователя:</b> <code>%d</code>", userLine, user.ID))

	channel, err := c.resolver.Resolve(ctx, user.ID)
	if err != nil {
		slog.Warn("telegram: resolve channel", "user_id", user.ID, "error", err)
	}
	if channel == nil {
		lines := "📢 <b>Настроенный канал:</b> Нет\n❌ Канал не настроен"
		if !fixed {
			lines += "\nИспользуйте /setchannel для настройки"
		}
		sections = append(sections, lines)
		c.reply(ctx, message.Chat.ID, strings.Join(sections, "\n\n"))
		return
	}

	channelSection := "📢 <b>Настроенный канал:</b>\n" + moderation.FormatChannelInfo(channel.ChannelID, channel.ChannelTitle)
	if fixed {
		channelSection += "\n🔒 Фиксированный канал (установлен администратором)"
	}
	sections = append(sections, channelSection)

	reqs := c.checker.Compute(ctx, channel.ChannelID)
	sections = append(sections, "📋 <b>Требования:</b>\n"+moderation.FormatRequirements(reqs))

	if settings, err := c.settings.GetSettings(ctx, channel.ChannelID); err == nil && settings.ForeignAgentBlurb != "" {
		sections = append(sections, "⚙️ <b>Настройки канала:</b>\n🌍 <b>Текст иностранного агента:</b>\n"+
			html.EscapeString(settings.ForeignAgentBlurb))
	}

	if perms, err := moderation.CheckUserPermissions(ctx, c.api, channel.ChannelID, user.ID); err == nil {
		sections = append(sections, formatPermissions(perms))
	}

	if !fixed {
		sections = append(sections, "Используйте /removechannel для удаления этой конфигурации")
	}
	c.reply(ctx, message.Chat.ID, strings.Join(sections, "\n\n"))
}

func formatPermissions(p moderation.UserPermissions) string {
	lines := []string{"👤 <b>Ваши разрешения:</b>"}
	if p.IsMember {
		lines = append(lines, "✅ Участник канала")
	} else {
		lines = append(lines, "❌ Не является участником канала")
	}
	if !p.IsAdmin {
		return strings.Join(append(lines, "❌ Не является администратором"), "\n")
	}
	lines = append(lines, "✅ Администратор")
	if p.CanPostMessages {
		lines = append(lines, "⚠️ Может публиковать сообщения (Это право следует убрать, чтобы предотвратить обход бота)")
	}
	if p.CanEditMessages {
		lines = append(lines, "✅ Может редактировать сообщения")
	}
	if p.CanManageChat {
		lines = append(lines, "✅ Может управлять чатом")
	}
	return strings.Join(lines, "\n")
}

func (c *Channel) cmdSetChannel(ctx context.Context, message *telego.Message, args string) {
	if c.config.IsFixedChannelMode() {
		c.reply(ctx, message.Chat.ID, textFixedChannel)
		return
	}
	if message.From == nil {
		c.reply(ctx, message.Chat.ID, textUnidentified)
		return
	}
	if args == "" {
		c.reply(ctx, message.Chat.ID, textSetChannelUsage)
		return
	}
	c.configureChannel(ctx, message.Chat.ID, message.From.ID, args)
}

// configureChannel resolves identifier, proves the bot can post by sending
// and deleting a probe message, and stores the channel in the session.
func (c *Channel) configureChannel(ctx context.Context, chatID, userID int64, identifier string) {
	chat, err := c.api.GetChat(ctx, &telego.GetChatParams{ChatID: moderation.ChatID(identifier)})
	if err != nil || (chat.Type != telego.ChatTypeChannel && chat.Type != telego.ChatTypeSupergroup) {
		slog.Debug("telegram: channel lookup failed", "identifier", identifier, "error", err)
		c.reply(ctx, chatID, textChannelNotFound)
		return
	}

	channelID := strconv.FormatInt(chat.ID, 10)
	probe, err := c.api.SendMessage(ctx, tu.Message(tu.ID(chat.ID), textPermissionProbe))
	if err != nil {
		slog.Info("telegram: permission probe failed", "channel_id", channelID, "error", err)
		c.reply(ctx, chatID, textBotCannotPost)
		return
	}
	if err := c.api.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: tu.ID(chat.ID), MessageID: probe.MessageID}); err != nil {
		slog.Warn("telegram: delete permission probe", "channel_id", channelID, "error", err)
	}

	err = c.saveSession(ctx, userID, func(s *store.SessionData) {
		s.ChannelConfig = &store.ChannelConfig{ChannelID: channelID, ChannelTitle: chat.Title}
		s.AwaitingChannelSelection = false
	})
	if err != nil {
		slog.Error("telegram: save channel", "user_id", userID, "channel_id", channelID, "error", err)
		c.reply(ctx, chatID, textSettingsFailed)
		return
	}

	slog.Info("telegram: channel configured", "user_id", userID, "channel_id", channelID)
	c.send(ctx, chatID, "✅ Канал успешно настроен!\n\nВаши сообщения будут публиковаться в: "+
		moderation.FormatChannelInfo(channelID, chat.Title)+
		"\n\nОтправьте мне любое сообщение, чтобы проверить.", removeKeyboard())
}

func (c *Channel) cmdRemoveChannel(ctx context.Context, message *telego.Message) {
	if c.config.IsFixedChannelMode() {
		c.reply(ctx, message.Chat.ID, textFixedChannel)
		return
	}
	if message.From == nil {
		c.reply(ctx, message.Chat.ID, textUnidentified)
		return
	}

	removed := false
	err := c.saveSession(ctx, message.From.ID, func(s *store.SessionData) {
		removed = s.ChannelConfig != nil
		s.ChannelConfig = nil
		s.AwaitingChannelSelection = false
	})
	if err != nil {
		slog.Error("telegram: remove channel", "user_id", message.From.ID, "error", err)
		c.reply(ctx, message.Chat.ID, textSettingsFailed)
		return
	}
	if !removed {
		c.send(ctx, message.Chat.ID, textNoChannel, removeKeyboard())
		return
	}
	c.send(ctx, message.Chat.ID, textChannelRemoved, removeKeyboard())
}

func (c *Channel) cmdSetBlurb(ctx context.Context, message *telego.Message, args string) {
	channel, ok := c.requireChannel(ctx, message)
	if !ok {
		return
	}
	info := moderation.FormatChannelInfo(channel.ChannelID, channel.ChannelTitle)

	if args == "" {
		blurb := "<i>Не настроено</i>"
		settings, err := c.settings.GetSettings(ctx, channel.ChannelID)
		if err == nil && settings.ForeignAgentBlurb != "" {
			blurb = html.EscapeString(settings.ForeignAgentBlurb)
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("telegram: load settings", "channel_id", channel.ChannelID, "error", err)
		}
		c.reply(ctx, message.Chat.ID, "⚙️ <b>Настройки канала</b>\n\n📢 <b>Канал:</b> "+info+
			"\n\n🌍 <b>Текст иностранного агента:</b>\n"+blurb+
			"\n\nЧтобы обновить текст иностранного агента, используйте:\n/set_fa_blurb &lt;ваш текст&gt;")
		return
	}

	perms, err := moderation.CheckUserPermissions(ctx, c.api, channel.ChannelID, message.From.ID)
	if err != nil || !perms.CanManageChat {
		c.reply(ctx, message.Chat.ID, textBlurbNeedsManage)
		return
	}

	blurb := strings.TrimSpace(args)
	if blurb == "" {
		c.reply(ctx, message.Chat.ID, textBlurbEmpty)
		return
	}
	if err := c.settings.UpdateBlurb(ctx, channel.ChannelID, blurb); err != nil {
		slog.Error("telegram: update blurb", "channel_id", channel.ChannelID, "error", err)
		c.reply(ctx, message.Chat.ID, textSettingsFailed)
		return
	}

	slog.Info("telegram: blurb updated", "channel_id", channel.ChannelID, "user_id", message.From.ID)
	c.reply(ctx, message.Chat.ID, "✅ Текст иностранного агента успешно обновлен!\n\n📢 <b>Канал:</b> "+info+
		"\n\n🌍 <b>Новый текст иностранного агента:</b>\n"+html.EscapeString(blurb))
}

type requiredPermission int

const (
	permAdmin requiredPermission = iota
	permManageChat
)

// validateNotifyAccess checks that the sender administers their channel.
func (c *Channel) validateNotifyAccess(ctx context.Context, message *telego.Message, need requiredPermission) (*store.ChannelConfig, bool) {
	channel, ok := c.requireChannel(ctx, message)
	if !ok {
		return nil, false
	}
	perms, err := moderation.CheckUserPermissions(ctx, c.api, channel.ChannelID, message.From.ID)
	if err != nil {
		slog.Debug("telegram: permission lookup failed", "user_id", message.From.ID, "error", err)
	}

	switch need {
	case permAdmin:
		if !perms.IsAdmin {
			c.reply(ctx, message.Chat.ID, textNotifyNeedsAdmin)
			return nil, false
		}
	default:
		if !perms.CanManageChat {
			c.reply(ctx, message.Chat.ID, textNotifyNeedsManage)
			return nil, false
		}
	}
	return channel, true
}

// cmdNotifyChange takes a numeric user id argument, or opens the
// request-users keyboard when none is given.
func (c *Channel) cmdNotifyChange(ctx context.Context, message *telego.Message, args string, op store.NotifyOperation) {
	channel, ok := c.validateNotifyAccess(ctx, message, permManageChat)
	if !ok {
		return
	}

	if args != "" {
		targetID, err := strconv.ParseInt(args, 10, 64)
		if err != nil || targetID <= 0 {
			c.reply(ctx, message.Chat.ID, textBadUserID)
			return
		}
		c.applyNotifyOperation(ctx, message.Chat.ID, channel, targetID, op)
		return
	}

	err := c.saveSession(ctx, message.From.ID, func(s *store.SessionData) {
		s.AwaitingNotificationUserSelection = op
	})
	if err != nil {
		slog.Error("telegram: save session", "user_id", message.From.ID, "error", err)
		c.reply(ctx, message.Chat.ID, textSettingsFailed)
		return
	}

	prompt := "👤 Пожалуйста, выберите администратора для добавления в список уведомлений."
	if op == store.NotifyRemove {
		prompt = "👤 Пожалуйста, выберите администратора для удаления из списка уведомлений."
	}
	c.send(ctx, message.Chat.ID, prompt, userSelectionKeyboard(op))
}

func userSelectionKeyboard(op store.NotifyOperation) *telego.ReplyKeyboardMarkup {
	request := &telego.KeyboardButtonRequestUsers{RequestID: moderation.RequestIDAddNotify, MaxQuantity: 1}
	if op == store.NotifyRemove {
		request.RequestID = moderation.RequestIDRemoveNotify
	}
	return &telego.ReplyKeyboardMarkup{
		Keyboard: [][]telego.KeyboardButton{{{
			Text:         buttonSelectAdmin,
			RequestUsers: request,
		}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// applyNotifyOperation adds or removes target after checking it is a
// channel admin.
func (c *Channel) applyNotifyOperation(ctx context.Context, chatID int64, channel *store.ChannelConfig, targetID int64, op store.NotifyOperation) {
	perms, err := moderation.CheckUserPermissions(ctx, c.api, channel.ChannelID, targetID)
	if err != nil || !perms.IsAdmin {
		c.send(ctx, chatID, textTargetNotAdmin, removeKeyboard())
		return
	}

	info := moderation.FormatChannelInfo(channel.ChannelID, channel.ChannelTitle)
	idLine := fmt.Sprintf("🆔 <b>ID пользователя:</b> <code>%d</code>", targetID)

	if op == store.NotifyRemove {
		if err := c.settings.RemoveNotificationUser(ctx, channel.ChannelID, targetID); err != nil {
			slog.Error("telegram: remove notification user", "channel_id", channel.ChannelID, "target_id", targetID, "error", err)
			c.send(ctx, chatID, textSettingsFailed, removeKeyboard())
			return
		}
		c.send(ctx, chatID, "✅ Администратор успешно удален из списка уведомлений!\n\n📢 <b>Канал:</b> "+info+"\n\n"+idLine, removeKeyboard())
		return
	}

	if err := c.settings.AddNotificationUser(ctx, channel.ChannelID, targetID); err != nil {
		slog.Error("telegram: add notification user", "channel_id", channel.ChannelID, "target_id", targetID, "error", err)
		c.send(ctx, chatID, textSettingsFailed, removeKeyboard())
		return
	}
	c.send(ctx, chatID, "✅ Администратор успешно добавлен в список уведомлений!\n\n📢 <b>Канал:</b> "+info+"\n\n"+idLine+
		"\n\nАдминистратор будет получать уведомления, когда сообщения отклоняются из-за отсутствия текста иностранного агента.",
		removeKeyboard())
}

func (c *Channel) cmdNotifyList(ctx context.Context, message *telego.Message) {
	channel, ok := c.validateNotifyAccess(ctx, message, permAdmin)
	if !ok {
		return
	}

	ids, err := c.settings.ListNotificationUsers(ctx, channel.ChannelID)
	if err != nil {
		slog.Error("telegram: list notification users", "channel_id", channel.ChannelID, "error", err)
		c.reply(ctx, message.Chat.ID, textSettingsFailed)
		return
	}

	var b strings.Builder
	b.WriteString("🔔 <b>Список уведомлений</b>\n\n📢 <b>Канал:</b> ")
	b.WriteString(moderation.FormatChannelInfo(channel.ChannelID, channel.ChannelTitle))
	b.WriteString("\n\n")

	if len(ids) == 0 {
		b.WriteString("Список пуст. Используйте /notify_add для добавления администраторов.")
		c.reply(ctx, message.Chat.ID, b.String())
		return
	}

	b.WriteString("👥 <b>Подписчики на уведомления:</b>\n")
	for _, id := range ids {
		member, err := c.api.GetChatMember(ctx, &telego.GetChatMemberParams{
			ChatID: moderation.ChatID(channel.ChannelID),
			UserID: id,
		})
		user, ok := moderation.MemberUser(member)
		if err != nil || !ok {
			fmt.Fprintf(&b, "• ID: <code>%d</code> (недоступен)\n", id)
			continue
		}
		b.WriteString("• ")
		b.WriteString(html.EscapeString(user.FirstName))
		if user.Username != "" {
			b.WriteString(" (@" + html.EscapeString(user.Username) + ")")
		}
		fmt.Fprintf(&b, " <code>%d</code>\n", id)
	}
	fmt.Fprintf(&b, "\n<b>Всего:</b> %d", len(ids))
	c.reply(ctx, message.Chat.ID, b.String())
}

// cmdDumpDB sends a snapshot of the SQLite database to the bot owner.
// Anyone else gets no answer.
func (c *Channel) cmdDumpDB(ctx context.Context, message *telego.Message) {
	if message.From == nil || !c.config.IsOwner(message.From.ID) {
		var userID int64
		if message.From != nil {
			userID = message.From.ID
		}
		slog.Warn("telegram: unauthorized /dump_db attempt", "user_id", userID)
		return
	}
	if message.Chat.Type != telego.ChatTypePrivate {
		c.reply(ctx, message.Chat.ID, textPrivateOnly)
		return
	}
	if c.dumpDB == nil {
		c.reply(ctx, message.Chat.ID, textDumpMissing)
		return
	}

	path, err := c.dumpDB(ctx)
	if err != nil {
		slog.Error("telegram: snapshot database", "error", err)
		c.reply(ctx, message.Chat.ID, textDumpFailed)
		return
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		slog.Error("telegram: open database snapshot", "path", path, "error", err)
		c.reply(ctx, message.Chat.ID, textDumpMissing)
		return
	}
	defer f.Close()

	_, err = c.api.SendDocument(ctx, &telego.SendDocumentParams{
		ChatID:   tu.ID(message.Chat.ID),
		Document: tu.File(f),
		Caption:  textDumpCaption,
	})
	if err != nil {
		slog.Error("telegram: send database dump", "error", err)
		c.reply(ctx, message.Chat.ID, textDumpFailed)
	}
}
