package telegram

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/fabot/internal/channels"
	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/mediagroup"
	"github.com/nextlevelbuilder/fabot/internal/moderation"
	"github.com/nextlevelbuilder/fabot/internal/store"
	"github.com/nextlevelbuilder/fabot/internal/store/sqlite"
)

const (
	botID     int64 = 500
	ownerID   int64 = 7
	userID    int64 = 42
	channelID int64 = -100123
)

// fakeAPI is an in-memory Bot API.
type fakeAPI struct {
	mu        sync.Mutex
	sent      []*telego.SendMessageParams
	copies    []*telego.CopyMessageParams
	deletes   []*telego.DeleteMessageParams
	documents []*telego.SendDocumentParams
	commands  []telego.BotCommand

	chats    map[string]*telego.ChatFullInfo
	members  map[string]telego.ChatMember
	failSend map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		chats:    map[string]*telego.ChatFullInfo{},
		members:  map[string]telego.ChatMember{},
		failSend: map[string]bool{},
	}
}

func (f *fakeAPI) setMember(chat, user int64, m telego.ChatMember) {
	f.members[fmt.Sprintf("%d/%d", chat, user)] = m
}

func (f *fakeAPI) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[p.ChatID.String()] {
		return nil, errors.New("forbidden")
	}
	f.sent = append(f.sent, p)
	return &telego.Message{MessageID: 1000 + len(f.sent)}, nil
}

func (f *fakeAPI) CopyMessage(_ context.Context, p *telego.CopyMessageParams) (*telego.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, p)
	return &telego.MessageID{MessageID: p.MessageID}, nil
}

func (f *fakeAPI) CopyMessages(context.Context, *telego.CopyMessagesParams) ([]telego.MessageID, error) {
	return nil, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, p *telego.DeleteMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, p)
	return nil
}

func (f *fakeAPI) DeleteMessages(context.Context, *telego.DeleteMessagesParams) error { return nil }

func (f *fakeAPI) GetChat(_ context.Context, p *telego.GetChatParams) (*telego.ChatFullInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chat, ok := f.chats[p.ChatID.String()]; ok {
		return chat, nil
	}
	return nil, errors.New("chat not found")
}

func (f *fakeAPI) GetChatMember(_ context.Context, p *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[fmt.Sprintf("%s/%d", p.ChatID.String(), p.UserID)]; ok {
		return m, nil
	}
	return nil, errors.New("user not found")
}

func (f *fakeAPI) SendDocument(_ context.Context, p *telego.SendDocumentParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, p)
	return &telego.Message{}, nil
}

func (f *fakeAPI) SetMyCommands(_ context.Context, p *telego.SetMyCommandsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = p.Commands
	return nil
}

func (f *fakeAPI) DeleteMyCommands(context.Context, *telego.DeleteMyCommandsParams) error { return nil }

func (f *fakeAPI) lastTextTo(chat int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := tu.ID(chat).String()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID.String() == want {
			return f.sent[i].Text
		}
	}
	return ""
}

func (f *fakeAPI) lastMarkupTo(chat int64) telego.ReplyMarkup {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := tu.ID(chat).String()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID.String() == want {
			return f.sent[i].ReplyMarkup
		}
	}
	return nil
}

type testEnv struct {
	api    *fakeAPI
	stores *store.Stores
	ch     *Channel
}

// newTestChannel builds a Channel on SQLite stores and a fake API. It skips
// bot initialisation, which requires a real Telegram token.
func newTestChannel(t *testing.T, cfg config.TelegramConfig) *testEnv {
	t.Helper()
	api := newFakeAPI()
	stores, err := sqlite.NewStores(filepath.Join(t.TempDir(), "fabot.db"))
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	groups := mediagroup.New(mediagroup.Options{})
	t.Cleanup(groups.Close)

	var resolver moderation.ChannelResolver = moderation.SessionResolver{Sessions: stores.Sessions}
	if cfg.IsFixedChannelMode() {
		resolver = moderation.FixedResolver{Channel: store.ChannelConfig{ChannelID: cfg.FixedChannel()}}
	}
	checker := moderation.NewChecker(api, stores.Settings, botID)
	dispatcher := moderation.NewDispatcher(moderation.DispatcherConfig{
		Platform: api,
		Sessions: stores.Sessions,
		Settings: stores.Settings,
		Resolver: resolver,
		Groups:   groups,
		Notifier: moderation.NewNotifier(moderation.NotifierConfig{Platform: api, Settings: stores.Settings}),
		Checker:  checker,
		BotID:    botID,
	})

	ch := New(Options{
		API:        api,
		Config:     cfg,
		Sessions:   stores.Sessions,
		Settings:   stores.Settings,
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Checker:    checker,
		DumpDB: func(ctx context.Context) (string, error) {
			return sqlite.Snapshot(ctx, stores.DB, t.TempDir())
		},
	})

	api.chats[tu.ID(channelID).String()] = &telego.ChatFullInfo{ID: channelID, Type: telego.ChatTypeChannel, Title: "News"}
	api.setMember(channelID, botID, &telego.ChatMemberAdministrator{CanPostMessages: true})
	api.setMember(channelID, userID, &telego.ChatMemberOwner{User: telego.User{ID: userID, FirstName: "Ann"}})

	return &testEnv{api: api, stores: stores, ch: ch}
}

func (e *testEnv) configureSession(t *testing.T) {
	t.Helper()
	err := e.stores.Sessions.Save(context.Background(), userID, &store.SessionData{
		ChannelConfig: &store.ChannelConfig{ChannelID: "-100123", ChannelTitle: "News"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func privateText(from int64, text string) *telego.Message {
	return &telego.Message{
		MessageID: 1,
		From:      &telego.User{ID: from, FirstName: "Ann"},
		Chat:      telego.Chat{ID: from, Type: telego.ChatTypePrivate},
		Text:      text,
	}
}

func TestHelpText_HidesChannelCommandsInFixedMode(t *testing.T) {
	open := HelpText(false)
	fixed := HelpText(true)

	if !strings.Contains(open, "/setchannel") || !strings.Contains(open, "/removechannel") {
		t.Errorf("open-mode help lacks channel commands:\n%s", open)
	}
	if strings.Contains(fixed, "/setchannel") || strings.Contains(fixed, "/removechannel") {
		t.Errorf("fixed-mode help lists channel commands:\n%s", fixed)
	}
	if len(MenuCommands(true)) != len(MenuCommands(false))-2 {
		t.Errorf("menu sizes: fixed=%d open=%d", len(MenuCommands(true)), len(MenuCommands(false)))
	}
}

func TestSyncMenuCommands(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	if err := env.ch.SyncMenuCommands(context.Background(), MenuCommands(false)); err != nil {
		t.Fatal(err)
	}
	if len(env.api.commands) != len(commandDefs) {
		t.Errorf("registered %d commands, want %d", len(env.api.commands), len(commandDefs))
	}
}

func TestSetChannel(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	ctx := context.Background()

	env.ch.handleMessage(ctx, privateText(userID, "/setchannel -100123"))

	sess, err := env.stores.Sessions.Get(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ChannelConfig == nil || sess.ChannelConfig.ChannelID != "-100123" || sess.ChannelConfig.ChannelTitle != "News" {
		t.Fatalf("session = %+v", sess.ChannelConfig)
	}
	if len(env.api.deletes) != 1 {
		t.Errorf("probe message not deleted: %v", env.api.deletes)
	}
	if got := env.api.lastTextTo(userID); !strings.HasPrefix(got, "✅ Канал успешно настроен!") {
		t.Errorf("reply = %q", got)
	}
}

func TestSetChannel_Failures(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		setup func(e *testEnv)
		want  string
	}{
		{name: "missing argument", text: "/setchannel", want: "Пожалуйста, укажите идентификатор канала."},
		{name: "unknown channel", text: "/setchannel @nowhere", want: "Не удалось найти канал"},
		{
			name:  "bot cannot post",
			text:  "/setchannel -100123",
			setup: func(e *testEnv) { e.api.failSend["-100123"] = true },
			want:  "У бота нет разрешения",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestChannel(t, config.TelegramConfig{})
			if tt.setup != nil {
				tt.setup(env)
			}
			env.ch.handleMessage(context.Background(), privateText(userID, tt.text))

			if got := env.api.lastTextTo(userID); !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
			sess, _ := env.stores.Sessions.Get(context.Background(), userID)
			if sess.ChannelConfig != nil {
				t.Errorf("channel saved on failure: %+v", sess.ChannelConfig)
			}
		})
	}
}

func TestSetChannel_RefusedInFixedMode(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{FixedChannelID: "-100123"})
	env.ch.handleMessage(context.Background(), privateText(userID, "/setchannel @other"))

	if got := env.api.lastTextTo(userID); got != textFixedChannel {
		t.Errorf("reply = %q", got)
	}
}

func TestRemoveChannel(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	ctx := context.Background()

	env.ch.handleMessage(ctx, privateText(userID, "/removechannel"))
	if got := env.api.lastTextTo(userID); got != textChannelRemoved {
		t.Errorf("reply = %q", got)
	}

	env.ch.handleMessage(ctx, privateText(userID, "/removechannel"))
	if got := env.api.lastTextTo(userID); got != textNoChannel {
		t.Errorf("second reply = %q", got)
	}
}

func TestChatShared_ReconfiguresAwaitingUser(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	ctx := context.Background()
	msg := privateText(userID, "")
	msg.ChatShared = &telego.ChatShared{RequestID: moderation.RequestIDSelectChannel, ChatID: channelID}

	// Ignored unless the session awaits a selection.
	env.ch.handleMessage(ctx, msg)
	if len(env.api.sent) != 0 {
		t.Fatalf("unexpected replies: %d", len(env.api.sent))
	}

	if err := env.stores.Sessions.Save(ctx, userID, &store.SessionData{AwaitingChannelSelection: true}); err != nil {
		t.Fatal(err)
	}
	env.ch.handleMessage(ctx, msg)

	sess, _ := env.stores.Sessions.Get(ctx, userID)
	if sess.ChannelConfig == nil || sess.ChannelConfig.ChannelID != "-100123" || sess.AwaitingChannelSelection {
		t.Errorf("session = %+v", sess)
	}
}

func TestSetBlurb(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	ctx := context.Background()

	env.ch.handleMessage(ctx, privateText(userID, "/set_fa_blurb"))
	if got := env.api.lastTextTo(userID); !strings.Contains(got, "<i>Не настроено</i>") {
		t.Errorf("view reply = %q", got)
	}

	env.ch.handleMessage(ctx, privateText(userID, "/set_fa_blurb  ИНОАГЕНТ <18+> "))
	settings, err := env.stores.Settings.GetSettings(ctx, "-100123")
	if err != nil || settings.ForeignAgentBlurb != "ИНОАГЕНТ <18+>" {
		t.Fatalf("settings = %+v, %v", settings, err)
	}
	if got := env.api.lastTextTo(userID); !strings.Contains(got, "ИНОАГЕНТ &lt;18+&gt;") {
		t.Errorf("update reply = %q", got)
	}
}

func TestSetBlurb_RequiresManageChat(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	env.api.setMember(channelID, userID, &telego.ChatMemberAdministrator{CanEditMessages: true})

	env.ch.handleMessage(context.Background(), privateText(userID, "/set_fa_blurb text"))

	if got := env.api.lastTextTo(userID); got != textBlurbNeedsManage {
		t.Errorf("reply = %q", got)
	}
	if _, err := env.stores.Settings.GetSettings(context.Background(), "-100123"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("settings written without permission: %v", err)
	}
}

func TestNotifyAdd_ByIDAndList(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	ctx := context.Background()
	env.api.setMember(channelID, 77, &telego.ChatMemberAdministrator{User: telego.User{ID: 77, FirstName: "Bob", Username: "bob"}})

	env.ch.handleMessage(ctx, privateText(userID, "/notify_add 77"))
	env.ch.handleMessage(ctx, privateText(userID, "/notify_add 88")) // not an admin
	if got := env.api.lastTextTo(userID); got != textTargetNotAdmin {
		t.Errorf("non-admin reply = %q", got)
	}

	ids, err := env.stores.Settings.ListNotificationUsers(ctx, "-100123")
	if err != nil || len(ids) != 1 || ids[0] != 77 {
		t.Fatalf("ids = %v, %v", ids, err)
	}

	env.ch.handleMessage(ctx, privateText(userID, "/notify_list"))
	got := env.api.lastTextTo(userID)
	if !strings.Contains(got, "• Bob (@bob) <code>77</code>") || !strings.Contains(got, "<b>Всего:</b> 1") {
		t.Errorf("list = %q", got)
	}
}

func TestNotifyRemove_ViaUsersShared(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	ctx := context.Background()
	env.api.setMember(channelID, 77, &telego.ChatMemberAdministrator{})
	if err := env.stores.Settings.AddNotificationUser(ctx, "-100123", 77); err != nil {
		t.Fatal(err)
	}

	env.ch.handleMessage(ctx, privateText(userID, "/notify_remove"))
	if _, ok := env.api.lastMarkupTo(userID).(*telego.ReplyKeyboardMarkup); !ok {
		t.Fatalf("selection keyboard not sent")
	}
	sess, _ := env.stores.Sessions.Get(ctx, userID)
	if sess.AwaitingNotificationUserSelection != store.NotifyRemove {
		t.Fatalf("pending op = %q", sess.AwaitingNotificationUserSelection)
	}

	shared := privateText(userID, "")
	shared.UsersShared = &telego.UsersShared{
		RequestID: moderation.RequestIDRemoveNotify,
		Users:     []telego.SharedUser{{UserID: 77}},
	}
	env.ch.handleMessage(ctx, shared)

	ids, _ := env.stores.Settings.ListNotificationUsers(ctx, "-100123")
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
	sess, _ = env.stores.Sessions.Get(ctx, userID)
	if sess.AwaitingNotificationUserSelection != "" {
		t.Error("pending op not cleared")
	}
}

func TestNotifyList_RequiresAdmin(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	env.api.setMember(channelID, userID, &telego.ChatMemberMember{})

	env.ch.handleMessage(context.Background(), privateText(userID, "/notify_list"))
	if got := env.api.lastTextTo(userID); got != textNotifyNeedsAdmin {
		t.Errorf("reply = %q", got)
	}
}

func TestInfo(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)

	env.ch.handleMessage(context.Background(), privateText(userID, "/info"))
	got := env.api.lastTextTo(userID)
	for _, want := range []string{
		"<code>42</code>",
		"News (<code>-100123</code>)",
		"❌ 🌍 Текст иностранного агента не настроен",
		"✅ Администратор",
		"/removechannel",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("info missing %q:\n%s", want, got)
		}
	}
}

func TestDumpDB(t *testing.T) {
	t.Run("owner gets a document", func(t *testing.T) {
		env := newTestChannel(t, config.TelegramConfig{OwnerID: ownerID})
		env.ch.handleMessage(context.Background(), privateText(ownerID, "/dump_db"))
		if len(env.api.documents) != 1 || env.api.documents[0].Caption != textDumpCaption {
			t.Fatalf("documents = %+v", env.api.documents)
		}
	})

	t.Run("others are ignored", func(t *testing.T) {
		env := newTestChannel(t, config.TelegramConfig{OwnerID: ownerID})
		env.ch.handleMessage(context.Background(), privateText(userID, "/dump_db"))
		if len(env.api.documents) != 0 || len(env.api.sent) != 0 {
			t.Errorf("non-owner got a response")
		}
	})
}

func TestHandleUpdate_RoutesChannelPost(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	ctx := context.Background()
	if err := env.stores.Settings.UpdateBlurb(ctx, "-100123", "18+"); err != nil {
		t.Fatal(err)
	}

	env.ch.handleUpdate(ctx, telego.Update{ChannelPost: &telego.Message{
		MessageID: 5,
		Chat:      telego.Chat{ID: channelID, Type: telego.ChatTypeChannel},
		Text:      "no disclosure",
	}})

	if len(env.api.deletes) != 1 || env.api.deletes[0].MessageID != 5 {
		t.Errorf("deletes = %+v", env.api.deletes)
	}
}

func TestHandleMessage_RelaysPrivateContent(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	ctx := context.Background()
	if err := env.stores.Settings.UpdateBlurb(ctx, "-100123", "18+"); err != nil {
		t.Fatal(err)
	}

	env.ch.handleMessage(ctx, privateText(userID, "hello 18+"))

	if len(env.api.copies) != 1 || env.api.copies[0].ChatID.String() != "-100123" {
		t.Errorf("copies = %+v", env.api.copies)
	}
}

func TestHandleMessage_UnmatchedCommandRelayed(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.configureSession(t)
	ctx := context.Background()
	if err := env.stores.Settings.UpdateBlurb(ctx, "-100123", "18+"); err != nil {
		t.Fatal(err)
	}

	env.ch.handleMessage(ctx, privateText(userID, "/foo 18+"))

	if len(env.api.copies) != 1 || env.api.copies[0].ChatID.String() != "-100123" {
		t.Errorf("copies = %+v", env.api.copies)
	}
}

func TestHandleMessage_SenderRateLimited(t *testing.T) {
	env := newTestChannel(t, config.TelegramConfig{})
	env.ch.limiter = channels.NewSenderRateLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.ch.handleMessage(ctx, privateText(userID, "/help"))
	}

	if got := len(env.api.sent); got != 2 {
		t.Errorf("replies = %d, want 2 (third message throttled)", got)
	}
}
