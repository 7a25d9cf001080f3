package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// fakePlatform records every call. Failures are injected per chat.
type fakePlatform struct {
	mu sync.Mutex

	sent    []sentMessage
	copies  []copyCall
	deletes []deleteCall

	failSendTo map[string]bool
	failCopyTo map[string]bool
	failDelete bool

	chats   map[string]*telego.ChatFullInfo
	members map[string]telego.ChatMember // key: chat + "/" + user id

	getChatMemberCalls int
}

type sentMessage struct {
	chat   string
	text   string
	markup telego.ReplyMarkup
}

type copyCall struct {
	to, from string
	ids      []int
}

type deleteCall struct {
	chat string
	ids  []int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		failSendTo: map[string]bool{},
		failCopyTo: map[string]bool{},
		chats:      map[string]*telego.ChatFullInfo{},
		members:    map[string]telego.ChatMember{},
	}
}

func memberKey(chat telego.ChatID, userID int64) string {
	return fmt.Sprintf("%s/%d", chat.String(), userID)
}

func (f *fakePlatform) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSendTo[p.ChatID.String()] {
		return nil, errors.New("send: forbidden")
	}
	f.sent = append(f.sent, sentMessage{chat: p.ChatID.String(), text: p.Text, markup: p.ReplyMarkup})
	return &telego.Message{MessageID: len(f.sent)}, nil
}

func (f *fakePlatform) CopyMessage(_ context.Context, p *telego.CopyMessageParams) (*telego.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopyTo[p.ChatID.String()] {
		return nil, errors.New("copy: chat not found")
	}
	f.copies = append(f.copies, copyCall{to: p.ChatID.String(), from: p.FromChatID.String(), ids: []int{p.MessageID}})
	return &telego.MessageID{MessageID: p.MessageID}, nil
}

func (f *fakePlatform) CopyMessages(_ context.Context, p *telego.CopyMessagesParams) ([]telego.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopyTo[p.ChatID.String()] {
		return nil, errors.New("copy: chat not found")
	}
	f.copies = append(f.copies, copyCall{to: p.ChatID.String(), from: p.FromChatID.String(), ids: append([]int(nil), p.MessageIDs...)})
	out := make([]telego.MessageID, len(p.MessageIDs))
	for i, id := range p.MessageIDs {
		out[i] = telego.MessageID{MessageID: id}
	}
	return out, nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, p *telego.DeleteMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete: not enough rights")
	}
	f.deletes = append(f.deletes, deleteCall{chat: p.ChatID.String(), ids: []int{p.MessageID}})
	return nil
}

func (f *fakePlatform) DeleteMessages(_ context.Context, p *telego.DeleteMessagesParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete: not enough rights")
	}
	f.deletes = append(f.deletes, deleteCall{chat: p.ChatID.String(), ids: append([]int(nil), p.MessageIDs...)})
	return nil
}

func (f *fakePlatform) GetChat(_ context.Context, p *telego.GetChatParams) (*telego.ChatFullInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[p.ChatID.String()]
	if !ok {
		return nil, errors.New("chat not found")
	}
	return chat, nil
}

func (f *fakePlatform) GetChatMember(_ context.Context, p *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getChatMemberCalls++
	m, ok := f.members[memberKey(p.ChatID, p.UserID)]
	if !ok {
		return nil, errors.New("user not found")
	}
	return m, nil
}

func (f *fakePlatform) sentTo(chat string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, s := range f.sent {
		if s.chat == chat {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakePlatform) copiesTo(chat string) []copyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []copyCall
	for _, c := range f.copies {
		if c.to == chat {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakePlatform) deleted() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deleteCall(nil), f.deletes...)
}

// memSettings is an in-memory ChannelSettingsStore.
type memSettings struct {
	mu      sync.Mutex
	data    map[string]store.ChannelSettingsData
	listErr error
}

func newMemSettings() *memSettings {
	return &memSettings{data: map[string]store.ChannelSettingsData{}}
}

func (m *memSettings) GetSettings(_ context.Context, channelID string) (*store.ChannelSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[channelID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.ChannelSettings{ChannelID: channelID, ChannelSettingsData: d}, nil
}

func (m *memSettings) UpdateBlurb(_ context.Context, channelID, blurb string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.data[channelID]
	d.ForeignAgentBlurb = blurb
	m.data[channelID] = d
	return nil
}

func (m *memSettings) DeleteSettings(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, channelID)
	return nil
}

func (m *memSettings) ListNotificationUsers(_ context.Context, channelID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]int64(nil), m.data[channelID].NotificationUserIDs...), nil
}

func (m *memSettings) AddNotificationUser(_ context.Context, channelID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.data[channelID]
	d.NotificationUserIDs = store.WithNotificationUser(d.NotificationUserIDs, userID)
	m.data[channelID] = d
	return nil
}

func (m *memSettings) RemoveNotificationUser(_ context.Context, channelID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.data[channelID]
	d.NotificationUserIDs = store.WithoutNotificationUser(d.NotificationUserIDs, userID)
	m.data[channelID] = d
	return nil
}

// memSessions is an in-memory SessionStore.
type memSessions struct {
	mu   sync.Mutex
	data map[int64]store.SessionData
}

func newMemSessions() *memSessions {
	return &memSessions{data: map[int64]store.SessionData{}}
}

func (m *memSessions) Get(_ context.Context, userID int64) (*store.SessionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.data[userID]
	return &d, nil
}

func (m *memSessions) Save(_ context.Context, userID int64, data *store.SessionData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = *data
	return nil
}

func (m *memSessions) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

// recordingReporter captures reports.
type recordingReporter struct {
	mu      sync.Mutex
	reports []report
}

type report struct {
	err   error
	kind  string
	attrs map[string]any
}

func (r *recordingReporter) Report(_ context.Context, err error, kind string, attrs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{err: err, kind: kind, attrs: attrs})
}

func (r *recordingReporter) byKind(kind string) []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []report
	for _, rep := range r.reports {
		if rep.kind == kind {
			out = append(out, rep)
		}
	}
	return out
}
