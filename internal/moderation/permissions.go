package moderation

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
)

// UserPermissions is a user's standing in a channel.
type UserPermissions struct {
	IsMember        bool
	IsAdmin         bool
	IsOwner         bool
	CanPostMessages bool
	CanEditMessages bool
	CanManageChat   bool
}

// PermissionsFromMember maps a chat member record to permissions. Owners hold
// every right.
func PermissionsFromMember(member telego.ChatMember) UserPermissions {
	switch m := member.(type) {
	case *telego.ChatMemberOwner:
		return UserPermissions{
			IsMember:        true,
			IsAdmin:         true,
			IsOwner:         true,
			CanPostMessages: true,
			CanEditMessages: true,
			CanManageChat:   true,
		}
	case *telego.ChatMemberAdministrator:
		return UserPermissions{
			IsMember:        true,
			IsAdmin:         true,
			CanPostMessages: m.CanPostMessages,
			CanEditMessages: m.CanEditMessages,
			CanManageChat:   m.CanManageChat,
		}
	case *telego.ChatMemberMember:
		return UserPermissions{IsMember: true}
	case *telego.ChatMemberRestricted:
		return UserPermissions{IsMember: m.IsMember}
	default:
		return UserPermissions{}
	}
}

// CheckUserPermissions fetches userID's membership in channelID.
func CheckUserPermissions(ctx context.Context, p Platform, channelID string, userID int64) (UserPermissions, error) {
	member, err := p.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: ChatID(channelID),
		UserID: userID,
	})
	if err != nil {
		return UserPermissions{}, fmt.Errorf("get chat member %d in %s: %w", userID, channelID, err)
	}
	return PermissionsFromMember(member), nil
}

// MemberUser returns the user behind a chat member record.
func MemberUser(member telego.ChatMember) (telego.User, bool) {
	switch m := member.(type) {
	case *telego.ChatMemberOwner:
		return m.User, true
	case *telego.ChatMemberAdministrator:
		return m.User, true
	case *telego.ChatMemberMember:
		return m.User, true
	case *telego.ChatMemberRestricted:
		return m.User, true
	case *telego.ChatMemberLeft:
		return m.User, true
	case *telego.ChatMemberBanned:
		return m.User, true
	}
	return telego.User{}, false
}
