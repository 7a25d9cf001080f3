// Package compliance decides whether Telegram messages carry the
// foreign-agent disclosure text configured for a channel.
package compliance

import (
	"strings"

	"github.com/mymmrac/telego"
)

// Actor identifies who authored a message. ID is zero when only a
// signature is known (anonymous channel posts).
type Actor struct {
	ID          int64
	DisplayName string
	Username    string
}

// HasID reports whether the actor has a numeric Telegram user id.
func (a *Actor) HasID() bool {
	return a != nil && a.ID != 0
}

// MessageText returns the displayable text of a message: the text field,
// falling back to the caption for media messages.
func MessageText(msg *telego.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// MessageSatisfiesBlurb reports whether the message text contains blurb as a
// literal, case-sensitive substring. Callers must not pass an empty blurb:
// an unconfigured blurb is handled before compliance is evaluated.
func MessageSatisfiesBlurb(msg *telego.Message, blurb string) bool {
	if msg == nil {
		return false
	}
	return strings.Contains(MessageText(msg), blurb)
}

// GroupSatisfiesBlurb reports whether at least one message of an album
// satisfies the blurb. Albums usually carry the caption on a single item.
func GroupSatisfiesBlurb(msgs []*telego.Message, blurb string) bool {
	for _, msg := range msgs {
		if MessageSatisfiesBlurb(msg, blurb) {
			return true
		}
	}
	return false
}

// GroupValidator returns an evaluate func for the media-group coordinator.
func GroupValidator(blurb string) func([]*telego.Message) bool {
	return func(msgs []*telego.Message) bool {
		return GroupSatisfiesBlurb(msgs, blurb)
	}
}

// ExtractActor returns the author of a message: the sender user when present,
// otherwise the author signature of a channel post. Returns nil when the
// author is unknown.
func ExtractActor(msg *telego.Message) *Actor {
	if msg == nil {
		return nil
	}
	if msg.From != nil {
		return &Actor{
			ID:          msg.From.ID,
			DisplayName: msg.From.FirstName,
			Username:    msg.From.Username,
		}
	}
	if msg.AuthorSignature != "" {
		return &Actor{DisplayName: msg.AuthorSignature}
	}
	return nil
}
