package transport

import (
	"context"
	"errors"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string

	// Content is the ingested payload of this message. The kind is decided
	// once here at the boundary, never re-derived at send sites.
	Content Content

	// ReplyTo carries the ingested content of the quoted message, if any.
	// Broadcast sources arrive this way.
	ReplyTo *Content
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode           string
	DisablePreview      bool
	DisableNotification bool
	ReplyMarkupAdapter  any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// ContentKind enumerates the closed set of payload shapes a message can carry.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentText
	ContentPhoto
	ContentVideo
	ContentAudio
	ContentDocument
	ContentAnimation
	ContentSticker
	ContentVoice
	ContentVideoNote
)

func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentPhoto:
		return "photo"
	case ContentVideo:
		return "video"
	case ContentAudio:
		return "audio"
	case ContentDocument:
		return "document"
	case ContentAnimation:
		return "animation"
	case ContentSticker:
		return "sticker"
	case ContentVoice:
		return "voice"
	case ContentVideoNote:
		return "video_note"
	default:
		return "none"
	}
}

// Content is a tagged variant over the nine sendable shapes. Exactly one
// shape is populated; Kind says which. Stickers and video notes never carry
// a caption.
type Content struct {
	Kind    ContentKind
	Text    string // ContentText only
	FileID  string // media kinds
	Caption string // media kinds except sticker/video note

	// Entities/ReplyMarkup are adapter-specific values preserved verbatim
	// from the source message (Telegram: tele.Entities, *tele.ReplyMarkup).
	Entities    any
	ReplyMarkup any
}

// ErrRecipientGone marks a terminal per-recipient delivery failure: the
// recipient blocked the bot, deleted the account or the chat no longer
// exists. Never retried.
var ErrRecipientGone = errors.New("recipient unreachable")

// ErrNoContent is returned when a Content has no recognized shape.
var ErrNoContent = errors.New("no sendable content")

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, url, caption string, opt *SendOptions) (MessageRef, error)
	SendVideo(ctx context.Context, to ChatTarget, url, caption string, opt *SendOptions) (MessageRef, error)
	SendContent(ctx context.Context, to ChatTarget, content Content, opt *SendOptions) error
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
