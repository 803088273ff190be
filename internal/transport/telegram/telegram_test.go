package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

func TestNormalizeCallbackData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"check_membership", "check_membership"},
		{"\fcheck_membership", "check_membership"},
		{"\fcheck_membership|extra", "check_membership"},
		{"action|payload", "action"},
		{"  spaced  ", "spaced"},
	}
	for _, tt := range tests {
		if got := normalizeCallbackData(tt.in); got != tt.want {
			t.Errorf("normalizeCallbackData(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSendErr(t *testing.T) {
	t.Parallel()

	gone := []error{
		tele.ErrBlockedByUser,
		tele.ErrUserIsDeactivated,
		tele.ErrChatNotFound,
		tele.ErrNotStartedByUser,
	}
	for _, err := range gone {
		if got := normalizeSendErr(err); !errors.Is(got, kit.ErrRecipientGone) {
			t.Errorf("normalizeSendErr(%v) = %v, want ErrRecipientGone", err, got)
		}
	}

	other := errors.New("internal server error")
	if got := normalizeSendErr(other); errors.Is(got, kit.ErrRecipientGone) {
		t.Errorf("transient error %v must not classify as gone", got)
	}
	if normalizeSendErr(nil) != nil {
		t.Error("nil must pass through")
	}
}

func TestChannelRecipient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"@mychannel", "@mychannel"},
		{"mychannel", "@mychannel"},
		{"-1001234567890", "-1001234567890"},
		{" @padded ", "@padded"},
	}
	for _, tt := range tests {
		if got := channelRecipient(tt.in).Recipient(); got != tt.want {
			t.Errorf("channelRecipient(%q).Recipient() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIngestContentKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *tele.Message
		want kit.ContentKind
	}{
		{"text", &tele.Message{Text: "hello"}, kit.ContentText},
		{"photo", &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: "p"}}}, kit.ContentPhoto},
		{"video", &tele.Message{Video: &tele.Video{File: tele.File{FileID: "v"}}}, kit.ContentVideo},
		{"audio", &tele.Message{Audio: &tele.Audio{File: tele.File{FileID: "a"}}}, kit.ContentAudio},
		{"document", &tele.Message{Document: &tele.Document{File: tele.File{FileID: "d"}}}, kit.ContentDocument},
		{"animation", &tele.Message{Animation: &tele.Animation{File: tele.File{FileID: "g"}}}, kit.ContentAnimation},
		{"sticker", &tele.Message{Sticker: &tele.Sticker{File: tele.File{FileID: "s"}}}, kit.ContentSticker},
		{"voice", &tele.Message{Voice: &tele.Voice{File: tele.File{FileID: "o"}}}, kit.ContentVoice},
		{"video note", &tele.Message{VideoNote: &tele.VideoNote{File: tele.File{FileID: "n"}}}, kit.ContentVideoNote},
		{"empty", &tele.Message{}, kit.ContentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ingestContent(tt.msg)
			if got.Kind != tt.want {
				t.Fatalf("kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestIngestContentTextClearsCaption(t *testing.T) {
	t.Parallel()

	got := ingestContent(&tele.Message{Text: "hello", Caption: "stray"})
	if got.Caption != "" {
		t.Fatalf("caption = %q, want empty for text content", got.Caption)
	}
	if got.Text != "hello" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestIngestContentKeepsMediaCaption(t *testing.T) {
	t.Parallel()

	got := ingestContent(&tele.Message{
		Photo:   &tele.Photo{File: tele.File{FileID: "p"}},
		Caption: "look at this",
	})
	if got.Caption != "look at this" {
		t.Fatalf("caption = %q", got.Caption)
	}
	if got.FileID != "p" {
		t.Fatalf("file id = %q", got.FileID)
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("empty token must be rejected")
	}
}
