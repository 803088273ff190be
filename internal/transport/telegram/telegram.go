package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot       *tele.Bot
	out       chan<- kit.Update
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	runMu     sync.Mutex
	running   bool

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out = out
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)))
				}
			}
		}
	}()

	// One generic handler per content endpoint; the content kind is decided
	// here, once, at ingestion.
	onMessage := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.emit(kit.Update{Kind: kit.UpdateMessage, Message: ingestMessage(m)})
		return nil
	}
	for _, ep := range []string{
		tele.OnText, tele.OnPhoto, tele.OnVideo, tele.OnAudio, tele.OnDocument,
		tele.OnAnimation, tele.OnSticker, tele.OnVoice, tele.OnVideoNote,
	} {
		a.bot.Handle(ep, onMessage)
	}

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		a.emit(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				FromID:    cb.Sender.ID,
				MessageID: m.ID,
				Data:      normalizeCallbackData(cb.Data),
			},
		})
		return nil
	})

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop() called
	}()

	return nil
}

func (a *Adapter) emit(up kit.Update) {
	select {
	case a.out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	go a.bot.Stop()

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	// Keep shutdown snappy even if getUpdates long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

func ingestMessage(m *tele.Message) *kit.Message {
	out := &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		FromName:     strings.TrimSpace(m.Sender.FirstName + " " + m.Sender.LastName),
		Text:         m.Text,
		Content:      ingestContent(m),
	}
	if m.ReplyTo != nil {
		rc := ingestContent(m.ReplyTo)
		out.ReplyTo = &rc
	}
	return out
}

func ingestContent(m *tele.Message) kit.Content {
	c := kit.Content{Caption: m.Caption, ReplyMarkup: m.ReplyMarkup}
	switch {
	case m.Text != "":
		c.Kind = kit.ContentText
		c.Text = m.Text
		c.Caption = ""
		c.Entities = m.Entities
	case m.Photo != nil:
		c.Kind = kit.ContentPhoto
		c.FileID = m.Photo.FileID
		c.Entities = m.CaptionEntities
	case m.Video != nil:
		c.Kind = kit.ContentVideo
		c.FileID = m.Video.FileID
		c.Entities = m.CaptionEntities
	case m.Audio != nil:
		c.Kind = kit.ContentAudio
		c.FileID = m.Audio.FileID
		c.Entities = m.CaptionEntities
	case m.Document != nil:
		c.Kind = kit.ContentDocument
		c.FileID = m.Document.FileID
		c.Entities = m.CaptionEntities
	case m.Animation != nil:
		c.Kind = kit.ContentAnimation
		c.FileID = m.Animation.FileID
		c.Entities = m.CaptionEntities
	case m.Sticker != nil:
		c.Kind = kit.ContentSticker
		c.FileID = m.Sticker.FileID
		c.Caption = ""
	case m.Voice != nil:
		c.Kind = kit.ContentVoice
		c.FileID = m.Voice.FileID
		c.Entities = m.CaptionEntities
	case m.VideoNote != nil:
		c.Kind = kit.ContentVideoNote
		c.FileID = m.VideoNote.FileID
		c.Caption = ""
	}
	return c
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), text, sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, normalizeSendErr(err)
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, url, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	p := &tele.Photo{File: tele.FromURL(url), Caption: caption}
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), p, sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, normalizeSendErr(err)
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendVideo(ctx context.Context, to kit.ChatTarget, url, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	v := &tele.Video{File: tele.FromURL(url), Caption: caption}
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), v, sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, normalizeSendErr(err)
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

// SendContent forwards an ingested Content to a chat, preserving caption,
// entities and reply markup where the shape carries them.
func (a *Adapter) SendContent(ctx context.Context, to kit.ChatTarget, content kit.Content, opt *kit.SendOptions) error {
	sendOpt := sendOptions(opt)
	if ents, ok := content.Entities.(tele.Entities); ok {
		sendOpt.Entities = ents
	}
	if rm, ok := content.ReplyMarkup.(*tele.ReplyMarkup); ok && sendOpt.ReplyMarkup == nil {
		sendOpt.ReplyMarkup = rm
	}

	var what any
	file := tele.File{FileID: content.FileID}
	switch content.Kind {
	case kit.ContentText:
		what = content.Text
	case kit.ContentPhoto:
		what = &tele.Photo{File: file, Caption: content.Caption}
	case kit.ContentVideo:
		what = &tele.Video{File: file, Caption: content.Caption}
	case kit.ContentAudio:
		what = &tele.Audio{File: file, Caption: content.Caption}
	case kit.ContentDocument:
		what = &tele.Document{File: file, Caption: content.Caption}
	case kit.ContentAnimation:
		what = &tele.Animation{File: file, Caption: content.Caption}
	case kit.ContentSticker:
		what = &tele.Sticker{File: file}
	case kit.ContentVoice:
		what = &tele.Voice{File: file, Caption: content.Caption}
	case kit.ContentVideoNote:
		what = &tele.VideoNote{File: file}
	default:
		return kit.ErrNoContent
	}

	_, err := a.bot.Send(tele.ChatID(to.ChatID), what, sendOpt)
	return normalizeSendErr(err)
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	_, err := a.bot.Edit(m, text, sendOptions(opt))
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	return a.bot.Delete(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}})
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
}

// MemberStatus implements the membership oracle: the raw chat-member role of
// userID in the given channel ("@name" or numeric id).
func (a *Adapter) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	member, err := a.bot.ChatMemberOf(channelRecipient(channel), &tele.User{ID: userID})
	if err != nil {
		return "", err
	}
	return string(member.Role), nil
}

// channelRecipient resolves a channel reference to a telebot Recipient.
func channelRecipient(channel string) tele.Recipient {
	channel = strings.TrimSpace(channel)
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tele.ChatID(id)
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return channelRef(channel)
}

type channelRef string

func (r channelRef) Recipient() string { return string(r) }

func sendOptions(opt *kit.SendOptions) *tele.SendOptions {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	out := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		DisableNotification:   opt.DisableNotification,
	}
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok {
		out.ReplyMarkup = rm
	}
	return out
}

// normalizeSendErr collapses terminal per-recipient failures into
// kit.ErrRecipientGone so callers can classify without telebot knowledge.
func normalizeSendErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tele.ErrBlockedByUser) ||
		errors.Is(err, tele.ErrUserIsDeactivated) ||
		errors.Is(err, tele.ErrChatNotFound) ||
		errors.Is(err, tele.ErrNotStartedByUser) {
		return fmt.Errorf("%w: %v", kit.ErrRecipientGone, err)
	}
	return err
}

// normalizeCallbackData strips telebot's button framing ("\funique|payload")
// down to the bare action token.
func normalizeCallbackData(data string) string {
	data = strings.TrimPrefix(data, "\f")
	if i := strings.IndexByte(data, '|'); i >= 0 {
		data = data[:i]
	}
	return strings.TrimSpace(data)
}
