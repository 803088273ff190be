package bot

import (
	"context"
	"strings"
	"time"

	"teraboxbot/internal/broadcast"
	"teraboxbot/internal/directory"
	"teraboxbot/internal/resolver"
	"teraboxbot/internal/router"
	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

// Register wires the bot's routes. /stats and /broadcast are operator-only;
// free text matching the link patterns goes through the membership gate.
func (b *Bot) Register(r *router.Router, linkPatterns []string) error {
	r.Command("start", false, b.HandleStart)
	r.Command("stats", true, b.HandleStats)
	r.Command("broadcast", true, b.HandleBroadcast)
	r.Callback(CallbackCheckMembership, b.HandleCheckMembership)
	return r.Links(linkPatterns, b.HandleLink)
}

func (b *Bot) HandleStart(ctx context.Context, ev *router.Event) error {
	msg := ev.Update.Message

	// Event line for the log channel.
	b.log.Info("bot start",
		logx.String("user", msg.FromName),
		logx.Int64("user_id", msg.FromID),
		logx.String("username", msg.FromUsername))

	// Directory write failures must not break onboarding.
	if err := b.dir.Upsert(ctx, directory.UserRecord{
		ID:         msg.FromID,
		Username:   msg.FromUsername,
		LastActive: time.Now().UTC(),
	}); err != nil {
		b.log.Error("storing user failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
	}

	ui := b.uiConfig()
	text := welcomeText(displayName(msg))
	opt := &kit.SendOptions{ReplyMarkupAdapter: welcomeKeyboard(ui)}

	if _, err := b.adapter.SendVideo(ctx, ev.Chat, ui.WelcomeVideo, text, opt); err != nil {
		b.log.Warn("welcome video send failed; falling back to text", logx.Err(err))
		_, err = b.adapter.SendText(ctx, ev.Chat, text, opt)
		return err
	}
	return nil
}

func (b *Bot) HandleLink(ctx context.Context, ev *router.Event) error {
	msg := ev.Update.Message
	link := strings.TrimSpace(msg.Text)

	b.log.Info("link received",
		logx.Int64("user_id", msg.FromID),
		logx.String("link", link))

	if !b.gate.IsMember(ctx, msg.FromID) {
		ui := b.uiConfig()
		_, err := b.adapter.SendText(ctx, ev.Chat, forceSubText(ui.Channel),
			&kit.SendOptions{ReplyMarkupAdapter: forceSubKeyboard(ui)})
		return err
	}

	status, err := b.adapter.SendText(ctx, ev.Chat, textProcessing, nil)
	if err != nil {
		return err
	}

	res, err := b.resolver.Resolve(ctx, link)
	if err != nil {
		_, sendErr := b.adapter.SendText(ctx, ev.Chat, textResolverError, nil)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	ui := b.uiConfig()
	switch res.Kind {
	case resolver.KindDirectLink:
		_ = b.adapter.DeleteMessage(ctx, status)
		_, err = b.adapter.SendPhoto(ctx, ev.Chat, ui.PreviewImage, directLinkText,
			&kit.SendOptions{ReplyMarkupAdapter: directLinkKeyboard(ui, res.VideoID, res.URL)})
		return err

	case resolver.KindFileDetails:
		_ = b.adapter.DeleteMessage(ctx, status)
		_, err = b.adapter.SendPhoto(ctx, ev.Chat, ui.PreviewImage,
			fileDetailsText(res.FileName, res.FileSize),
			&kit.SendOptions{ReplyMarkupAdapter: fileDetailsKeyboard(ui, res.FileName, res.DownloadLink)})
		return err

	default:
		return b.adapter.EditText(ctx, status, textUnexpectedShape, nil)
	}
}

func (b *Bot) HandleCheckMembership(ctx context.Context, ev *router.Event) error {
	cb := ev.Update.Callback
	member := b.gate.IsMember(ctx, cb.FromID)

	b.log.Info("membership recheck",
		logx.Int64("user_id", cb.FromID),
		logx.Bool("member", member))

	if !member {
		return b.adapter.AnswerCallback(ctx, cb.ID, textMembershipMissed, true)
	}
	if err := b.adapter.EditText(ctx,
		kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID},
		textMembershipOK, nil); err != nil {
		return err
	}
	return b.adapter.AnswerCallback(ctx, cb.ID, "", false)
}

func (b *Bot) HandleStats(ctx context.Context, ev *router.Event) error {
	st, err := b.dir.Stats(ctx, time.Now().UTC())
	if err != nil {
		_, _ = b.adapter.SendText(ctx, ev.Chat, textStatsError, nil)
		return err
	}
	_, err = b.adapter.SendText(ctx, ev.Chat,
		statsText(st.Day, st.Week, st.Month, st.Year, st.Total), nil)
	return err
}

func (b *Bot) HandleBroadcast(ctx context.Context, ev *router.Event) error {
	msg := ev.Update.Message
	if msg.ReplyTo == nil || msg.ReplyTo.Kind == kit.ContentNone {
		_, err := b.adapter.SendText(ctx, ev.Chat, textReplyRequired, nil)
		return err
	}

	// One job at a time; an overlapping /broadcast is refused visibly.
	select {
	case <-b.bcastSlot:
	default:
		_, err := b.adapter.SendText(ctx, ev.Chat, textBroadcastBusy, nil)
		return err
	}
	defer func() { b.bcastSlot <- struct{}{} }()

	// Snapshot once; users onboarded after this point are not reached.
	ids, err := b.dir.RecipientIDs(ctx)
	if err != nil {
		_, _ = b.adapter.SendText(ctx, ev.Chat, textRecipientsError, nil)
		return err
	}

	status, err := b.adapter.SendText(ctx, ev.Chat, textBroadcastStart, nil)
	if err != nil {
		return err
	}

	rep := b.engine.Run(ctx, *msg.ReplyTo, ids, func(p broadcast.Progress) {
		_ = b.adapter.EditText(ctx, status,
			progressText(p.Total, p.Completed, p.Delivered, p.Unreachable+p.Failed), nil)
	})

	b.log.Info("broadcast completed",
		logx.Int64("operator_id", ev.FromID),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.FailedTotal()))

	return b.adapter.EditText(ctx, status,
		broadcastDoneText(rep.Delivered, rep.FailedTotal()), nil)
}

// StatsReportText renders the activity report; used by /stats-style output
// posted to the log channel on a schedule.
func (b *Bot) StatsReportText(ctx context.Context) (string, error) {
	st, err := b.dir.Stats(ctx, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return statsText(st.Day, st.Week, st.Month, st.Year, st.Total), nil
}

func displayName(msg *kit.Message) string {
	if msg.FromName != "" {
		return msg.FromName
	}
	if msg.FromUsername != "" {
		return "@" + msg.FromUsername
	}
	return "there"
}
