package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	// CallbackCheckMembership is the recheck action wired on the
	// force-subscribe prompt.
	CallbackCheckMembership = "check_membership"

	textProcessing       = "Processing your request..."
	textResolverError    = "An error occurred while processing your request. Please try again later."
	textUnexpectedShape  = "Unexpected response format. Please check the link."
	textMembershipOK     = "✅ Now you can send me Terabox links."
	textMembershipMissed = "❌ You haven't joined the channel yet. Please join first!"
	textReplyRequired    = "Please reply to a message to broadcast it."
	textBroadcastBusy    = "A broadcast is already running. Wait for it to finish."
	textBroadcastStart   = "Starting broadcast..."
	textRecipientsError  = "Failed to load the recipient list. Try again later."
	textStatsError       = "Error retrieving statistics."
)

func welcomeText(name string) string {
	return fmt.Sprintf(
		"👋 Welcome %s!\n\n"+
			"🌟 I'm your Terabox download assistant. Send me any Terabox link to:\n"+
			"• Get direct download links\n"+
			"• Watch files online\n"+
			"• Access file details\n\n"+
			"💫 Just send me a link to get started!",
		name)
}

func forceSubText(channel string) string {
	return fmt.Sprintf(
		"🔒 Channel membership required\n\n"+
			"- Join %s to use the bot\n"+
			"- Click \"✅ Join Channel\" below\n"+
			"- After joining, click \"🔁 Check Membership\"",
		channel)
}

func fileDetailsText(name, size string) string {
	return fmt.Sprintf("Terabox file details:\nName: %s\nSize: %s", name, size)
}

const directLinkText = "Boom! Your file link is good to go!"

func statsText(day, week, month, year, total int) string {
	return fmt.Sprintf(
		"📊 Activity report\n"+
			"1 day: %d users active\n"+
			"1 week: %d users active\n"+
			"1 month: %d users active\n"+
			"1 year: %d users active\n"+
			"Total users: %d",
		day, week, month, year, total)
}

func progressText(total, completed, delivered, failed int) string {
	return fmt.Sprintf(
		"Broadcast status:\nTotal users: %d\nCompleted: %d\nSuccess: %d\nFailed: %d",
		total, completed, delivered, failed)
}

func broadcastDoneText(delivered, failed int) string {
	return fmt.Sprintf("Broadcast completed!\nSuccess: %d\nFailed: %d", delivered, failed)
}

func joinURL(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(strings.TrimSpace(channel), "@")
}

func welcomeKeyboard(ui UIConfig) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	row := []tele.Btn{m.URL("✅ Join Channel", joinURL(ui.Channel))}
	if ui.OwnerURL != "" {
		row = append(row, m.URL("👨‍💻 Owner", ui.OwnerURL))
	}
	m.Inline(m.Row(row...))
	return m
}

func forceSubKeyboard(ui UIConfig) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(m.URL("✅ Join Channel", joinURL(ui.Channel))),
		m.Row(m.Data("🔁 Check Membership", CallbackCheckMembership)),
	)
	return m
}

func directLinkKeyboard(ui UIConfig, videoID, downloadLink string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(
		m.WebApp("▶️ Watch Online", &tele.WebApp{URL: ui.WebAppURL + "?id=" + videoID}),
		m.URL("📥 Download", downloadLink),
	))
	return m
}

func fileDetailsKeyboard(ui UIConfig, fileName, downloadLink string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(
		m.WebApp("📱 View in Mini App", &tele.WebApp{URL: ui.WebAppURL + "?filename=" + fileName}),
		m.URL("📥 Direct Download", downloadLink),
	))
	return m
}
