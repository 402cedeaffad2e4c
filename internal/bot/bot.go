package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/worklog-bot/internal/insights"
	"github.com/xaenox/worklog-bot/internal/mnemonic"
	"github.com/xaenox/worklog-bot/internal/models"
	"github.com/xaenox/worklog-bot/internal/report"
	"github.com/xaenox/worklog-bot/internal/storage"
	"github.com/xaenox/worklog-bot/internal/tracking"
	"go.uber.org/zap"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	storage   storage.Storage
	tracker   *tracking.Service
	mnemonics *mnemonic.Service
	insights  *insights.Summarizer // nil when disabled
	logger    *zap.Logger
}

func New(token string, storage storage.Storage, tracker *tracking.Service, mnemonics *mnemonic.Service, summarizer *insights.Summarizer, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:       api,
		storage:   storage,
		tracker:   tracker,
		mnemonics: mnemonics,
		insights:  summarizer,
		logger:    logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	// A bare 24-word message is treated as a login attempt.
	if len(strings.Fields(message.Text)) == models.MnemonicWordCount {
		b.handleLoginPhrase(ctx, message, message.Text)
		return
	}

	b.sendMessage(message.Chat.ID, "Use /help to see what I can track for you.")
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "work":
		b.handleActivity(ctx, message, models.ActivityWorking)
	case "commute":
		b.handleActivity(ctx, message, models.ActivityCommuting)
	case "lunch":
		b.handleActivity(ctx, message, models.ActivityLunch)
	case "report":
		b.handleReport(ctx, message)
	case "week":
		b.handleWeek(ctx, message)
	case "patterns":
		b.handlePatterns(ctx, message)
	case "days":
		b.handleDays(ctx, message)
	case "insights":
		b.handleInsights(ctx, message)
	case "token":
		b.handleToken(ctx, message)
	case "login":
		b.handleLoginPhrase(ctx, message, message.CommandArguments())
	case "limit":
		b.handleLimit(ctx, message)
	case "threshold":
		b.handleThreshold(ctx, message)
	case "offset":
		b.handleOffset(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.storage.GetUser(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to load user", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, something went wrong. Please try again.")
		return
	}
	if user == nil {
		user = &models.User{
			ID:        message.From.ID,
			CreatedAt: time.Now().UTC(),
		}
	}
	user.ChatID = message.Chat.ID
	if err := b.storage.UpsertUser(ctx, user); err != nil {
		b.logger.Error("Failed to register user", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't register you. Please try again.")
		return
	}

	welcome := `Welcome to WorklogBot! ⏱
I track your work day as sessions: commuting, working and lunch.

/work /commute /lunch - start an activity (send again to stop it)
/report - today's totals
Use /help for everything else.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/work /commute /lunch - toggle an activity; starting one ends the other
/report - totals for today
/week - daily averages over the last 7 days
/patterns - your commute patterns per weekday
/days <n> - day-by-day breakdown of the last n days
/insights - a short written summary of your week
/token - issue a one-time 24-word login phrase
/login <phrase> - consume a login phrase
/limit <work|commute|lunch> <hours> - auto-shutdown cap (0 to clear)
/threshold <percent> - forgot-shutdown threshold, must be above 100 (0 to clear)
/offset <minutes> - your UTC offset for local-time reports`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleActivity(ctx context.Context, message *tgbotapi.Message, activity models.Activity) {
	now := time.Now().UTC()
	result, err := b.tracker.StartActivity(ctx, message.From.ID, activity, now)
	if err != nil {
		b.logger.Error("Failed to apply tracking request",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID),
			zap.String("activity", string(activity)))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't record that. Please try again.")
		return
	}

	switch result.Kind {
	case tracking.ResultStarted:
		text := fmt.Sprintf("Started %s.", describeSession(result.Started))
		if result.Ended != nil {
			text = fmt.Sprintf("Ended %s after %s. %s",
				describeSession(result.Ended), formatDuration(result.Ended.Duration(now)), text)
		}
		b.sendMessage(message.Chat.ID, text)
	case tracking.ResultEnded:
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Ended %s after %s.",
			describeSession(result.Ended), formatDuration(result.Ended.Duration(now))))
	default:
		b.sendMessage(message.Chat.ID, "Nothing to do.")
	}
}

func (b *Bot) handleReport(ctx context.Context, message *tgbotapi.Message) {
	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	sessions, err := b.storage.GetSessionsInRange(ctx, message.From.ID, from, from.Add(24*time.Hour))
	if err != nil {
		b.logger.Error("Failed to load sessions", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build your report.")
		return
	}

	summary := report.Summarize(sessions, now)
	if summary.TotalDurationHours == nil {
		b.sendMessage(message.Chat.ID, "No activity recorded today.")
		return
	}

	text := fmt.Sprintf("Today:\nWork: %.1fh\nCommute: %.1fh\nLunch: %.1fh\nDay span: %.1fh",
		summary.WorkHours, summary.CommuteHours, summary.LunchHours, *summary.TotalDurationHours)
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleWeek(ctx context.Context, message *tgbotapi.Message) {
	now := time.Now().UTC()
	const days = 7
	sessions, err := b.storage.GetSessionsInRange(ctx, message.From.ID, now.AddDate(0, 0, -days), now)
	if err != nil {
		b.logger.Error("Failed to load sessions", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build your report.")
		return
	}

	averages := report.Averages(sessions, days, now)
	if averages.WorkDays == 0 {
		b.sendMessage(message.Chat.ID, "No work days in the last 7 days.")
		return
	}

	text := fmt.Sprintf("Last %d days (%d work days):\nWork: %.1fh/day\nCommute: %.1fh/day\nLunch: %.1fh/day",
		days, averages.WorkDays, averages.AvgWorkHours, averages.AvgCommuteHours, averages.AvgLunchHours)
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handlePatterns(ctx context.Context, message *tgbotapi.Message) {
	now := time.Now().UTC()
	user, err := b.storage.GetUser(ctx, message.From.ID)
	if err != nil || user == nil {
		b.sendMessage(message.Chat.ID, "Please /start first.")
		return
	}

	sessions, err := b.storage.GetSessionsInRange(ctx, message.From.ID, now.AddDate(0, -3, 0), now)
	if err != nil {
		b.logger.Error("Failed to load sessions", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build your report.")
		return
	}

	var lines []string
	for _, direction := range []models.CommuteDirection{models.DirectionToWork, models.DirectionToHome} {
		patterns := report.CommutePatterns(sessions, direction, user.UTCOffsetMinutes, now)
		if len(patterns) == 0 {
			continue
		}
		lines = append(lines, directionLabel(direction)+":")
		for _, p := range patterns {
			line := fmt.Sprintf("  %s: %d trips, avg %s",
				p.Weekday, p.SessionCount, formatHours(p.AverageDurationHours))
			if p.OptimalStartHour != nil {
				line += fmt.Sprintf(" (best start %02d:00, %s)",
					*p.OptimalStartHour, formatHours(*p.ShortestDurationHours))
			}
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		b.sendMessage(message.Chat.ID, "No commute sessions recorded yet.")
		return
	}
	b.sendMessage(message.Chat.ID, strings.Join(lines, "\n"))
}

func (b *Bot) handleDays(ctx context.Context, message *tgbotapi.Message) {
	days := 7
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 || n > 90 {
			b.sendMessage(message.Chat.ID, "Usage: /days <1-90>")
			return
		}
		days = n
	}

	now := time.Now().UTC()
	to := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -days)
	sessions, err := b.storage.GetSessionsInRange(ctx, message.From.ID, from, to)
	if err != nil {
		b.logger.Error("Failed to load sessions", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build your report.")
		return
	}

	var lines []string
	for _, day := range report.DailyBreakdown(sessions, from, to, now) {
		if !day.HasActivity {
			lines = append(lines, fmt.Sprintf("%s: -", day.Date.Format("Mon 02 Jan")))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: work %.1fh, commute %.1fh, lunch %.1fh",
			day.Date.Format("Mon 02 Jan"), day.WorkHours, day.CommuteHours, day.LunchHours))
	}
	b.sendMessage(message.Chat.ID, strings.Join(lines, "\n"))
}

func (b *Bot) handleInsights(ctx context.Context, message *tgbotapi.Message) {
	if b.insights == nil {
		b.sendMessage(message.Chat.ID, "Insights are not enabled on this bot.")
		return
	}

	now := time.Now().UTC()
	const days = 7
	sessions, err := b.storage.GetSessionsInRange(ctx, message.From.ID, now.AddDate(0, 0, -days), now)
	if err != nil {
		b.logger.Error("Failed to load sessions", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build your insights.")
		return
	}

	summary := report.Summarize(sessions, now)
	averages := report.Averages(sessions, days, now)
	b.sendMessage(message.Chat.ID, b.insights.Summarize(ctx, summary, averages, days))
}

func (b *Bot) handleToken(ctx context.Context, message *tgbotapi.Message) {
	m, err := b.mnemonics.GenerateAndStore(ctx)
	if err != nil {
		b.logger.Error("Failed to issue mnemonic", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't issue a login phrase.")
		return
	}
	b.sendMessage(message.Chat.ID, "Your one-time login phrase (valid once):\n\n"+m.Phrase)
}

func (b *Bot) handleLoginPhrase(ctx context.Context, message *tgbotapi.Message, phrase string) {
	ok, err := b.mnemonics.ValidateAndConsume(ctx, phrase)
	if err != nil {
		b.logger.Error("Failed to validate mnemonic", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't check that phrase.")
		return
	}
	if !ok {
		b.sendMessage(message.Chat.ID, "That phrase is not valid (or was already used).")
		return
	}
	b.sendMessage(message.Chat.ID, "Phrase accepted. You are logged in. ✅")
}

func (b *Bot) handleLimit(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		b.sendMessage(message.Chat.ID, "Usage: /limit <work|commute|lunch> <hours>")
		return
	}
	hours, err := strconv.ParseFloat(args[1], 64)
	if err != nil || hours < 0 {
		b.sendMessage(message.Chat.ID, "Usage: /limit <work|commute|lunch> <hours>")
		return
	}

	b.updateUser(ctx, message, func(user *models.User) error {
		var value *float64
		if hours > 0 {
			value = &hours
		}
		switch args[0] {
		case "work":
			user.MaxWorkHours = value
		case "commute":
			user.MaxCommuteHours = value
		case "lunch":
			user.MaxLunchHours = value
		default:
			return fmt.Errorf("unknown activity %q", args[0])
		}
		return nil
	}, "Limit updated.")
}

func (b *Bot) handleThreshold(ctx context.Context, message *tgbotapi.Message) {
	arg := strings.TrimSpace(message.CommandArguments())
	percent, err := strconv.Atoi(arg)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /threshold <percent above 100, or 0 to disable>")
		return
	}

	b.updateUser(ctx, message, func(user *models.User) error {
		if percent == 0 {
			user.ForgotShutdownThresholdPercent = nil
			return nil
		}
		if err := models.ValidateThresholdPercent(percent); err != nil {
			return err
		}
		user.ForgotShutdownThresholdPercent = &percent
		return nil
	}, "Threshold updated.")
}

func (b *Bot) handleOffset(ctx context.Context, message *tgbotapi.Message) {
	arg := strings.TrimSpace(message.CommandArguments())
	minutes, err := strconv.Atoi(arg)
	if err != nil || minutes < -14*60 || minutes > 14*60 {
		b.sendMessage(message.Chat.ID, "Usage: /offset <minutes from UTC, e.g. 120 or -300>")
		return
	}

	b.updateUser(ctx, message, func(user *models.User) error {
		user.UTCOffsetMinutes = minutes
		return nil
	}, "Offset updated.")
}

// updateUser loads the sender's record, applies mutate and persists it.
// A mutate error is reported to the user as-is; it never touches the store.
func (b *Bot) updateUser(ctx context.Context, message *tgbotapi.Message, mutate func(*models.User) error, done string) {
	user, err := b.storage.GetUser(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to load user", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, something went wrong. Please try again.")
		return
	}
	if user == nil {
		b.sendMessage(message.Chat.ID, "Please /start first.")
		return
	}

	if err := mutate(user); err != nil {
		b.sendMessage(message.Chat.ID, err.Error())
		return
	}

	if err := b.storage.UpsertUser(ctx, user); err != nil {
		b.logger.Error("Failed to update user", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save that. Please try again.")
		return
	}
	b.sendMessage(message.Chat.ID, done)
}

// NotifyForgotShutdown implements the forgot-shutdown monitor's
// notification sink over Telegram.
func (b *Bot) NotifyForgotShutdown(ctx context.Context, userID int64, activity models.Activity, elapsedHours, averageHours float64) error {
	user, err := b.storage.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || user.ChatID == 0 {
		return fmt.Errorf("no chat known for user %d", userID)
	}

	text := fmt.Sprintf("⏰ Still %s? You're at %s now, your usual is %s. Maybe you forgot to stop the timer.",
		activityVerb(activity), formatHours(elapsedHours), formatHours(averageHours))
	msg := tgbotapi.NewMessage(user.ChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.sendMessage(chatID, "⚠️ "+text)
}

func describeSession(s *models.Session) string {
	if s.Activity == models.ActivityCommuting {
		return "commuting " + directionLabel(s.Direction)
	}
	return string(s.Activity)
}

func directionLabel(d models.CommuteDirection) string {
	if d == models.DirectionToHome {
		return "home"
	}
	return "to work"
}

func activityVerb(a models.Activity) string {
	switch a {
	case models.ActivityCommuting:
		return "commuting"
	case models.ActivityLunch:
		return "at lunch"
	default:
		return "working"
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

func formatHours(hours float64) string {
	return formatDuration(time.Duration(hours * float64(time.Hour)))
}
