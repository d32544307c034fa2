package bot

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/config"
	"github.com/dhanushrs1/HDC-File/handlers"
	"github.com/dhanushrs1/HDC-File/handlers/middleware"
	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/http"
	"github.com/dhanushrs1/HDC-File/lib/notify"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/repository"
	"github.com/dhanushrs1/HDC-File/services"
)

// inviteLinkKey is where the resolved force-subscribe invite link is
// cached between restarts.
const inviteLinkKey = "force_sub_invite_link"

type TBot struct {
	Bot    *tele.Bot
	Uptime time.Time

	cfg       *config.Config
	gate      *middleware.SubGate
	notifier  *notify.Notifier
	workspace *services.WorkspaceService
	settings  *repository.SettingsRepository
	log       *zap.Logger
}

func NewBot(
	log *zap.Logger,
	cfg *config.Config,
	users *repository.UserRepository,
	files *repository.FileRepository,
	analytics *repository.AnalyticsRepository,
	settings *repository.SettingsRepository,
	groups *services.GroupService,
) (*TBot, error) {
	var b TBot
	if err := b.Init(log, cfg, users, files, analytics, settings, groups); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *TBot) Init(
	log *zap.Logger,
	cfg *config.Config,
	users *repository.UserRepository,
	files *repository.FileRepository,
	analytics *repository.AnalyticsRepository,
	settings *repository.SettingsRepository,
	groups *services.GroupService,
) error {
	defer tracer.Trace("botInit")()

	pref := tele.Settings{
		Token:     cfg.BotToken,
		ParseMode: tele.ModeHTML,
		Poller: &tele.LongPoller{
			Timeout: 10 * time.Second,
			AllowedUpdates: []string{
				"message", "callback_query", "my_chat_member",
				"channel_post", "chat_join_request",
			},
		},
		OnError: func(err error, c tele.Context) {
			defer tracer.Trace("Telebot::OnError")()
			if c == nil {
				log.Error("handler failed", zap.Error(err))
				return
			}
			log.Error("handler failed",
				zap.Any("update", c.Update()), zap.Error(err),
				zap.String("errorType", fmt.Sprintf("%T", err)))
			if _, err := c.Bot().Send(
				&tele.User{ID: cfg.OwnerID},
				fmt.Sprintf("Handler error: %v", err.Error()),
			); err != nil {
				log.Error("could not relay the error to the owner", zap.Error(err))
			}
		},
		Client: http.TracedHttpClient(cfg.BotToken),
	}

	finishTraceNewBot := tracer.Trace("NewBot")
	bot, err := tele.NewBot(pref)
	finishTraceNewBot()
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}
	b.Bot = bot
	b.Uptime = time.Now()
	b.cfg = cfg
	b.settings = settings
	b.log = log

	notifier := notify.New(bot, cfg.OwnerID, cfg.Admins, log)
	b.notifier = notifier

	bot.Use(middleware.TracingMiddleware)
	bot.Use(middleware.RecoverMiddleware(log, notifier))
	bot.Use(middleware.UpsertUserMiddleware(log, users))
	bot.Use(middleware.AutoRespondCallback)

	adminAuth := middleware.AdminOnly(cfg.IsAdmin)
	ownerAuth := middleware.AdminOnly(func(userID int64) bool { return userID == cfg.OwnerID })

	gate := middleware.NewSubGate(cfg.ForceSubChannel, cfg.JoinRequestEnabled, cfg.ForceSubMessage, cfg.IsAdmin, log)
	b.gate = gate

	codec := deeplink.NewCodec(cfg.ChannelID)
	conversations := services.NewConversationService()
	expiry := services.NewExpiryService(bot, cfg.AutoDeleteTime, cfg.ReRequestExpiry, cfg.ExpiredMessage, cfg.FinalExpired, log)
	delivery := services.NewDeliveryService(
		bot, files, analytics, expiry,
		cfg.ChannelID, bot.Me.Username, cfg.CustomCaption,
		cfg.ProtectContent, !cfg.DisableChannelButton, log)
	broadcast := services.NewBroadcastService(bot, users, log)
	media := services.NewMediaService(cfg.FFmpegPath, cfg.FFprobePath, cfg.ScreenshotWatermark, log)
	workspace := services.NewWorkspaceService(cfg.TempDir, cfg.SessionTimeout, log)
	b.workspace = workspace

	log.Info("Adding search controller")
	searchController := handlers.NewSearchController(files, groups, codec, cfg.RedirectURL, cfg.GroupSearchPic, log)
	searchController.Register(bot.Group())

	log.Info("Adding start controller")
	startController := handlers.NewStartController(
		delivery, searchController, analytics, codec,
		cfg.StartMessage, cfg.StartPic, cfg.IsAdmin, log)
	startController.Register(bot.Group(), gate.Middleware)

	log.Info("Adding re-request controller")
	handlers.RerequestController(bot.Group(), delivery, cfg.FinalExpired, log)

	log.Info("Adding link generator controller")
	linkerController := handlers.NewLinkerController(
		files, codec, cfg.ChannelID, cfg.RedirectURL, !cfg.DisableChannelButton, log)
	linkerController.Register(bot.Group(), adminAuth)

	log.Info("Adding request controller")
	requestController := handlers.NewRequestController(conversations, notifier, log)
	requestController.Register(bot.Group(), adminAuth)

	log.Info("Adding groups controller")
	groupsController := handlers.NewGroupsController(groups, notifier, log)
	groupsController.Register(bot.Group(), ownerAuth)

	log.Info("Adding admin panel controller")
	panelController := handlers.NewAdminPanelController(
		users, files, analytics, cfg.IsAdmin, b.Uptime, workspace.TempDir(), log)
	panelController.Register(bot.Group(), adminAuth)

	log.Info("Adding broadcast controller")
	handlers.BroadcastController(bot.Group(), adminAuth, broadcast, log)

	log.Info("Adding stats controller")
	handlers.StatsController(bot.Group(), adminAuth, users, b.Uptime)

	log.Info("Adding workspace controller")
	workspaceController := handlers.NewWorkspaceController(workspace, media, conversations, log)
	workspaceController.Register(bot.Group(), adminAuth)

	log.Info("Adding service controller")
	handlers.ServiceController(bot.Group(), adminAuth, cfg.Admins)

	log.Info("Adding message dispatcher")
	dispatcher := handlers.NewMessageDispatcher(
		workspaceController, requestController, searchController, linkerController,
		cfg.IsAdmin, cfg.ChannelID, log)
	dispatcher.Register(bot.Group())

	bot.Handle(tele.OnChatJoinRequest, func(c tele.Context) error {
		defer tracer.Trace("chatJoinRequestHandler")()
		req := c.Update().ChatJoinRequest
		if req == nil || req.Chat == nil || req.Sender == nil {
			return nil
		}
		if gate.Enabled() && req.Chat.ID == gate.Channel() {
			gate.NoteJoinRequest(req.Sender.ID)
		}
		return nil
	})

	return nil
}

// Start verifies the storage channel, arms the subscription gate and
// blocks polling for updates until ctx is cancelled.
func (b *TBot) Start(ctx context.Context) error {
	defer tracer.Trace("botStart")()

	if err := b.verifyStorageChannel(); err != nil {
		return err
	}
	b.resolveForceSubInvite(ctx)

	go b.workspace.Run(ctx)
	b.notifyRestart()

	go func() {
		<-ctx.Done()
		b.Bot.Stop()
	}()
	b.log.Info("Bot is now online and ready", zap.String("username", b.Bot.Me.Username))
	b.Bot.Start()
	return nil
}

func (b *TBot) Stop() {
	defer tracer.Trace("botStop")()
	b.Bot.Stop()
}

// verifyStorageChannel posts and deletes a probe message. Without write
// access to the storage channel nothing else can work, so a failure
// here is fatal.
func (b *TBot) verifyStorageChannel() error {
	defer tracer.Trace("verifyStorageChannel")()
	channel, err := b.Bot.ChatByID(b.cfg.ChannelID)
	if err != nil {
		return fmt.Errorf("storage channel %d is unreachable: %w", b.cfg.ChannelID, err)
	}
	probe, err := b.Bot.Send(channel, "<code>Bot is online.</code>")
	if err != nil {
		return fmt.Errorf("no write access to storage channel %d, make sure the bot is an admin there: %w",
			b.cfg.ChannelID, err)
	}
	if err := b.Bot.Delete(probe); err != nil {
		b.log.Warn("could not delete the probe message", zap.Error(err))
	}
	b.log.Info("Connected to storage channel",
		zap.String("title", channel.Title), zap.Int64("channel_id", channel.ID))
	return nil
}

// resolveForceSubInvite turns the configured force-subscribe channel
// into a join link for the gate. When Telegram cannot be asked, a link
// cached on an earlier run keeps the gate alive; with no link at all
// the gate is disabled rather than locking every user out.
func (b *TBot) resolveForceSubInvite(ctx context.Context) {
	defer tracer.Trace("resolveForceSubInvite")()
	if !b.gate.Enabled() {
		return
	}
	channelID := b.gate.Channel()

	link, err := b.forceSubInvite(channelID)
	if err != nil {
		cached, cacheErr := b.settings.Get(ctx, inviteLinkKey)
		if cacheErr != nil {
			b.log.Error("could not resolve the force-subscribe invite link, disabling the gate",
				zap.Int64("channel_id", channelID), zap.Error(err))
			b.gate.Disable()
			return
		}
		b.log.Warn("using the cached force-subscribe invite link",
			zap.Int64("channel_id", channelID), zap.Error(err))
		b.gate.SetInvite(cached)
		return
	}

	b.gate.SetInvite(link)
	if err := b.settings.Set(ctx, inviteLinkKey, link); err != nil {
		b.log.Warn("caching the invite link failed", zap.Error(err))
	}
	b.log.Info("Force Subscribe is enabled", zap.Int64("channel_id", channelID))
}

func (b *TBot) forceSubInvite(channelID int64) (string, error) {
	chat, err := b.Bot.ChatByID(channelID)
	if err != nil {
		return "", fmt.Errorf("force-sub channel lookup: %w", err)
	}
	// The primary link only serves in plain mode: join-request mode
	// needs a link that files requests instead of admitting directly.
	if chat.InviteLink != "" && !b.cfg.JoinRequestEnabled {
		return chat.InviteLink, nil
	}
	invite, err := b.Bot.CreateInviteLink(chat, &tele.ChatInviteLink{JoinRequest: b.cfg.JoinRequestEnabled})
	if err != nil {
		if chat.InviteLink != "" {
			return chat.InviteLink, nil
		}
		return "", fmt.Errorf("creating an invite link: %w", err)
	}
	return invite.InviteLink, nil
}

func (b *TBot) notifyRestart() {
	defer tracer.Trace("notifyRestart")()
	host, _ := os.Hostname()
	text := fmt.Sprintf(
		"🎬 <b>HD Cinema Bot Restarted</b>\n\n"+
			"<b>Time:</b> <code>%s</code>\n"+
			"<b>Host:</b> <code>%s</code>\n"+
			"<b>Go:</b> <code>%s</code>\n"+
			"<b>Status:</b> <code>Online & Ready!</code>",
		time.Now().Format("2006-01-02 15:04:05"), host, runtime.Version(),
	)
	if err := b.notifier.Owner(text); err != nil {
		b.log.Error("restart notification failed", zap.Error(err))
	}
}
