package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultStartMessage = "👋 Hello {first}!\n\nI am the <b>HD Cinema File Bot</b>. I can store your files securely and generate permanent, shareable links. This service is for authorized admins only."

	defaultForceSubMessage = "Hello {first},\n\n<b>To use this bot, you must join our channel.</b>\n\nThis helps us continue providing great content. Please join and try again! 😊"

	defaultExpiredMessage = "⏳ <b>This file has expired.</b>\n\nYou can request it again within the next {hours} hours."

	defaultFinalExpiredMessage = "🚫 <b>This re-request link has also expired.</b>"
)

// Config stores the application's configuration.
type Config struct {
	BotToken  string
	OwnerID   int64
	Admins    []int64
	ChannelID int64

	DatabaseURL  string
	DatabaseName string

	Port         string
	RedirectURL  string
	DashboardKey string

	StartMessage   string
	StartPic       string
	CustomCaption  string
	GroupSearchPic string

	ProtectContent       bool
	DisableChannelButton bool

	ForceSubChannel    int64
	JoinRequestEnabled bool
	ForceSubMessage    string

	TempDir        string
	SessionTimeout time.Duration

	AutoDeleteTime  time.Duration
	ReRequestExpiry time.Duration
	ExpiredMessage  string
	FinalExpired    string

	ScreenshotWatermark string
	FFmpegPath          string
	FFprobePath         string
}

// Load reads configuration from environment variables and a .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	token := getEnv("TG_BOT_TOKEN", "")
	if token == "" {
		return nil, errors.New("TG_BOT_TOKEN is required")
	}

	ownerID, err := intEnv("OWNER_ID", 0)
	if err != nil {
		return nil, err
	}
	if ownerID == 0 {
		return nil, errors.New("OWNER_ID is required")
	}

	channelID, err := intEnv("CHANNEL_ID", 0)
	if err != nil {
		return nil, err
	}
	if channelID == 0 {
		return nil, errors.New("CHANNEL_ID is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	forceSub, err := intEnv("FORCE_SUB_CHANNEL", 0)
	if err != nil {
		return nil, err
	}
	sessionTimeout, err := intEnv("SESSION_TIMEOUT", 1800)
	if err != nil {
		return nil, err
	}
	autoDelete, err := intEnv("AUTO_DELETE_TIME", 600)
	if err != nil {
		return nil, err
	}
	reRequestHours, err := intEnv("RE_REQUEST_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, err
	}

	return &Config{
		BotToken:  token,
		OwnerID:   ownerID,
		Admins:    parseAdmins(getEnv("ADMINS", ""), ownerID),
		ChannelID: channelID,

		DatabaseURL:  dbURL,
		DatabaseName: getEnv("DATABASE_NAME", "HD_Cinema_Bot"),

		Port:         getEnv("PORT", "8080"),
		RedirectURL:  getEnv("REDIRECT_URL", ""),
		DashboardKey: getEnv("DASHBOARD_KEY", ""),

		StartMessage:   getEnv("START_MESSAGE", defaultStartMessage),
		StartPic:       getEnv("START_PIC", ""),
		CustomCaption:  getEnv("CUSTOM_CAPTION", ""),
		GroupSearchPic: getEnv("GROUP_SEARCH_PIC", ""),

		ProtectContent:       boolEnv("PROTECT_CONTENT", false),
		DisableChannelButton: boolEnv("DISABLE_CHANNEL_BUTTON", true),

		ForceSubChannel:    forceSub,
		JoinRequestEnabled: boolEnv("JOIN_REQUEST_ENABLED", false),
		ForceSubMessage:    getEnv("FORCE_SUB_MESSAGE", defaultForceSubMessage),

		TempDir:        getEnv("TEMP_DIR", "temp_downloads"),
		SessionTimeout: time.Duration(sessionTimeout) * time.Second,

		AutoDeleteTime:  time.Duration(autoDelete) * time.Second,
		ReRequestExpiry: time.Duration(reRequestHours) * time.Hour,
		ExpiredMessage:  getEnv("EXPIRED_MSG", defaultExpiredMessage),
		FinalExpired:    getEnv("FINAL_EXPIRED_MSG", defaultFinalExpiredMessage),

		ScreenshotWatermark: getEnv("SCREENSHOT_WATERMARK", ""),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         getEnv("FFPROBE_PATH", "ffprobe"),
	}, nil
}

// IsAdmin reports whether the user may use the admin surface.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// parseAdmins splits a whitespace separated ID list, dropping entries
// that are not numeric. The owner is always an admin.
func parseAdmins(raw string, ownerID int64) []int64 {
	var admins []int64
	for _, field := range strings.Fields(raw) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			log.Printf("Ignoring invalid admin ID %q", field)
			continue
		}
		admins = append(admins, id)
	}
	for _, id := range admins {
		if id == ownerID {
			return admins
		}
	}
	return append(admins, ownerID)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("env %s must be an integer, got %q", key, raw)
	}
	return value, nil
}

// boolEnv accepts "true", "1" or "yes" (any case) as true. Any other
// set value reads as false.
func boolEnv(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
