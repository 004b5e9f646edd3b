package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Session tuning for the conversation loop.
type Session struct {
	ConversationTimeout time.Duration
	ListenTimeout       time.Duration
	PhraseLimit         time.Duration
	SpeakTimeout        time.Duration
	MaxListenRetries    int
	CriticalErrorLimit  int
}

// Mail tuning for the dispatch worker and SMTP sender.
type Mail struct {
	Address  string
	Password string
	Server   string
	Port     int

	RetryLimit       int
	RetryDelay       time.Duration
	BatchSize        int
	BatchInterval    time.Duration
	PollInterval     time.Duration
	DrainQueueOnStop bool

	TemplateDir string
}

// Browser tuning for the automation controller.
type Browser struct {
	SearchLimit   int
	PlayerTimeout time.Duration
	Headless      bool
}

// Speech names the external TTS/STT programs.
type Speech struct {
	SpeakCmd  []string
	ListenCmd []string
}

type Config struct {
	BusURL       string
	ProxyAddr    string
	ProxyTimeout time.Duration
	OpenAIKey    string

	Session Session
	Speech  Speech
	Mail    Mail
	Browser Browser
}

// Load reads settings from the environment. Missing values fall back to
// defaults, so a bare environment still yields a runnable config.
func Load() Config {
	return Config{
		BusURL:       getenv("BUS_URL", "ws://localhost:8092/ws"),
		ProxyAddr:    getenv("PROXY_ADDR", ""),
		ProxyTimeout: getdur("PROXY_TIMEOUT", 120*time.Second),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),

		Session: Session{
			ConversationTimeout: getdur("CONVERSATION_TIMEOUT", 60*time.Second),
			ListenTimeout:       getdur("LISTEN_TIMEOUT", 10*time.Second),
			PhraseLimit:         getdur("PHRASE_LIMIT", 12*time.Second),
			SpeakTimeout:        getdur("SPEAK_TIMEOUT", 30*time.Second),
			MaxListenRetries:    getint("MAX_LISTEN_RETRIES", 3),
			CriticalErrorLimit:  getint("CRITICAL_ERROR_LIMIT", 3),
		},

		Speech: Speech{
			SpeakCmd:  strings.Fields(getenv("SPEAK_CMD", "espeak-ng")),
			ListenCmd: strings.Fields(getenv("LISTEN_CMD", "")),
		},

		Mail: Mail{
			Address:          os.Getenv("EMAIL_ADDRESS"),
			Password:         os.Getenv("EMAIL_PASSWORD"),
			Server:           getenv("SMTP_SERVER", "smtp.gmail.com"),
			Port:             getint("SMTP_PORT", 587),
			RetryLimit:       getint("EMAIL_RETRY_LIMIT", 3),
			RetryDelay:       getdur("EMAIL_RETRY_DELAY", time.Second),
			BatchSize:        getint("EMAIL_BATCH_SIZE", 5),
			BatchInterval:    getdur("EMAIL_BATCH_INTERVAL", 30*time.Second),
			PollInterval:     getdur("EMAIL_POLL_INTERVAL", time.Second),
			DrainQueueOnStop: getbool("EMAIL_DRAIN_QUEUE", false),
			TemplateDir:      getenv("EMAIL_TEMPLATE_DIR", "templates"),
		},

		Browser: Browser{
			SearchLimit:   getint("VIDEO_SEARCH_LIMIT", 5),
			PlayerTimeout: getdur("PLAYER_TIMEOUT", 10*time.Second),
			Headless:      getbool("HEADLESS", false),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
