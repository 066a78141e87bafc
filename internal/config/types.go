package config

import "time"

// limits the history cap may be configured to
const (
	MinHistoryLimit = 50
	MaxHistoryLimit = 200

	MinTextLength = 500
	MaxTextLength = 1000
)

type Config struct {
	Port             string        `env:"PORT"               envDefault:"3000"`
	Environment      string        `env:"ENVIRONMENT"        envDefault:"development"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS"    envSeparator:","`
	HistoryLimit     int           `env:"HISTORY_LIMIT"      envDefault:"100"`
	InitHistory      int           `env:"INIT_HISTORY"       envDefault:"50"`
	MaxTextLength    int           `env:"MAX_TEXT_LENGTH"    envDefault:"500"`
	MaxCaptionLength int           `env:"MAX_CAPTION_LENGTH" envDefault:"200"`
	MaxMessageBytes  int64         `env:"MAX_MESSAGE_BYTES"  envDefault:"5242880"`
	GracePeriod      time.Duration `env:"GRACE_PERIOD"       envDefault:"5m"`
	Timezone         string        `env:"TIMEZONE"           envDefault:"Local"`
	StaticDir        string        `env:"STATIC_DIR"`
}

// command line overrides for the server command
type Flags struct {
	Port  string
	Debug bool
}
