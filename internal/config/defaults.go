package config

const (
	DefaultReleaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp"
	DefaultIgnoreMark = "bot-ignore"
)

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			BusSize:  100,
		},
		Telegram: TelegramConfig{
			NotifyStartup: true,
		},
		Downloader: DownloaderConfig{
			BinaryDir:      "libs",
			BinaryName:     "yt-dlp",
			OutputDir:      "output",
			ReleaseURL:     DefaultReleaseURL,
			AutoInstall:    true,
			Profile:        "strict",
			TimeoutSeconds: 600,
			UpdateSchedule: "@every 24h",
			UpdateOnStart:  true,
			IgnoreMarker:   DefaultIgnoreMark,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
