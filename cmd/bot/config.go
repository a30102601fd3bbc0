package main

import (
	"log/slog"
	"os"

	"github.com/lynxbot/lynx/pkg/logging"
)

const (
	// AppName is the name of the application.
	AppName = "lynx"

	// EnvBotToken is the environment variable for the bot token.
	EnvBotToken = `BOT_TOKEN`

	// EnvApplicationId is the environment variable for the application ID.
	EnvApplicationId = `APPLICATION_ID`

	// EnvGuildId is the environment variable for an optional single guild to
	// register commands in.
	EnvGuildId = `GUILD_ID`

	// EnvPanelsFile is the environment variable for the panel table location.
	EnvPanelsFile = `PANELS_FILE`

	// EnvMonitoringPort is the environment variable for the monitoring port.
	EnvMonitoringPort = `MONITORING_PORT`
)

var (
	// BotToken is the token for the bot.
	BotToken string

	// ApplicationId is the ID of the application.
	ApplicationId string

	// GuildId restricts command registration to one guild when set. When
	// empty, commands are registered in every joined guild.
	GuildId string

	// PanelsFile is the location of the JSON panel table.
	PanelsFile string

	// MonitoringPort is the port for the monitoring server.
	MonitoringPort string
)

func parseConfig() {
	if envBT := os.Getenv(EnvBotToken); envBT != "" {
		slog.Debug("Found bot token in environment", slog.String("key", EnvBotToken))
		BotToken = envBT
	}

	if envAppId := os.Getenv(EnvApplicationId); envAppId != "" {
		slog.Debug("Found application ID in environment", slog.String("key", EnvApplicationId))
		ApplicationId = envAppId
	}

	if envGuildId := os.Getenv(EnvGuildId); envGuildId != "" {
		slog.Debug("Found guild ID in environment", slog.String("key", EnvGuildId))
		GuildId = envGuildId
	}

	if envPanels := os.Getenv(EnvPanelsFile); envPanels != "" {
		slog.Debug("Found panel table location in environment", slog.String("key", EnvPanelsFile))
		PanelsFile = envPanels
	} else {
		// Default to a table next to the binary if not provided.
		PanelsFile = "panels.json"
		slog.Info("No panel table location provided in environment, defaulting to panels.json", slog.String("key", EnvPanelsFile))
	}

	if envMonitoringPort := os.Getenv(EnvMonitoringPort); envMonitoringPort != "" {
		slog.Debug("Found monitoring port in environment", slog.String("key", EnvMonitoringPort))
		MonitoringPort = envMonitoringPort
	} else {
		// Default to 8080 if not provided.
		MonitoringPort = "8080"
		slog.Info("No monitoring port provided in environment, defaulting to 8080", slog.String("key", EnvMonitoringPort))
	}

	if BotToken != "" && ApplicationId != "" {
		// All required environment variables have been provided.
		slog.Debug("All required environment variables have been provided")
		return
	}

	slog.Error("Not all required environment variables have been provided", slog.String(logging.KeyError, "Incomplete configuration"))
	os.Exit(1)
}
