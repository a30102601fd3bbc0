package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/lynxbot/lynx/pkg/logging"
	"github.com/lynxbot/lynx/pkg/panelstore"
	"github.com/lynxbot/lynx/pkg/request"
	"github.com/lynxbot/lynx/pkg/ticket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for the health check.
	PathHealth = "/health"
)

const (
	// openRateInterval and openRateBurst bound how fast a single user can
	// open tickets.
	openRateInterval = rate.Limit(1.0 / 30.0)
	openRateBurst    = 2
)

// IApp is the interface for the application.
type IApp interface {
	// Log returns the logger.
	Log() *slog.Logger

	// Session returns the discord session.
	Session() *discordgo.Session

	// Panels returns the panel store.
	Panels() panelstore.Store

	// Tickets returns the ticket lifecycle.
	Tickets() *ticket.Lifecycle

	// OpenLimiter returns the ticket open rate limiter for a user.
	OpenLimiter(userID string) *rate.Limiter
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// panels is the panel store.
	panels panelstore.Store

	// tickets is the ticket lifecycle.
	tickets *ticket.Lifecycle

	// limMu guards limiters.
	limMu sync.Mutex

	// limiters is the per-user ticket open rate limiters.
	limiters map[string]*rate.Limiter

	// registeredCommands is the slash commands registered at startup, kept
	// so they can be unregistered on shutdown.
	registeredCommands []*discordgo.ApplicationCommand
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		Logger: l,
		r:      r,
	}
}

func (a *App) Run() error {
	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
	})

	a.RegisterDiscordHandlers()

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	a.Info("Bot is now running.")

	a.generateServer()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Process shutdown signal.
	for sig := range c {
		a.Info("Received shutdown signal", slog.String(logging.KeySignal, sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	a.s = dg
	a.panels = panelstore.New(a.Logger, PanelsFile)
	a.tickets = ticket.NewLifecycle(a.Logger, dg, ticket.NewArchiver(a.Logger, dg))
	a.limiters = make(map[string]*rate.Limiter)
	return nil
}

func (a *App) runServer() {
	go func() {
		a.Info("Starting monitoring server")
		if err := a.svr.ListenAndServe(); err != nil {
			a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) generateServer() {
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)
	a.r.HandleFunc(PathHealth, middlewareHttp(a, a.healthCheck())).Methods(http.MethodGet)

	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)

	a.svr = &http.Server{
		Addr:    ":" + MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "", false)
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Interaction create handler.
	a.s.AddHandler(interactionHandler(a,
		// Slash Controllers
		map[string]commandController{
			panelCmd.Name: panelCmdController,
			vouchCmd.Name: vouchCmdController,
		},
		// Button Controllers
		map[string]commandProcessor{
			ticket.ActionOpenTicket:  openTicketHandler,
			ticket.ActionClaimTicket: claimTicketHandler,
			ticket.ActionCloseTicket: closeTicketHandler,
		}))
}

func (a *App) registerSlashCommands() error {
	guildIDs := []string{GuildId}
	if GuildId == "" {
		// No single guild configured; register in every joined guild.
		guilds, err := a.GetJoinedGuilds()
		if err != nil {
			return fmt.Errorf("error getting guilds: %w", err)
		}

		guildIDs = guildIDs[:0]
		for _, g := range guilds {
			guildIDs = append(guildIDs, g.ID)
		}
	}

	// Register slash commands for each guild.
	for _, guildID := range guildIDs {
		for _, cmd := range []*discordgo.ApplicationCommand{panelCmd, vouchCmd} {
			created, err := a.s.ApplicationCommandCreate(ApplicationId, guildID, cmd)
			if err != nil {
				return fmt.Errorf("error creating %s command for guild %s: %w", cmd.Name, guildID, err)
			}
			a.registeredCommands = append(a.registeredCommands, created)
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	for _, cmd := range a.registeredCommands {
		if err := a.s.ApplicationCommandDelete(ApplicationId, cmd.GuildID, cmd.ID); err != nil {
			return fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, cmd.GuildID, err)
		}
	}
	return nil
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Panels() panelstore.Store {
	return a.panels
}

func (a *App) Tickets() *ticket.Lifecycle {
	return a.tickets
}

func (a *App) OpenLimiter(userID string) *rate.Limiter {
	a.limMu.Lock()
	defer a.limMu.Unlock()

	l, ok := a.limiters[userID]
	if !ok {
		l = rate.NewLimiter(openRateInterval, openRateBurst)
		a.limiters[userID] = l
	}
	return l
}
