package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/lynxbot/lynx/pkg/logging"
	"github.com/lynxbot/lynx/pkg/request"
)

// commandController resolves a slash command interaction to its processor.
// It may respond to the interaction itself and return a nil processor, for
// example when a permission check fails.
type commandController func(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error)

// commandProcessor handles a resolved interaction.
type commandProcessor func(a IApp, i *discordgo.InteractionCreate) error

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(a IApp, handler Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
				)
				cw.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(cw).Encode(request.NewMessage(request.ErrInternalServer.Error())); err != nil {
					a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Log().Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		defer func() {
			// Run the deferred function after the request has been handled, as the status code will not be available until then.
			HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// interactionHandler dispatches inbound interactions. Slash commands are
// routed by command name; button presses carry an "<action>:<panelID>"
// custom ID and are routed by the action segment.
func interactionHandler(a IApp, controllers map[string]commandController, buttons map[string]commandProcessor) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			handleSlashCommand(a, i, controllers)
		case discordgo.InteractionMessageComponent:
			handleButtonPress(a, i, buttons)
		}
	}
}

func handleSlashCommand(a IApp, i *discordgo.InteractionCreate, controllers map[string]commandController) {
	name := i.ApplicationCommandData().Name
	a.Log().Debug("Handling interaction " + name)
	TotalInteractions.WithLabelValues(name).Inc()

	controller, ok := controllers[name]
	if !ok {
		a.Log().Error("No controller found for command", slog.String("command", name))
		if err := respondError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	t := time.Now().UTC()
	defer func() {
		DiscordCommandDuration.WithLabelValues(name).Observe(time.Since(t).Seconds())
	}()

	processor, err := controller(a, i)
	if err != nil {
		a.Log().Error(fmt.Sprintf("Error getting processor for command %s", name),
			slog.String(logging.KeyError, err.Error()))

		if err := respondError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	} else if processor == nil {
		// The controller has already responded (for example, a failed
		// permission check).
		return
	}

	if err := processor(a, i); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing command %s", name),
			slog.String(logging.KeyError, err.Error()))

		if err := respondError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
	}
}

func handleButtonPress(a IApp, i *discordgo.InteractionCreate, buttons map[string]commandProcessor) {
	customID := i.MessageComponentData().CustomID
	action, _, ok := strings.Cut(customID, ":")
	if !ok {
		a.Log().Debug("Ignoring button with unrecognised custom ID", slog.String("custom_id", customID))
		return
	}

	a.Log().Debug("Handling button press " + action)
	TotalInteractions.WithLabelValues(action).Inc()

	processor, found := buttons[action]
	if !found {
		a.Log().Error("No processor found for button", slog.String("action", action))
		return
	}

	if err := processor(a, i); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing button %s", action),
			slog.String(logging.KeyError, err.Error()))

		if err := respondError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
	}
}
