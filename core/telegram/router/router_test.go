package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/logger"
	tg "github.com/m3rciful/autobot/core/telegram"
	"github.com/m3rciful/autobot/core/telegram/commands"
	tghelpers "github.com/m3rciful/autobot/core/telegram/helpers"
)

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "menu missing" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	require.Equal(t, "MENU_MISSING", deriveErrorCode(codedErr{}))
	require.Equal(t, "PLAINERR", deriveErrorCode(&plainErr{}))
	require.Equal(t, "", deriveErrorCode(nil))
}

func TestNormalizeHandlerName(t *testing.T) {
	require.Equal(t, "start", normalizeHandlerName("/Start"))
	require.Equal(t, "unknown", normalizeHandlerName(" "))
	require.Equal(t, "show_all", normalizeHandlerName("show all"))
}

func TestCommandRoutesIncludeAliases(t *testing.T) {
	ctx := context.Background()
	reg := tg.NewRegistry()
	reg.RegisterCommand(ctx, "/menu", commands.Command{
		Handler:     func(tele.Context) error { return nil },
		Description: "Menu",
		Aliases:     []string{"home"},
	})
	routes := CommandRoutes(ctx, reg)
	require.Len(t, routes, 2)
	endpoints := []any{routes[0].Endpoint, routes[1].Endpoint}
	require.ElementsMatch(t, []any{"/menu", "/home"}, endpoints)
	require.Nil(t, CommandRoutes(ctx, nil))
}

func TestCallbackRouteTagsHandler(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	boom := errors.New("boom")
	var handler string
	route := CallbackRoute(func(c tele.Context) error {
		ctx, _ := tghelpers.ContextFrom(c)
		handler = logger.HandlerFrom(ctx)
		return boom
	})
	require.Equal(t, tele.OnCallback, route.Endpoint)

	c := b.NewContext(tele.Update{ID: 1, Callback: &tele.Callback{ID: "x", Data: "info", Sender: &tele.User{ID: 3}}})
	require.ErrorIs(t, route.Handler(c), boom)
	require.Equal(t, "callback", handler)

	require.NoError(t, route.Handler(b.NewContext(tele.Update{ID: 2})))
}
