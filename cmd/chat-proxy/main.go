package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamvkosarev/ai-chat-proxy/config"
	"github.com/iamvkosarev/ai-chat-proxy/internal/app"
	"github.com/urfave/cli/v2"
)

var configPath string
var address string
var proxyURL string

var configFlag = &cli.StringFlag{
	Name:        "config",
	Usage:       "Path to a yaml config file. Environment variables override it",
	Aliases:     []string{"c"},
	EnvVars:     []string{"CONFIG_PATH"},
	Destination: &configPath,
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Run the completion proxy (POST /api/chat)",
	Flags: []cli.Flag{
		configFlag,
		&cli.StringFlag{
			Name:        "address",
			Usage:       "Listen address, overrides HTTP_ADDRESS",
			Aliases:     []string{"a"},
			Destination: &address,
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if address != "" {
			cfg.HTTP.Address = address
		}
		return app.RunServer(ctx.Context, cfg, configPath)
	},
}

var chatCommand = &cli.Command{
	Name:  "chat",
	Usage: "Chat with the proxy from the terminal",
	Flags: []cli.Flag{
		configFlag,
		&cli.StringFlag{
			Name:        "proxy-url",
			Usage:       "Base URL of the proxy, overrides CHAT_PROXY_URL",
			Aliases:     []string{"u"},
			Destination: &proxyURL,
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if proxyURL != "" {
			cfg.Chat.ProxyURL = proxyURL
		}
		return app.RunChat(ctx.Context, cfg, os.Stdin, os.Stdout)
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "chat-proxy",
		Usage:    "Proxy chat turns to a hosted LLM and chat with it",
		Commands: []*cli.Command{serveCommand, chatCommand},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
