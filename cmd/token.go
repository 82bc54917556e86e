package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/auth"
)

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a service token for the operational endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
			&cli.StringFlag{
				Name:  "subject",
				Usage: "Token subject, shows up in the access log",
				Value: "ops",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			token, err := auth.MintServiceToken(
				[]byte(cfg.Auth.JWTSecret), c.String("subject"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
