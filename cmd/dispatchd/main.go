package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "dispatchd",
		Usage: "Defect report dispatch and live responder tracking",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
			{
				Name:  "token",
				Usage: "Issue an access token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id (token subject)", Required: true},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "role claim", Required: true},
				},
				Action: runToken,
			},
			{
				Name:  "users",
				Usage: "Manage the user directory",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Add a user",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "user id; generated when empty"},
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "role", Required: true},
						},
						Action: runUsersAdd,
					},
				},
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("dispatchd: %v", err)
	}
}
