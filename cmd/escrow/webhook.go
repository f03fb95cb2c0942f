package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var (
	webhook = cli.Command{
		Name:  "webhook",
		Usage: "add, list or remove webhooks (owner only)",
		Subcommands: []*cli.Command{
			webhookAddCmd, webhookListCmd, webhookRemoveCmd,
		},
	}

	webhookAddCmd = &cli.Command{
		Name:  "add",
		Usage: "add a (secured) webhook endpoint called whenever a target event occurs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "endpoint",
				Usage:    "the webhook endpoint to be called whenever the target event occurs",
				Required: true,
			},
			&cli.StringFlag{
				Name: "secret",
				Usage: "the eventual secret to use to generate an OAuth token for " +
					"authenticating requests to the webhook endpoint",
			},
			&cli.StringFlag{
				Name:     "event",
				Usage:    eventFlagUsage(),
				Required: true,
			},
		},
		Action: addWebhookAction,
	}

	webhookListCmd = &cli.Command{
		Name:  "list",
		Usage: "list all webhooks, optionally filtered by target event",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "event",
				Usage: eventFlagUsage(),
			},
		},
		Action: listWebhooksAction,
	}

	webhookRemoveCmd = &cli.Command{
		Name:  "remove",
		Usage: "remove a webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "the id of the webhook to remove",
				Required: true,
			},
		},
		Action: removeWebhookAction,
	}
)

func addWebhookAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	var reply struct {
		ID string `json:"id"`
	}
	if err := client.post("/v1/webhooks", map[string]string{
		"event":    ctx.String("event"),
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	}, &reply); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("webhook id:", reply.ID)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	path := "/v1/webhooks"
	if event := ctx.String("event"); event != "" {
		path += "?event=" + url.QueryEscape(event)
	}

	var reply map[string]interface{}
	if err := client.do("GET", path, true, nil, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	hookID := ctx.String("id")
	if err := client.delete("/v1/webhooks/" + url.PathEscape(hookID)); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("removed webhook with id:", hookID)
	return nil
}

func eventFlagUsage() string {
	names := make([]string, 0, len(domain.EventTypes))
	for _, e := range domain.EventTypes {
		names = append(names, string(e))
	}
	return fmt.Sprintf(
		"the target event, one of %s or * for any", strings.Join(names, ", "),
	)
}
