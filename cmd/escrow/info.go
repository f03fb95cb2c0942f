package main

import (
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

var (
	getinfo = cli.Command{
		Name:  "getinfo",
		Usage: "query the state of the ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "one of ledger, order, buyer, balance, tokens, account",
				Value: "ledger",
			},
			&cli.Uint64Flag{
				Name:  "order_id",
				Usage: "the order to fetch with --query order",
			},
			&cli.StringFlag{
				Name:  "buyer",
				Usage: "the buyer or account address for --query buyer and account",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "the asset for --query balance and account, omit for native currency",
			},
		},
		Action: getInfoAction,
	}

	events = cli.Command{
		Name:  "events",
		Usage: "list the ledger events, oldest first",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "from",
				Usage: "the sequence number of the first event to return",
			},
			&cli.Uint64Flag{
				Name:  "limit",
				Usage: "the max number of events to return (at most 1000), 0 for all",
			},
		},
		Action: eventsAction,
	}
)

func getInfoAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	var path string
	switch ctx.String("query") {
	case "ledger":
		path = "/v1/info"
	case "order":
		if !ctx.IsSet("order_id") {
			return fmt.Errorf("missing order id")
		}
		path = fmt.Sprintf("/v1/orders/%d", ctx.Uint64("order_id"))
	case "buyer":
		buyer, err := buyerAddress(ctx, client)
		if err != nil {
			return err
		}
		path = fmt.Sprintf("/v1/buyers/%s/orders", buyer)
	case "balance":
		path = "/v1/balances"
		if token := ctx.String("token"); token != "" {
			path = fmt.Sprintf("/v1/balances/%s", token)
		}
	case "tokens":
		path = "/v1/tokens"
	case "account":
		account, err := buyerAddress(ctx, client)
		if err != nil {
			return err
		}
		path = fmt.Sprintf("/v1/accounts/%s/balance", account)
		if token := ctx.String("token"); token != "" {
			path += "?token=" + url.QueryEscape(token)
		}
	default:
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	var reply map[string]interface{}
	if err := client.get(path, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func eventsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("from", fmt.Sprint(ctx.Uint64("from")))
	query.Set("limit", fmt.Sprint(ctx.Uint64("limit")))

	var reply map[string]interface{}
	if err := client.get("/v1/events?"+query.Encode(), &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

// buyerAddress defaults to the configured address when --buyer is omitted.
func buyerAddress(ctx *cli.Context, c *client) (string, error) {
	if buyer := ctx.String("buyer"); buyer != "" {
		return buyer, nil
	}
	if c.caller == (common.Address{}) {
		return "", fmt.Errorf("missing buyer address")
	}
	return c.caller.Hex(), nil
}
