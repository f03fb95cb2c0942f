package main

import (
	"fmt"
	"math/big"

	"github.com/tdex-network/escrowd/pkg/mathutil"
	"github.com/urfave/cli/v2"
)

var (
	withdraw = cli.Command{
		Name:  "withdraw",
		Usage: "sweep the whole ledger balance of an asset to the owner",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "the token contract address, omit to withdraw native currency",
			},
		},
		Action: withdrawAction,
	}

	addtoken = cli.Command{
		Name:  "addtoken",
		Usage: "add a token to the set of supported payment tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "the token contract address",
				Required: true,
			},
		},
		Action: addTokenAction,
	}
)

func withdrawAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	path := "/v1/withdraw/native"
	var body interface{}
	if token := ctx.String("token"); token != "" {
		path = "/v1/withdraw/token"
		body = map[string]string{"asset": token}
	}

	var reply struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	}
	if err := client.post(path, body, &reply); err != nil {
		return err
	}

	amount, ok := new(big.Int).SetString(reply.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount in response: %s", reply.Amount)
	}

	fmt.Println()
	fmt.Printf(
		"withdrawn %s (%s base units) of asset %s\n",
		mathutil.FormatUnits(amount, client.decimals), reply.Amount, reply.Asset,
	)
	return nil
}

func addTokenAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	token := ctx.String("token")
	if err := client.post("/v1/tokens", map[string]string{
		"asset": token,
	}, nil); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("supported token added:", token)
	return nil
}
