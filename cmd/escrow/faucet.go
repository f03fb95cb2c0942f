package main

import (
	"github.com/tdex-network/escrowd/pkg/mathutil"
	"github.com/urfave/cli/v2"
)

var (
	faucet = cli.Command{
		Name:  "faucet",
		Usage: "fund accounts and approve allowances on daemons running with the faucet enabled",
		Subcommands: []*cli.Command{
			faucetMintCmd, faucetApproveCmd,
		},
	}

	faucetMintCmd = &cli.Command{
		Name:  "mint",
		Usage: "credit an account with native currency or tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "account",
				Usage: "the account to fund, defaults to the configured address",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "the token to mint, omit for native currency",
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "the amount to mint, in units of the configured decimals",
				Required: true,
			},
		},
		Action: mintAction,
	}

	faucetApproveCmd = &cli.Command{
		Name:  "approve",
		Usage: "let a spender pull tokens from the configured address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "the token contract address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "spender",
				Usage: "the spender address, defaults to the ledger",
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "the allowance, in units of the configured decimals",
				Required: true,
			},
		},
		Action: approveAction,
	}
)

func mintAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	account := ctx.String("account")
	if account == "" {
		account = client.caller.Hex()
	}
	amount, err := mathutil.ParseUnits(ctx.String("amount"), client.decimals)
	if err != nil {
		return err
	}

	var reply map[string]interface{}
	if err := client.post("/v1/faucet/mint", map[string]string{
		"account": account,
		"token":   ctx.String("token"),
		"amount":  amount.String(),
	}, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func approveAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	amount, err := mathutil.ParseUnits(ctx.String("amount"), client.decimals)
	if err != nil {
		return err
	}

	var reply map[string]interface{}
	if err := client.post("/v1/faucet/approve", map[string]string{
		"token":   ctx.String("token"),
		"spender": ctx.String("spender"),
		"amount":  amount.String(),
	}, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}
