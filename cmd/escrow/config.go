package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
)

const (
	rpcServerKey = "rpcserver"
	addressKey   = "address"
	secretKey    = "secret"
	decimalsKey  = "decimals"
)

var (
	rpcFlag = cli.StringFlag{
		Name:  "rpcserver",
		Usage: "escrowd daemon url",
		Value: "http://localhost:9945",
	}

	addressFlag = cli.StringFlag{
		Name:  "address",
		Usage: "hex address of the account calling the daemon",
	}

	secretFlag = cli.StringFlag{
		Name: "secret",
		Usage: "the secret shared with the daemon to sign caller tokens, if " +
			"empty the address is sent in clear to daemons running without auth",
	}

	decimalsFlag = cli.StringFlag{
		Name:  "decimals",
		Usage: "the precision used to convert human readable amounts",
		Value: "18",
	}
)

var config = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the escrow CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:   "set",
			Usage:  "set a <key> <value> in the local state",
			Action: configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&rpcFlag,
				&addressFlag,
				&secretFlag,
				&decimalsFlag,
			},
		},
	},
}

func configAction(ctx *cli.Context) error {
	state, err := getState()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := state[key]
		if key == secretKey && value != "" {
			value = "********"
		}
		fmt.Println(key + ": " + value)
	}

	return nil
}

func configInitAction(c *cli.Context) error {
	return setState(map[string]string{
		rpcServerKey: c.String("rpcserver"),
		addressKey:   c.String("address"),
		secretKey:    c.String("secret"),
		decimalsKey:  c.String("decimals"),
	})
}

func configSetAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("key and value are missing")
	}

	key := c.Args().Get(0)
	value := c.Args().Get(1)

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)

	return nil
}
