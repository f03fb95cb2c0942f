package main

import (
	"fmt"

	"github.com/tdex-network/escrowd/pkg/mathutil"
	"github.com/urfave/cli/v2"
)

type order struct {
	ID             uint64 `json:"id"`
	Buyer          string `json:"buyer"`
	Amount         string `json:"amount"`
	IsTokenPayment bool   `json:"is_token_payment"`
	PaymentToken   string `json:"payment_token"`
	Status         int    `json:"status"`
	StatusLabel    string `json:"status_label"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

type orderReply struct {
	Found bool  `json:"found"`
	Order order `json:"order"`
}

var orderIDFlag = cli.Uint64Flag{
	Name:     "order_id",
	Usage:    "the id of the target order",
	Required: true,
}

var (
	createorder = cli.Command{
		Name:  "createorder",
		Usage: "create a new order payable in native currency or in a supported token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "the amount due, in units of the configured decimals",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "the token contract address, omit to pay in native currency",
			},
		},
		Action: createOrderAction,
	}

	paynative = cli.Command{
		Name:  "paynative",
		Usage: "pay a pending order in native currency",
		Flags: []cli.Flag{
			&orderIDFlag,
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "the value sent along with the payment",
				Required: true,
			},
		},
		Action: payNativeAction,
	}

	paytoken = cli.Command{
		Name: "paytoken",
		Usage: "pay a pending order in tokens, the buyer must have approved " +
			"the ledger for at least the order amount",
		Flags:  []cli.Flag{&orderIDFlag},
		Action: payTokenAction,
	}

	cancelorders = cli.Command{
		Name:  "cancelorders",
		Usage: "cancel one or more pending orders owned by the caller",
		Flags: []cli.Flag{
			&cli.Int64SliceFlag{
				Name:     "order_id",
				Usage:    "the id of an order to cancel, repeat for many",
				Required: true,
			},
		},
		Action: cancelOrdersAction,
	}

	refund = cli.Command{
		Name:  "refund",
		Usage: "initiate or process the refund of a completed order (owner only)",
		Flags: []cli.Flag{
			&orderIDFlag,
			&cli.StringFlag{
				Name:  "action",
				Usage: "either initiate or process",
				Value: "initiate",
			},
		},
		Action: refundAction,
	}
)

func createOrderAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	amount, err := mathutil.ParseUnits(ctx.String("amount"), client.decimals)
	if err != nil {
		return err
	}

	var reply struct {
		OrderID uint64 `json:"order_id"`
	}
	if err := client.post("/v1/orders", map[string]string{
		"amount": amount.String(),
		"asset":  ctx.String("token"),
	}, &reply); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("order id:", reply.OrderID)
	return nil
}

func payNativeAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	value, err := mathutil.ParseUnits(ctx.String("amount"), client.decimals)
	if err != nil {
		return err
	}

	var reply orderReply
	path := fmt.Sprintf("/v1/orders/%d/pay/native", ctx.Uint64("order_id"))
	if err := client.post(path, map[string]string{
		"value": value.String(),
	}, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func payTokenAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	var reply orderReply
	path := fmt.Sprintf("/v1/orders/%d/pay/token", ctx.Uint64("order_id"))
	if err := client.post(path, nil, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func cancelOrdersAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	ids := make([]uint64, 0)
	for _, id := range ctx.Int64Slice("order_id") {
		if id < 0 {
			return fmt.Errorf("invalid order id %d", id)
		}
		ids = append(ids, uint64(id))
	}
	if err := client.post("/v1/orders/cancel", map[string][]uint64{
		"order_ids": ids,
	}, nil); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("cancelled orders:", ids)
	return nil
}

func refundAction(ctx *cli.Context) error {
	action := ctx.String("action")
	if action != "initiate" && action != "process" {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	var reply orderReply
	path := fmt.Sprintf("/v1/orders/%d/refund/%s", ctx.Uint64("order_id"), action)
	if err := client.post(path, nil, &reply); err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}
