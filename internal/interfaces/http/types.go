package httpinterface

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/pkg/callertoken"
	"github.com/tdex-network/escrowd/pkg/mathutil"
)

const maxBodySize = 1 << 20

type infoResponse struct {
	Owner          string `json:"owner"`
	Ledger         string `json:"ledger"`
	MinimumPayment string `json:"minimum_payment"`
	NextOrderID    uint64 `json:"next_order_id"`
}

type orderInfo struct {
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

type getOrderResponse struct {
	Found bool      `json:"found"`
	Order orderInfo `json:"order"`
}

type createOrderRequest struct {
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
}

type createOrderResponse struct {
	OrderID uint64 `json:"order_id"`
}

type payNativeRequest struct {
	Value string `json:"value"`
}

type cancelOrdersRequest struct {
	OrderIDs []uint64 `json:"order_ids"`
}

type buyerOrdersResponse struct {
	Buyer    string   `json:"buyer"`
	OrderIDs []uint64 `json:"order_ids"`
}

type balanceInfo struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type balancesResponse struct {
	Balances []balanceInfo `json:"balances"`
}

type assetRequest struct {
	Asset string `json:"asset"`
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
}

type isSupportedResponse struct {
	Asset     string `json:"asset"`
	Supported bool   `json:"supported"`
}

type withdrawResponse struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type eventsResponse struct {
	Events []application.EventMessage `json:"events"`
}

type addWebhookRequest struct {
	Event    string `json:"event"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret"`
}

type addWebhookResponse struct {
	ID string `json:"id"`
}

type webhookInfo struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

type listWebhooksResponse struct {
	Webhooks []webhookInfo `json:"webhooks"`
}

type mintRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

type approveRequest struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type accountBalanceResponse struct {
	Account   string `json:"account"`
	Asset     string `json:"asset"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance,omitempty"`
}

func newOrderInfo(o *domain.Order) orderInfo {
	if o == nil {
		// The empty order has a zero buyer and a zero amount.
		return orderInfo{
			Buyer:        common.Address{}.Hex(),
			Amount:       "0",
			PaymentToken: domain.NativeAsset.Hex(),
			StatusLabel:  domain.OrderStatusPending.String(),
		}
	}
	return orderInfo{
		ID:             o.ID,
		Buyer:          o.Buyer.Hex(),
		Amount:         o.Amount.String(),
		IsTokenPayment: o.IsTokenPayment,
		PaymentToken:   o.PaymentToken.Hex(),
		Status:         int(o.Status),
		StatusLabel:    o.Status.String(),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %s", errBadRequest, err)
	}
	return nil
}

func parseOrderID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid order id", errBadRequest)
	}
	return id, nil
}

// parseAsset parses an asset identifier, the empty string stands for the
// native currency.
func parseAsset(str string) (common.Address, error) {
	if str == "" {
		return domain.NativeAsset, nil
	}
	return parseAddress(str)
}

func parseAddress(str string) (common.Address, error) {
	addr, err := callertoken.ParseAddress(str)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", errBadRequest, str)
	}
	return addr, nil
}

func parseAmount(str string) (*big.Int, error) {
	amount, err := mathutil.ParseBaseUnits(str)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errBadRequest, err)
	}
	return amount, nil
}

func parseUintQuery(r *http.Request, key string) (uint64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, key)
	}
	return n, nil
}
