package httpinterface

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

// maxEventsLimit caps the page size of the events endpoint. A zero limit
// returns every event from the requested sequence number.
const maxEventsLimit = 1000

type handler struct {
	escrowSvc application.EscrowService
	pubsubSvc application.PubSubService
	custodian ports.Custodian
	faucet    ports.Faucet
}

func (h *handler) getInfo(w http.ResponseWriter, r *http.Request) {
	nextID, err := h.escrowSvc.GetNextOrderID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	info := h.escrowSvc.GetInfo()
	writeJSON(w, http.StatusOK, infoResponse{
		Owner:          info.Owner.Hex(),
		Ledger:         info.Ledger.Hex(),
		MinimumPayment: info.MinimumPayment.String(),
		NextOrderID:    nextID,
	})
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	id, err := h.escrowSvc.CreateOrder(r.Context(), caller, amount, asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{id})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := h.escrowSvc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getOrderResponse{
		Found: order != nil,
		Order: newOrderInfo(order),
	})
}

func (h *handler) payNative(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req payNativeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	if err := h.escrowSvc.ProcessNativePayment(
		r.Context(), caller, id, value,
	); err != nil {
		writeError(w, err)
		return
	}
	h.writeOrder(w, r, id)
}

func (h *handler) payToken(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	if err := h.escrowSvc.ProcessTokenPayment(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	h.writeOrder(w, r, id)
}

func (h *handler) cancelOrders(w http.ResponseWriter, r *http.Request) {
	var req cancelOrdersRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	if err := h.escrowSvc.CancelOrders(r.Context(), caller, req.OrderIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelOrdersRequest{req.OrderIDs})
}

func (h *handler) initiateRefund(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	if err := h.escrowSvc.InitiateRefund(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	h.writeOrder(w, r, id)
}

func (h *handler) processRefund(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	if err := h.escrowSvc.ProcessRefund(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	h.writeOrder(w, r, id)
}

func (h *handler) getBuyerOrders(w http.ResponseWriter, r *http.Request) {
	buyer, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	ids, err := h.escrowSvc.GetBuyerOrders(r.Context(), buyer)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, buyerOrdersResponse{buyer.Hex(), ids})
}

func (h *handler) getBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.escrowSvc.GetAllBalances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	list := make([]balanceInfo, 0, len(balances))
	for asset, amount := range balances {
		list = append(list, balanceInfo{asset.Hex(), amount.String()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Asset < list[j].Asset })
	writeJSON(w, http.StatusOK, balancesResponse{list})
}

func (h *handler) getBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := h.escrowSvc.GetBalance(r.Context(), asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceInfo{asset.Hex(), balance.String()})
}

func (h *handler) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.escrowSvc.ListSupportedTokens(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	list := make([]string, 0, len(tokens))
	for _, t := range tokens {
		list = append(list, t.Hex())
	}
	writeJSON(w, http.StatusOK, tokensResponse{list})
}

func (h *handler) isSupportedToken(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := h.escrowSvc.IsSupportedToken(r.Context(), asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, isSupportedResponse{asset.Hex(), ok})
}

func (h *handler) addToken(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	if err := h.escrowSvc.AddSupportedToken(r.Context(), caller, asset); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, isSupportedResponse{asset.Hex(), true})
}

func (h *handler) withdrawNative(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	amount, err := h.escrowSvc.WithdrawNative(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{
		domain.NativeAsset.Hex(), amount.String(),
	})
}

func (h *handler) withdrawToken(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerFromContext(r.Context())
	amount, err := h.escrowSvc.WithdrawToken(r.Context(), caller, asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{asset.Hex(), amount.String()})
}

func (h *handler) getEvents(w http.ResponseWriter, r *http.Request) {
	from, err := parseUintQuery(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := parseUintQuery(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	if limit > maxEventsLimit {
		writeError(w, fmt.Errorf(
			"%w: limit must not exceed %d", errBadRequest, maxEventsLimit,
		))
		return
	}

	events, err := h.escrowSvc.GetEvents(r.Context(), from, int(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	list := make([]application.EventMessage, 0, len(events))
	for _, e := range events {
		list = append(list, application.NewEventMessage(e))
	}
	writeJSON(w, http.StatusOK, eventsResponse{list})
}

func (h *handler) addWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.onlyOwner(r); err != nil {
		writeError(w, err)
		return
	}
	var req addWebhookRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.pubsubSvc.AddWebhook(r.Context(), application.Webhook{
		Event:    req.Event,
		Endpoint: req.Endpoint,
		Secret:   req.Secret,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addWebhookResponse{id})
}

func (h *handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	if err := h.onlyOwner(r); err != nil {
		writeError(w, err)
		return
	}

	hooks, err := h.pubsubSvc.ListWebhooks(r.Context(), r.URL.Query().Get("event"))
	if err != nil {
		writeError(w, err)
		return
	}
	list := make([]webhookInfo, 0, len(hooks))
	for _, hook := range hooks {
		list = append(list, webhookInfo{
			ID:        hook.Id,
			Event:     hook.Event,
			Endpoint:  hook.Endpoint,
			IsSecured: hook.IsSecured,
		})
	}
	writeJSON(w, http.StatusOK, listWebhooksResponse{list})
}

func (h *handler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.onlyOwner(r); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.pubsubSvc.RemoveWebhook(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAsset(req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	if domain.IsNativeAsset(asset) {
		err = h.faucet.Mint(r.Context(), account, amount)
	} else {
		err = h.faucet.MintToken(r.Context(), asset, account, amount)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeAccountBalance(w, r, account, asset, nil)
}

func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAsset(req.Spender)
	if err != nil {
		writeError(w, err)
		return
	}
	if domain.IsNativeAsset(spender) {
		spender = h.escrowSvc.GetInfo().Ledger
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	owner := callerFromContext(r.Context())
	if err := h.faucet.Approve(r.Context(), token, owner, spender, amount); err != nil {
		writeError(w, err)
		return
	}
	h.writeAccountBalance(w, r, owner, token, &spender)
}

// getAccountBalance returns the external balance of an account, and its
// allowance towards the ledger for tokens.
func (h *handler) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAsset(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	ledger := h.escrowSvc.GetInfo().Ledger
	h.writeAccountBalance(w, r, account, asset, &ledger)
}

func (h *handler) writeAccountBalance(
	w http.ResponseWriter, r *http.Request,
	account, asset common.Address, spender *common.Address,
) {
	ctx := r.Context()
	resp := accountBalanceResponse{Account: account.Hex(), Asset: asset.Hex()}

	if domain.IsNativeAsset(asset) {
		balance, err := h.custodian.NativeBalance(ctx, account)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Balance = balance.String()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	balance, err := h.custodian.TokenBalance(ctx, asset, account)
	if err != nil {
		writeError(w, err)
		return
	}
	resp.Balance = balance.String()
	if spender != nil {
		allowance, err := h.custodian.Allowance(ctx, asset, account, *spender)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Allowance = allowance.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) writeOrder(w http.ResponseWriter, r *http.Request, id uint64) {
	order, err := h.escrowSvc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getOrderResponse{
		Found: order != nil,
		Order: newOrderInfo(order),
	})
}

func (h *handler) onlyOwner(r *http.Request) error {
	if callerFromContext(r.Context()) != h.escrowSvc.GetInfo().Owner {
		return domain.ErrNotOwner
	}
	return nil
}
