package httpinterface

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/infrastructure/pubsub"
)

var (
	errMissingCaller = errors.New("missing caller identity")
	errInvalidCaller = errors.New("invalid caller identity")
	errBadRequest    = errors.New("bad request")
)

type errorCode struct {
	err    error
	status int
	code   string
}

var errorCodes = []errorCode{
	{domain.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{pubsub.ErrSubscriptionNotFound, http.StatusNotFound, "WEBHOOK_NOT_FOUND"},

	{domain.ErrNotOwner, http.StatusForbidden, "NOT_OWNER"},
	{domain.ErrNotOrderOwner, http.StatusForbidden, "NOT_ORDER_OWNER"},

	{domain.ErrOrderNotPending, http.StatusConflict, "ORDER_NOT_PENDING"},
	{domain.ErrOrderNotCompleted, http.StatusConflict, "ORDER_NOT_COMPLETED"},
	{domain.ErrOrderNotRefundPending, http.StatusConflict, "ORDER_NOT_REFUND_PENDING"},
	{domain.ErrZeroBalance, http.StatusConflict, "ZERO_BALANCE"},
	{domain.ErrInsufficientBalance, http.StatusConflict, "INSUFFICIENT_BALANCE"},

	{domain.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{domain.ErrUnsupportedAsset, http.StatusBadRequest, "UNSUPPORTED_ASSET"},
	{domain.ErrInvalidAsset, http.StatusBadRequest, "INVALID_ASSET"},
	{domain.ErrInvalidPaymentMethod, http.StatusBadRequest, "INVALID_PAYMENT_METHOD"},
	{domain.ErrInsufficientPayment, http.StatusBadRequest, "INSUFFICIENT_PAYMENT"},
	{domain.ErrInsufficientAllowance, http.StatusBadRequest, "INSUFFICIENT_ALLOWANCE"},
	{ports.ErrInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
	{ports.ErrAllowanceExceeded, http.StatusBadRequest, "ALLOWANCE_EXCEEDED"},
	{application.ErrInvalidWebhookEvent, http.StatusBadRequest, "INVALID_WEBHOOK_EVENT"},
	{pubsub.ErrUnknownEventType, http.StatusBadRequest, "INVALID_WEBHOOK_EVENT"},
	{pubsub.ErrInvalidEndpoint, http.StatusBadRequest, "INVALID_WEBHOOK_ENDPOINT"},
	{application.ErrPubSubNotInitialized, http.StatusServiceUnavailable, "WEBHOOKS_DISABLED"},
	{errBadRequest, http.StatusBadRequest, "BAD_REQUEST"},

	{errMissingCaller, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{errInvalidCaller, http.StatusUnauthorized, "UNAUTHENTICATED"},
}

type errorBody struct {
	Error errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusForError(err error) (int, string) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Warn("http: internal error")
	}
	writeJSON(w, status, errorBody{errorInfo{code, err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("http: failed to write response")
	}
}
