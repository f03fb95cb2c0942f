package httpinterface

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/pkg/callertoken"
)

// CallerHeader carries the caller address when token verification is
// disabled.
const CallerHeader = "X-Escrow-Caller"

type callerKey struct{}

// callerAuth resolves the verified identity of the caller and stores it in
// the request context. Requests without a valid identity are rejected.
func callerAuth(noAuth bool, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := resolveCaller(r, noAuth, secret)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveCaller(
	r *http.Request, noAuth bool, secret []byte,
) (common.Address, error) {
	var (
		caller common.Address
		err    error
	)

	if noAuth {
		header := strings.TrimSpace(r.Header.Get(CallerHeader))
		if header == "" {
			return common.Address{}, errMissingCaller
		}
		caller, err = callertoken.ParseAddress(header)
	} else {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			return common.Address{}, errMissingCaller
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return common.Address{}, fmt.Errorf(
				"%w: malformed authorization header", errInvalidCaller,
			)
		}
		caller, err = callertoken.Parse(parts[1], secret)
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", errInvalidCaller, err)
	}
	if caller == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", errInvalidCaller)
	}
	return caller, nil
}

func callerFromContext(ctx context.Context) common.Address {
	caller, _ := ctx.Value(callerKey{}).(common.Address)
	return caller
}
