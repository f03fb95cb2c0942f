package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/pkg/callertoken"
)

const (
	callerHeader = "X-Escrow-Caller"
	tokenTTL     = 5 * time.Minute
)

type client struct {
	url      string
	caller   common.Address
	secret   string
	decimals int32
	http     *http.Client
}

func getClient() (*client, error) {
	state, err := getState()
	if err != nil {
		return nil, err
	}
	url, ok := state[rpcServerKey]
	if !ok || url == "" {
		return nil, errors.New("set rpcserver with `config set rpcserver`")
	}

	var caller common.Address
	if addr := state[addressKey]; addr != "" {
		if caller, err = callertoken.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid address in config state: %s", addr)
		}
	}

	decimals := int64(18)
	if str := state[decimalsKey]; str != "" {
		if decimals, err = strconv.ParseInt(str, 10, 32); err != nil {
			return nil, fmt.Errorf("invalid decimals in config state: %s", str)
		}
	}

	return &client{
		url:      strings.TrimSuffix(url, "/"),
		caller:   caller,
		secret:   state[secretKey],
		decimals: int32(decimals),
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, false, nil, out)
}

// post sends an authenticated request on behalf of the configured address.
func (c *client) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, true, body, out)
}

func (c *client) delete(path string) error {
	return c.do(http.MethodDelete, path, true, nil, nil)
}

func (c *client) do(
	method, path string, withAuth bool, body, out interface{},
) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if withAuth {
		if err := c.authenticate(req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("%s: %s", errResp.Error.Code, errResp.Error.Message)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) authenticate(req *http.Request) error {
	if c.caller == (common.Address{}) {
		return errors.New("set address with `config set address`")
	}
	if c.secret == "" {
		req.Header.Set(callerHeader, c.caller.Hex())
		return nil
	}

	token, err := callertoken.New(c.caller, []byte(c.secret), tokenTTL)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
