// Package client talks to a fantasy RPG server over HTTP and websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fantasyrpg/shared/protocol"
)

type HTTP struct {
	Base  string
	Token string
	c     *http.Client
}

func NewHTTP(base, token string) *HTTP {
	return &HTTP{Base: strings.TrimRight(base, "/"), Token: token, c: &http.Client{Timeout: 10 * time.Second}}
}

func (h *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.Base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

// GetJSON performs a GET request and decodes the JSON response.
func GetJSON[T any](ctx context.Context, h *HTTP, path string) (T, error) {
	var out T
	err := h.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// PostJSON performs a POST request with a JSON body.
func PostJSON[Req any, Res any](ctx context.Context, h *HTTP, path string, body Req) (Res, error) {
	var out Res
	err := h.do(ctx, http.MethodPost, path, body, &out)
	return out, err
}

type registerReq struct {
	Wallet            string `json:"wallet"`
	Passphrase        string `json:"passphrase"`
	PassphraseConfirm string `json:"passphrase_confirm"`
}

type loginReq struct {
	Wallet     string `json:"wallet"`
	Passphrase string `json:"passphrase"`
}

type loginResp struct {
	Token  string `json:"token"`
	Wallet string `json:"wallet"`
}

func (h *HTTP) Register(ctx context.Context, wallet, passphrase string) error {
	_, err := PostJSON[registerReq, struct{ OK bool }](ctx, h, "/api/register",
		registerReq{Wallet: wallet, Passphrase: passphrase, PassphraseConfirm: passphrase})
	return err
}

// Login returns a token and keeps it for later requests.
func (h *HTTP) Login(ctx context.Context, wallet, passphrase string) (string, error) {
	resp, err := PostJSON[loginReq, loginResp](ctx, h, "/api/login", loginReq{Wallet: wallet, Passphrase: passphrase})
	if err != nil {
		return "", err
	}
	h.Token = resp.Token
	return resp.Token, nil
}

func (h *HTTP) Leaderboard(ctx context.Context, order string) (protocol.Leaderboard, error) {
	path := "/api/leaderboard"
	if order != "" {
		path += "?order=" + url.QueryEscape(order)
	}
	return GetJSON[protocol.Leaderboard](ctx, h, path)
}
