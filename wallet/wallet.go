// Package wallet resolves the acting wallet address for a request.
package wallet

import (
	"net/http"
	"strings"

	"taskmap-backend/core"
)

// WalletHeader carries the caller's connected wallet address.
const WalletHeader = "X-Wallet-Address"

// Provider yields the wallet address acting on a request.
type Provider interface {
	Actor(r *http.Request) (string, error)
}

// HeaderProvider trusts the wallet header set by the frontend after a
// wallet-connect handshake. The address is normalized to lowercase hex.
type HeaderProvider struct{}

func (HeaderProvider) Actor(r *http.Request) (string, error) {
	addr := strings.TrimSpace(r.Header.Get(WalletHeader))
	if addr == "" {
		return "", &core.NeedsActionError{
			Action: "connect_wallet",
			Reason: "no wallet address on request",
		}
	}
	if err := core.ValidateWallet(addr); err != nil {
		return "", err
	}
	return core.NormalizeWallet(addr), nil
}
