package api

import (
	"log"
	"net/http"

	"coinhype/crypto"
)

// ChallengeRequest is the body of POST /api/auth/challenge
type ChallengeRequest struct {
	Address string `json:"address"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

/* =========================
   WALLET LOGIN
========================= */

// handleChallenge handles POST /api/auth/challenge. The returned message is
// what the wallet must personal_sign.
func (h *handlers) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	address, err := crypto.NormalizeAddress(req.Address)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	challenge, err := crypto.RandomToken(16)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if err := h.Store.StoreChallenge(r.Context(), address, challenge); err != nil {
		sendServiceError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"address":   address,
		"challenge": challenge,
		"message":   crypto.LoginMessage(address, challenge),
	})
}

// handleLogin handles POST /api/auth/login. The challenge is consumed
// whether or not the signature checks out.
func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	address, err := crypto.NormalizeAddress(req.Address)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	ctx := r.Context()
	challenge, err := h.Store.ConsumeChallenge(ctx, address)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if challenge == "" {
		sendError(w, http.StatusUnauthorized, "No pending challenge for address")
		return
	}

	if err := crypto.VerifyWalletSignature(address, crypto.LoginMessage(address, challenge), req.Signature); err != nil {
		log.Printf("⚠️  Login rejected for %s: %v", address, err)
		sendServiceError(w, err)
		return
	}

	if err := h.Store.EnsureUser(ctx, address); err != nil {
		sendServiceError(w, err)
		return
	}
	token, expires, err := h.Tokens.Issue(address)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	log.Printf("🔑 %s logged in", address)
	sendJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expires,
		"address":   address,
		"admin":     h.Config.IsAdmin(address),
	})
}
