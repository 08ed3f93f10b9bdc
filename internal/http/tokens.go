package httpapi

import (
	"context"
	"net/http"

	"github.com/Kluncker/rockville-cg-app/internal/tokens"
)

type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type redeemFunc func(ctx context.Context, token string) (tokens.Outcome, error)

// confirmLink and declineLink serve the buttons in task emails.
func (a *App) confirmLink(w http.ResponseWriter, r *http.Request) {
	a.redeem(w, r, r.URL.Query().Get("token"), a.Tokens.ConfirmByToken)
}

func (a *App) declineLink(w http.ResponseWriter, r *http.Request) {
	a.redeem(w, r, r.URL.Query().Get("token"), a.Tokens.DeclineByToken)
}

func (a *App) confirmByToken(w http.ResponseWriter, r *http.Request) {
	a.redeemBody(w, r, a.Tokens.ConfirmByToken)
}

func (a *App) declineByToken(w http.ResponseWriter, r *http.Request) {
	a.redeemBody(w, r, a.Tokens.DeclineByToken)
}

func (a *App) redeemBody(w http.ResponseWriter, r *http.Request, fn redeemFunc) {
	var req TokenRequest
	if err := a.decode(r, &req); err != nil {
		a.writeTokenError(w, r, err)
		return
	}
	a.redeem(w, r, req.Token, fn)
}

func (a *App) redeem(w http.ResponseWriter, r *http.Request, token string, fn redeemFunc) {
	out, err := fn(r.Context(), token)
	if err != nil {
		a.writeTokenError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := a.publicMessage(r, err)
	writeJSON(w, status, tokens.Outcome{Success: false, Message: msg})
}
