package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/softmax/underwriting-gateway/internal/apierr"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Token implements POST /oauth/token (spec §6.2): the client_credentials
// grant only, unsupported grants fail with a validation error.
func (s *Server) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierr.Validation("request body is not valid JSON"))
		return
	}
	if req.GrantType != "client_credentials" {
		writeError(w, r, apierr.Validation("unsupported grant_type"))
		return
	}

	accessToken, expiresIn, scope, err := s.Resolver.IssueToken(r.Context(), req.ClientID, req.ClientSecret, req.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
		Scope:       scope,
	})
}
