package authapi

import (
	"time"

	"parley/cmd/identity"
	"parley/cmd/internal/auth/session"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type credentialResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	ExpiryEpoch      int64  `json:"expiryEpoch"`
	ExpiryDate       string `json:"expiryDate"`
}

type sessionResponse struct {
	User           *userResponse      `json:"user,omitempty"`
	TokenType      string             `json:"tokenType"`
	AccessToken    credentialResponse `json:"accessToken"`
	RefreshToken   credentialResponse `json:"refreshToken"`
	WebsocketToken credentialResponse `json:"websocketToken"`
}

type websocketTokenResponse struct {
	PrincipalID    int64              `json:"principalId"`
	WebsocketToken credentialResponse `json:"websocketToken"`
}

// accessInfo describes the access credential that authorized the request.
type accessInfo struct {
	IssuedAt    int64  `json:"issuedAtEpoch"`
	ExpiryEpoch int64  `json:"expiryEpoch"`
	ExpiryDate  string `json:"expiryDate"`
}

type meResponse struct {
	User   userResponse `json:"user"`
	Access accessInfo   `json:"access"`
}

func toAccessInfo(c session.AccessClaims) accessInfo {
	return accessInfo{
		IssuedAt:    c.IssuedAt.Unix(),
		ExpiryEpoch: c.ExpiresAt.Unix(),
		ExpiryDate:  session.Credential{ExpiresAt: c.ExpiresAt}.ExpiryDate(),
	}
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func toCredentialResponse(c session.Credential) credentialResponse {
	return credentialResponse{
		Token:            c.Token,
		ExpiresInSeconds: c.ExpiresInSeconds(),
		ExpiryEpoch:      c.ExpiryEpoch(),
		ExpiryDate:       c.ExpiryDate(),
	}
}

func toSessionResponse(issued session.Issued, u *identity.User) sessionResponse {
	out := sessionResponse{
		TokenType:      "Bearer",
		AccessToken:    toCredentialResponse(issued.Access),
		RefreshToken:   toCredentialResponse(issued.Refresh),
		WebsocketToken: toCredentialResponse(issued.Realtime),
	}
	if u != nil {
		ur := toUserResponse(*u)
		out.User = &ur
	}
	return out
}
