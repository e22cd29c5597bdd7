package dsm

import (
	"encoding/json"
	"time"
)

// apiResponse is the envelope every DSM webapi endpoint returns.
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code int `json:"code"`
}

// loginData is the payload of a successful SYNO.API.Auth login.
type loginData struct {
	SID string `json:"sid"`
}

// Session is the authenticated credential for all appliance calls.
// Owned exclusively by the Client; callers receive copies.
type Session struct {
	ID        string
	CreatedAt time.Time
}
