package rest

import "time"

type storeRequest struct {
	Salt          []byte `json:"salt"`
	Purpose       string `json:"purpose"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
}

type storeResponse struct {
	SaltID    string     `json:"saltId"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type fetchResponse struct {
	Salt        []byte    `json:"salt"`
	Purpose     string    `json:"purpose"`
	CreatedAt   time.Time `json:"createdAt"`
	AccessCount int64     `json:"accessCount"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

type cleanupResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

type statsResponse struct {
	Purposes map[string]int64 `json:"purposes"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
