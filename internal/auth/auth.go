// Package auth provides Trading 212 API authentication using HTTP Basic credentials.
package auth

import (
	"encoding/base64"
	"fmt"
)

// Credentials holds the API key and secret used to authorize requests.
type Credentials struct {
	Key    string // API key from the Trading 212 dashboard
	Secret string // API secret paired with the key
}

// NewCredentials validates and returns a credential pair.
func NewCredentials(key, secret string) (*Credentials, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("API secret is required")
	}
	return &Credentials{Key: key, Secret: secret}, nil
}

// AuthorizationHeader returns the value for the Authorization request header.
func (c *Credentials) AuthorizationHeader() string {
	raw := c.Key + ":" + c.Secret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Headers returns the full set of headers every API request carries.
func (c *Credentials) Headers() map[string]string {
	return map[string]string{
		"Authorization": c.AuthorizationHeader(),
		"Accept":        "application/json",
	}
}
