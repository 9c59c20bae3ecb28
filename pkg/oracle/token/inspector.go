//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package token provides non-verifying bearer token inspection and the
// claim audit suite.
//
// Inspection is strictly for test assertions about what a token contains:
// absence of forbidden fields, presence of required claims, expiry sanity.
// It never validates the signature and must never be used for trust
// decisions.
package token

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hxci-campus/authprobe/pkg/common"
)

// Claims holds the decoded header and payload of a bearer token.
type Claims struct {
	Header  map[string]any
	Payload map[string]any
}

// Inspect decodes a token without verifying its signature. The token must
// be three dot-separated base64url segments; any structural deviation
// (wrong segment count, invalid base64, invalid encoded JSON) yields a
// DecodeError, never a panic.
func Inspect(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, common.NewDecodeError("malformed token structure", err)
	}

	mapClaims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, common.NewDecodeError("payload is not a JSON object", nil)
	}

	payload := make(map[string]any, len(mapClaims))
	for k, v := range mapClaims {
		payload[k] = v
	}

	return &Claims{Header: tok.Header, Payload: payload}, nil
}

// Algorithm returns the signing algorithm declared in the token header.
func (c *Claims) Algorithm() string {
	alg, _ := c.Header["alg"].(string)
	return alg
}

// Has reports whether the payload contains the named claim.
func (c *Claims) Has(name string) bool {
	_, ok := c.Payload[name]
	return ok
}

// StringClaim returns the named payload claim as a string.
func (c *Claims) StringClaim(name string) (string, bool) {
	s, ok := c.Payload[name].(string)
	return s, ok
}

// TimeClaim returns the named payload claim as a unix timestamp. JSON numbers
// decode as float64; numeric strings are not accepted.
func (c *Claims) TimeClaim(name string) (time.Time, bool) {
	switch v := c.Payload[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0), true
		}
	}
	return time.Time{}, false
}

// PayloadSize returns the serialized byte size of the payload, used by
// the size audit.
func (c *Claims) PayloadSize() int {
	raw, err := json.Marshal(c.Payload)
	if err != nil {
		return 0
	}
	return len(raw)
}
