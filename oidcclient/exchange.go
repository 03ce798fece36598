package oidcclient

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

// Exchange trades an authorization code for an ID token. It returns the
// raw, still-unverified JWS compact-serialized ID token.
func (c *Client) Exchange(ctx context.Context, disc *Discovery, clientID, clientSecret, brokerBaseURL, code string) (string, error) {
	cfg := oauthConfig(disc, clientID, clientSecret, brokerBaseURL+"/callback")

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", brokererrors.Wrapf(err, "%w: token exchange", brokererrors.ErrUpstreamFailure)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", fmt.Errorf("%w: token response did not include an id_token", brokererrors.ErrUpstreamFailure)
	}
	return rawIDToken, nil
}
