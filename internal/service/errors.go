package service

import "errors"

var (
	errEmptyToken           = errors.New("backend returned an empty access token")
	errUnsupportedTokenType = errors.New("backend returned a non-bearer token")
)
