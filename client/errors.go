package client

import "errors"

var errEmptyURL = errors.New("client: empty URL")
