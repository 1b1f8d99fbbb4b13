package goclient

import (
	"errors"
	"fmt"
)

var (
	errNilResponse = errors.New("response data is nil")
	errSyncing     = errors.New("syncing")
	errOptimistic  = errors.New("optimistic")
)

// errClient tags err with the beacon node address and the API it called.
func errClient(err error, clientAddr string, api string) error {
	return fmt.Errorf("consensus client %s, %s: %w", clientAddr, api, err)
}
