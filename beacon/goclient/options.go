package goclient

import (
	"time"
)

// Options for consensus client creation
type Options struct {
	BeaconNodeAddr string        `yaml:"BeaconNodeAddr" env:"BEACON_NODE_ADDR" env-required:"true" env-description:"Beacon node URL"`
	CommonTimeout  time.Duration `yaml:"CommonTimeout" env:"BEACON_COMMON_TIMEOUT" env-default:"5s" env-description:"Timeout for dialing and most requests"`
	LongTimeout    time.Duration `yaml:"LongTimeout" env:"BEACON_LONG_TIMEOUT" env-default:"60s" env-description:"Timeout for duties and block production requests"`
	// SyncDistanceTolerance is how many slots behind the head the beacon node may be while still healthy.
	SyncDistanceTolerance uint64 `yaml:"SyncDistanceTolerance" env:"BEACON_SYNC_DISTANCE_TOLERANCE" env-default:"4" env-description:"Slots the beacon node may lag behind while still considered healthy"`
	Graffiti              string `yaml:"Graffiti" env:"GRAFFITI" env-default:"dvnode" env-description:"Graffiti of proposed blocks"`
}
