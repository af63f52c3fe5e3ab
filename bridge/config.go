package bridge

import (
	"fmt"

	"github.com/wippyai/clr-bridge/errors"
)

// CacheScope selects how type identity is partitioned.
type CacheScope uint8

const (
	// CacheScopeHost shares one type cache across every load context of a
	// host. Types stay cached until the host is closed.
	CacheScopeHost CacheScope = iota

	// CacheScopeContext gives each load context its own type cache, dropped
	// when the context is unloaded.
	CacheScopeContext
)

func (s CacheScope) String() string {
	switch s {
	case CacheScopeHost:
		return "host"
	case CacheScopeContext:
		return "context"
	default:
		return fmt.Sprintf("CacheScope(%d)", uint8(s))
	}
}

// Config holds configuration for host creation
type Config struct {
	// CacheScope defaults to CacheScopeHost.
	CacheScope CacheScope
}

// DefaultConfig returns the configuration used when New is given nil.
func DefaultConfig() *Config {
	return &Config{CacheScope: CacheScopeHost}
}

func (c *Config) validate() error {
	switch c.CacheScope {
	case CacheScopeHost, CacheScopeContext:
		return nil
	}
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Path("CacheScope").
		Value(c.CacheScope).
		Detail("unknown cache scope").
		Build()
}
