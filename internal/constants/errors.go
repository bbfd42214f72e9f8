package constants

import "errors"

// CLI configuration errors.
var (
	ErrServerRequired = errors.New("no API server configured, use --server or 'okapi login'")
	ErrNotLoggedIn    = errors.New("not logged in, use 'okapi login' to authenticate")
	ErrNoTokenIssued  = errors.New("authentication succeeded but no token was issued")
)

// CLI argument errors.
var (
	ErrResourceRequired   = errors.New("resource name is required")
	ErrObjectNameRequired = errors.New("object name is required")
	ErrManifestRequired   = errors.New("a manifest file is required, use --filename")
	ErrReplicasRequired   = errors.New("--replicas is required")
	ErrUnknownConfigKey   = errors.New("unknown configuration key")
	ErrUnknownOutput      = errors.New("unknown output format")
	ErrBatchFailed        = errors.New("batch operations failed")
)
