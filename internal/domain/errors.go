package domain

import "errors"

var (
	ErrNotFound              = errors.New("resource not found")
	ErrBattleNotFound        = errors.New("battle not found")
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrInvalidProviderConfig = errors.New("invalid provider configuration")
	ErrInvalidLabel          = errors.New("label is not part of this battle")
	ErrMissingPreference     = errors.New("either preferred_labels or preference is required")
	ErrInvalidPreference     = errors.New("invalid preference")
	ErrMissingSecondSide     = errors.New("battle has no second side")
	ErrPageOutOfRange        = errors.New("page number out of range")
	ErrBattleRequiresPage    = errors.New("battle mode requires a page number")
	ErrNoProviders           = errors.New("no providers selected")
	ErrArtifactNotFound      = errors.New("artifact not found")
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrFileTooLarge          = errors.New("file exceeds maximum allowed size")
	ErrPricingUnavailable    = errors.New("pricing table is not loaded")
	ErrAllProvidersFailed    = errors.New("every provider failed")
)
