package workspace

import (
	"errors"

	"citeme/api/internal/citation"
)

var (
	ErrTitleRequired        = errors.New("document title is required")
	ErrContentRequired      = errors.New("document content is required")
	ErrFormNotSaved         = citation.ErrFormNotSaved
	ErrFormTypeRequired     = errors.New("form type is required")
	ErrGenerationInProgress = errors.New("citation generation already in progress")
	ErrUnknownCommand       = errors.New("unknown editor command")
	ErrScorerUnavailable    = errors.New("credibility service not configured")
	ErrHistoryUnavailable   = errors.New("document history not configured")
	ErrProfileRequired      = errors.New("profile id is required")
)
