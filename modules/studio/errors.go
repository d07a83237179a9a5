package studio

import (
	"errors"

	"skagen-studio-server/modules/common/gemini"
	"skagen-studio-server/modules/common/storage"
	"skagen-studio-server/modules/common/utils"
)

// Pipeline errors. Decode and validation errors abort before any remote call;
// exhausted retries and empty responses come from the model invoker; storage
// errors are surfaced without retry.
var (
	ErrDecode           = utils.ErrDecode
	ErrValidation       = errors.New("validation failed")
	ErrRetriesExhausted = gemini.ErrRetriesExhausted
	ErrNoImageData      = gemini.ErrNoImageData
	ErrStorage          = storage.ErrStorage
)
