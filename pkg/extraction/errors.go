package extraction

import "errors"

var (
	// ErrUnsupportedMediaType indicates an upload outside AllowedMediaTypes.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrFileTooLarge indicates an upload larger than MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile indicates an upload without content.
	ErrEmptyFile = errors.New("file is empty")

	// ErrInvalidExtraction indicates a model reply that is not a usable contact object.
	ErrInvalidExtraction = errors.New("invalid extraction result")
)

// IsInputError reports whether err was caused by the upload rather than the model.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedMediaType) || errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrEmptyFile)
}
