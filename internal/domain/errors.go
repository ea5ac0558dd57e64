package domain

import "errors"

var (
	// ErrUnsupportedSource is returned when a URL does not belong to a
	// supported provider.
	ErrUnsupportedSource = errors.New("unsupported media source")

	// ErrMetadataFetch is returned when the remote metadata probe fails.
	ErrMetadataFetch = errors.New("fetching media metadata failed")

	// ErrUnsupportedDownload is returned when acquisition is attempted for
	// a media type other than the supported container.
	ErrUnsupportedDownload = errors.New("unsupported media download")

	// ErrUnsupportedConversion is returned for any conversion other than
	// container to audio.
	ErrUnsupportedConversion = errors.New("unsupported media conversion")

	// ErrInsufficientCredits is returned when the account balance cannot
	// cover the required credits.
	ErrInsufficientCredits = errors.New("not enough credits")

	// ErrDurationOverLimit is returned for media longer than the policy
	// ceiling.
	ErrDurationOverLimit = errors.New("media duration exceeds the allowed limit")

	// Credential verification failures.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("expired credential")
	ErrRevokedCredential = errors.New("revoked credential")
	ErrDisabledAccount   = errors.New("account disabled")

	// ErrNotFound is returned by the datastore for missing records.
	ErrNotFound = errors.New("record not found")
)
