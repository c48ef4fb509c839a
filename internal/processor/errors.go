package processor

import (
	"errors"

	"Pedigree/internal/currency"
)

var (
	// ErrUnknownAsset is returned when a referenced asset has no record.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrNotOwner is returned when the caller does not own the asset.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrIdenticalParents is returned when an asset is bred with itself.
	ErrIdenticalParents = errors.New("identical parents")

	// ErrAlreadyListed is returned when listing an asset that is already for sale.
	ErrAlreadyListed = errors.New("asset already listed")

	// ErrNotListed is returned when buying an asset that is not for sale.
	ErrNotListed = errors.New("asset not listed")

	// ErrOwnerCannotBuyOwn is returned when the owner tries to buy their own asset.
	ErrOwnerCannotBuyOwn = errors.New("owner cannot buy own asset")

	// ErrIdentityExhausted is returned when the id counter cannot advance.
	ErrIdentityExhausted = errors.New("asset ids exhausted")

	// ErrBadSignature is returned when an oracle payload signature does not verify.
	ErrBadSignature = errors.New("bad signature")

	// ErrUnauthorizedCall is returned for calls not admitted on the unsigned path.
	ErrUnauthorizedCall = errors.New("unauthorized call")

	// ErrBadOrigin is returned when a call arrives with the wrong origin kind.
	ErrBadOrigin = errors.New("bad origin")

	// ErrInsufficientFunds is returned when a fee or price cannot be paid.
	ErrInsufficientFunds = currency.ErrInsufficientFunds
)
