package models

import "errors"

var (
	// ErrInvalidWeight marks a measurement rejected before reaching any store.
	ErrInvalidWeight = errors.New("invalid weight measurement")
	// ErrInvalidMovement marks an inventory movement rejected by validation.
	ErrInvalidMovement = errors.New("invalid inventory movement")
	// ErrDuplicateWeight is returned by stores when (farm, idempotency key) already exists.
	ErrDuplicateWeight = errors.New("weight already recorded for idempotency key")
	// ErrAnimalNotFound indicates no animal matched the lookup.
	ErrAnimalNotFound = errors.New("animal not found")
	// ErrNotCached indicates an offline lookup missed the local animal cache.
	ErrNotCached = errors.New("animal not present in local cache")
	// ErrFarmNotFound indicates the farm has no stored configuration.
	ErrFarmNotFound = errors.New("farm not found")
	// ErrInvalidFarm marks farm settings rejected by validation.
	ErrInvalidFarm = errors.New("invalid farm settings")
	// ErrInvalidAnimal marks a roster entry rejected by validation.
	ErrInvalidAnimal = errors.New("invalid animal")
)
