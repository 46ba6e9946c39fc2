package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrSnapshotSettled indicates the asset's snapshot already reached a terminal status.
	ErrSnapshotSettled = errors.New("snapshot already settled")
	// ErrSnapshotExhausted indicates a pending snapshot has no attempts left.
	ErrSnapshotExhausted = errors.New("snapshot attempts exhausted")
	// ErrInvalidAsset indicates an asset that breaks the record invariants.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrStoreClosed is returned once the repository has been swapped out or closed.
	ErrStoreClosed = errors.New("record store closed")
)
