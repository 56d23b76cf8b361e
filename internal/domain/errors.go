package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMemberNameEmpty   = errors.New("member name empty")
	ErrMemberNameTooLong = errors.New("member name too long")

	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrDuplicateName  = errors.New("member already registered")
	ErrIdentityBound  = errors.New("identity already bound to a member")
	ErrUnknownMember  = errors.New("unknown member")
	ErrEmptyRoomArg   = errors.New("no room provided")

	// ErrRoomState is the parent of every membership conflict.
	ErrRoomState     = errors.New("room state")
	ErrAlreadyMember = fmt.Errorf("%w: already a member", ErrRoomState)
	ErrNotMember     = fmt.Errorf("%w: not a member", ErrRoomState)
	ErrUnknownRoom   = fmt.Errorf("%w: unknown room", ErrRoomState)
)
