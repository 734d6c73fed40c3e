package service

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes; everything else surfaces as an internal error. Rule
// evaluation outcomes are deliberately not errors: a failed checklist rule
// or a blocked conflict check is returned as data.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidOverride     = errors.New("invalid override")
	ErrChecklistIncomplete = errors.New("checklist incomplete")
)
