package shared

import (
	"errors"
	"fmt"
)

// Code identifies a business-rule violation with a stable machine-readable value.
type Code string

const (
	CodeValidation       Code = "VALIDATION"
	CodeNotFound         Code = "NOT_FOUND"
	CodeBOMNotDefined    Code = "BOM_NOT_DEFINED"
	CodeVendorNotMapped  Code = "VENDOR_NOT_MAPPED"
	CodeDuplicatePO      Code = "DUPLICATE_PO"
	CodeDuplicateInvoice Code = "DUPLICATE_INVOICE"
	CodeOverShipped      Code = "OVER_SHIPPED"
	CodeMaterialNotInPO  Code = "MATERIAL_NOT_IN_PO"
	CodePOClosed         Code = "PO_CLOSED"
	CodePOCancelled      Code = "PO_CANCELLED"
)

// DomainError carries a stable error code alongside a human readable message.
// Business-rule violations are raised at the point of occurrence and abort the
// whole batch operation; they are never downgraded to partial success.
type DomainError struct {
	Code    Code
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches DomainErrors by code so errors.Is works against sentinels.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code
}

// NewDomainError builds a DomainError with a formatted message.
func NewDomainError(code Code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = &DomainError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound         = &DomainError{Code: CodeNotFound, Message: "not found"}
	ErrBOMNotDefined    = &DomainError{Code: CodeBOMNotDefined, Message: "bom not defined"}
	ErrVendorNotMapped  = &DomainError{Code: CodeVendorNotMapped, Message: "vendor not mapped"}
	ErrDuplicatePO      = &DomainError{Code: CodeDuplicatePO, Message: "purchase orders already generated"}
	ErrDuplicateInvoice = &DomainError{Code: CodeDuplicateInvoice, Message: "invoice number already exists"}
	ErrOverShipped      = &DomainError{Code: CodeOverShipped, Message: "shipment exceeds ordered quantity"}
	ErrMaterialNotInPO  = &DomainError{Code: CodeMaterialNotInPO, Message: "material not present on purchase order"}
	ErrPOClosed         = &DomainError{Code: CodePOClosed, Message: "purchase order is closed"}
	ErrPOCancelled      = &DomainError{Code: CodePOCancelled, Message: "purchase order is cancelled"}
)

// CodeOf extracts the domain code from an error chain, empty when none.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
