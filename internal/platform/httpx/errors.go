// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	code := shared.CodeOf(err)
	switch code {
	case shared.CodeNotFound:
		ProblemCode(w, http.StatusNotFound, "Not Found", err.Error(), string(code))
	case shared.CodeValidation, shared.CodeBOMNotDefined, shared.CodeVendorNotMapped:
		ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), string(code))
	case shared.CodeDuplicatePO, shared.CodeDuplicateInvoice:
		ProblemCode(w, http.StatusConflict, "Duplicate", err.Error(), string(code))
	case shared.CodeOverShipped, shared.CodeMaterialNotInPO, shared.CodePOClosed, shared.CodePOCancelled:
		ProblemCode(w, http.StatusUnprocessableEntity, "Business Rule Violation", err.Error(), string(code))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
