package vendors

import (
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

func errClassMismatch(v Vendor, want Class) error {
	return shared.NewDomainError(shared.CodeValidation, "vendor %s is class %s, expected %s", v.Code, v.Class, want)
}
