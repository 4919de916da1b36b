package vendors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

type memoryVendors struct {
	byID map[int64]Vendor
}

func (m *memoryVendors) Get(_ context.Context, id int64) (Vendor, error) {
	v, ok := m.byID[id]
	if !ok {
		return Vendor{}, shared.NewDomainError(shared.CodeNotFound, "vendor %d not found", id)
	}
	return v, nil
}

func (m *memoryVendors) GetMany(_ context.Context, ids []int64) (map[int64]Vendor, error) {
	out := make(map[int64]Vendor)
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memoryVendors) ListByClass(_ context.Context, class Class) ([]Vendor, error) {
	var out []Vendor
	for _, v := range m.byID {
		if v.Class == class && v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func TestValidateClassAcceptsMatchingVendor(t *testing.T) {
	svc := NewService(&memoryVendors{byID: map[int64]Vendor{
		40: {ID: 40, Code: "V-040", Name: "Chemlink", Class: ClassRawMaterial, IsActive: true},
	}})

	v, err := svc.ValidateClass(context.Background(), 40, ClassRawMaterial)
	require.NoError(t, err)
	require.Equal(t, "Chemlink", v.Name)
}

func TestValidateClassRejectsWrongClass(t *testing.T) {
	svc := NewService(&memoryVendors{byID: map[int64]Vendor{
		50: {ID: 50, Code: "V-050", Name: "Boxworks", Class: ClassPackingMaterial, IsActive: true},
	}})

	_, err := svc.ValidateClass(context.Background(), 50, ClassFinishedGoods)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	require.Equal(t, shared.CodeValidation, domainErr.Code)
}

func TestValidateClassUnknownVendor(t *testing.T) {
	svc := NewService(&memoryVendors{byID: map[int64]Vendor{}})

	_, err := svc.ValidateClass(context.Background(), 99, ClassRawMaterial)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
