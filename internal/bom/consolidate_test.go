package bom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/vendors"
)

func vendorDirectory() map[int64]vendors.Vendor {
	return map[int64]vendors.Vendor{
		40: {ID: 40, Code: "V-ACME", Name: "Acme Chemicals", Class: vendors.ClassRawMaterial},
		50: {ID: 50, Code: "V-PAK", Name: "Pakwell Industries", Class: vendors.ClassPackingMaterial},
	}
}

func TestConsolidateMergesSameMaterialSameVendor(t *testing.T) {
	reqs := []Requirement{
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("2.0"), UOM: "kg", MedicineID: 7},
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("3.0"), UOM: "kg", MedicineID: 8},
	}

	groups := Consolidate(reqs, vendorDirectory())
	require.Len(t, groups, 1)
	require.Equal(t, "Acme Chemicals", groups[0].VendorName)
	require.Len(t, groups[0].Materials, 1)
	require.True(t, dec("5").Equal(groups[0].Materials[0].Qty), "got %s", groups[0].Materials[0].Qty)
}

func TestConsolidateKeepsPackingVariantsApart(t *testing.T) {
	reqs := []Requirement{
		{MaterialID: 200, Kind: materials.KindPacking, VendorID: 50, Qty: dec("100"), Language: "EN", ArtworkVersion: "v2"},
		{MaterialID: 200, Kind: materials.KindPacking, VendorID: 50, Qty: dec("60"), Language: "FR", ArtworkVersion: "v2"},
		{MaterialID: 200, Kind: materials.KindPacking, VendorID: 50, Qty: dec("40"), Language: "EN", ArtworkVersion: "v2"},
	}

	groups := Consolidate(reqs, vendorDirectory())
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Materials, 2, "same material with different language stays separate")
	require.True(t, dec("140").Equal(groups[0].Materials[0].Qty))
	require.Equal(t, "EN", groups[0].Materials[0].Language)
	require.True(t, dec("60").Equal(groups[0].Materials[1].Qty))
	require.Equal(t, "FR", groups[0].Materials[1].Language)
}

func TestConsolidateIsOrderIndependent(t *testing.T) {
	reqs := []Requirement{
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("1.5"), Notes: "food grade"},
		{MaterialID: 101, Kind: materials.KindRaw, VendorID: 40, Qty: dec("7")},
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("0.5"), Notes: "double bagged"},
		{MaterialID: 200, Kind: materials.KindPacking, VendorID: 50, Qty: dec("10")},
	}
	reversed := make([]Requirement, len(reqs))
	for i, r := range reqs {
		reversed[len(reqs)-1-i] = r
	}

	a := Consolidate(reqs, vendorDirectory())
	b := Consolidate(reversed, vendorDirectory())
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].VendorID, b[i].VendorID)
		require.Equal(t, len(a[i].Materials), len(b[i].Materials))
		for j := range a[i].Materials {
			require.Equal(t, a[i].Materials[j].MaterialID, b[i].Materials[j].MaterialID)
			require.True(t, a[i].Materials[j].Qty.Equal(b[i].Materials[j].Qty))
		}
	}
}

func TestConsolidateIsPure(t *testing.T) {
	reqs := []Requirement{
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("2")},
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("3")},
	}
	first := Consolidate(reqs, vendorDirectory())
	second := Consolidate(reqs, vendorDirectory())
	require.Equal(t, first, second)
	require.True(t, dec("2").Equal(reqs[0].Qty), "inputs must not be mutated")
}

func TestConsolidateMergesNotesAndCriticalFlag(t *testing.T) {
	reqs := []Requirement{
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("1"), Notes: "food grade", IsCritical: false},
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("1"), Notes: "double bagged", IsCritical: true},
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("1"), Notes: "food grade"},
	}

	groups := Consolidate(reqs, vendorDirectory())
	require.Len(t, groups, 1)
	line := groups[0].Materials[0]
	require.Equal(t, "food grade; double bagged", line.Notes)
	require.True(t, line.IsCritical, "critical flag survives any merge")
}

func TestConsolidateGroupsSortedByVendorName(t *testing.T) {
	reqs := []Requirement{
		{MaterialID: 200, Kind: materials.KindPacking, VendorID: 50, Qty: dec("1")},
		{MaterialID: 100, Kind: materials.KindRaw, VendorID: 40, Qty: dec("1")},
	}

	groups := Consolidate(reqs, vendorDirectory())
	require.Len(t, groups, 2)
	require.Equal(t, "Acme Chemicals", groups[0].VendorName)
	require.Equal(t, "Pakwell Industries", groups[1].VendorName)
}

func TestConsolidateUnknownVendorKeepsID(t *testing.T) {
	reqs := []Requirement{{MaterialID: 100, Kind: materials.KindRaw, VendorID: 999, Qty: dec("1")}}
	groups := Consolidate(reqs, map[int64]vendors.Vendor{})
	require.Len(t, groups, 1)
	require.Equal(t, int64(999), groups[0].VendorID)
	require.Empty(t, groups[0].VendorName)
}
