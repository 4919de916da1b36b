package bom

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/vendors"
)

// ConsolidatedLine is one merged material requirement within a vendor group.
type ConsolidatedLine struct {
	MaterialID     int64           `json:"material_id"`
	Kind           materials.Kind  `json:"kind"`
	Language       string          `json:"language"`
	ArtworkVersion string          `json:"artwork_version"`
	Qty            decimal.Decimal `json:"qty"`
	UOM            string          `json:"uom"`
	HSNCode        string          `json:"hsn_code"`
	GSTRate        decimal.Decimal `json:"gst_rate"`
	Notes          string          `json:"notes"`
	IsCritical     bool            `json:"is_critical"`
}

// VendorGroup holds all consolidated lines destined for one vendor.
type VendorGroup struct {
	VendorID    int64              `json:"vendor_id"`
	VendorName  string             `json:"vendor_name"`
	VendorCode  string             `json:"vendor_code"`
	VendorClass vendors.Class      `json:"vendor_class"`
	Materials   []ConsolidatedLine `json:"materials"`
}

type consolidationKey struct {
	materialID     int64
	language       string
	artworkVersion string
}

// keyFor builds the merge key: raw materials merge on material alone, packing
// materials keep language and artwork variants apart.
func keyFor(req Requirement) consolidationKey {
	if req.Kind == materials.KindPacking {
		return consolidationKey{materialID: req.MaterialID, language: req.Language, artworkVersion: req.ArtworkVersion}
	}
	return consolidationKey{materialID: req.MaterialID}
}

// Consolidate groups flat requirements by vendor and merges duplicate material
// lines. Pure function: no side effects, deterministic output for identical
// input regardless of input order.
func Consolidate(reqs []Requirement, directory map[int64]vendors.Vendor) []VendorGroup {
	byVendor := make(map[int64]map[consolidationKey]*ConsolidatedLine)
	for _, req := range reqs {
		lines, ok := byVendor[req.VendorID]
		if !ok {
			lines = make(map[consolidationKey]*ConsolidatedLine)
			byVendor[req.VendorID] = lines
		}
		key := keyFor(req)
		line, ok := lines[key]
		if !ok {
			lines[key] = &ConsolidatedLine{
				MaterialID:     req.MaterialID,
				Kind:           req.Kind,
				Language:       req.Language,
				ArtworkVersion: req.ArtworkVersion,
				Qty:            req.Qty,
				UOM:            req.UOM,
				HSNCode:        req.HSNCode,
				GSTRate:        req.GSTRate,
				Notes:          req.Notes,
				IsCritical:     req.IsCritical,
			}
			continue
		}
		line.Qty = line.Qty.Add(req.Qty)
		line.Notes = mergeNotes(line.Notes, req.Notes)
		line.IsCritical = line.IsCritical || req.IsCritical
	}

	groups := make([]VendorGroup, 0, len(byVendor))
	for vendorID, lines := range byVendor {
		group := VendorGroup{VendorID: vendorID}
		if v, ok := directory[vendorID]; ok {
			group.VendorName = v.Name
			group.VendorCode = v.Code
			group.VendorClass = v.Class
		}
		keys := make([]consolidationKey, 0, len(lines))
		for key := range lines {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].materialID != keys[j].materialID {
				return keys[i].materialID < keys[j].materialID
			}
			if keys[i].language != keys[j].language {
				return keys[i].language < keys[j].language
			}
			return keys[i].artworkVersion < keys[j].artworkVersion
		})
		for _, key := range keys {
			group.Materials = append(group.Materials, *lines[key])
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].VendorName != groups[j].VendorName {
			return groups[i].VendorName < groups[j].VendorName
		}
		return groups[i].VendorID < groups[j].VendorID
	})
	return groups
}

// mergeNotes joins distinct notes with "; ", skipping blanks and repeats.
func mergeNotes(existing, next string) string {
	if next == "" || next == existing {
		return existing
	}
	if existing == "" {
		return next
	}
	for _, part := range strings.Split(existing, "; ") {
		if part == next {
			return existing
		}
	}
	return existing + "; " + next
}
