package domain

import "time"

// PriceBreak es un escalón de cantidad (minQty, precio unitario) que ofrece
// un vendor. Las decisiones se calculan por escalón.
type PriceBreak struct {
	MinQty    int     `json:"minQty"`
	UnitPrice float64 `json:"unitPrice"`
}

// Listing es la oferta de un vendor para un producto en un instante.
type Listing struct {
	VendorID   int64  `json:"vendorId"`
	VendorName string `json:"vendorName"`
	InStock    bool   `json:"inStock"`
	// ShippingCost es el costo de envío estándar reportado. Se preserva tal
	// cual vino del marketplace — nunca se pisa desde thresholds.
	ShippingCost float64 `json:"shippingCost"`
	ShippingDays int     `json:"shippingDays"`
	Inventory    int     `json:"inventory"`
	BadgeID      int64   `json:"badgeId"`
	BadgeName    string  `json:"badgeName"`
	Breaks       []PriceBreak `json:"breaks"`
	// FreeShipGap / FreeShipThreshold: cuánto falta y desde qué monto el
	// envío es gratis. El threshold sí puede pisarse desde VendorThreshold.
	FreeShipGap       float64 `json:"freeShipGap"`
	FreeShipThreshold float64 `json:"freeShipThreshold"`
}

// UnitPrice devuelve el precio unitario base (primer price break).
func (l Listing) UnitPrice() (float64, bool) {
	if len(l.Breaks) == 0 {
		return 0, false
	}
	return l.Breaks[0].UnitPrice, true
}

// BreakFor devuelve el price break aplicable a la cantidad dada: el escalón
// con el MinQty más alto que no supera qty.
func (l Listing) BreakFor(qty int) (PriceBreak, bool) {
	var best PriceBreak
	found := false
	for _, b := range l.Breaks {
		if b.MinQty <= qty && (!found || b.MinQty > best.MinQty) {
			best = b
			found = true
		}
	}
	return best, found
}

// HasQtyOne devuelve true si el listing tiene un price break de cantidad 1.
// El algoritmo legacy no tolera su ausencia — ver replay.Engine.
func (l Listing) HasQtyOne() bool {
	for _, b := range l.Breaks {
		if b.MinQty == 1 {
			return true
		}
	}
	return false
}

// MarketSnapshot es el set completo de listings que compiten por un producto
// en un instante. Inmutable una vez reconstruido.
type MarketSnapshot struct {
	ProductID  int64     `json:"productId"`
	CapturedAt time.Time `json:"capturedAt"`
	Listings   []Listing `json:"listings"`
}

// Listing devuelve el listing del vendor dado, si está presente.
func (s MarketSnapshot) Listing(vendorID int64) (Listing, bool) {
	for _, l := range s.Listings {
		if l.VendorID == vendorID {
			return l, true
		}
	}
	return Listing{}, false
}

// VendorIDs devuelve los vendor ids presentes en el snapshot, en orden.
func (s MarketSnapshot) VendorIDs() []int64 {
	ids := make([]int64, 0, len(s.Listings))
	for _, l := range s.Listings {
		ids = append(ids, l.VendorID)
	}
	return ids
}

// Clone devuelve una copia profunda del snapshot (listings y breaks propios).
func (s MarketSnapshot) Clone() MarketSnapshot {
	out := s
	out.Listings = make([]Listing, len(s.Listings))
	for i, l := range s.Listings {
		l.Breaks = append([]PriceBreak(nil), l.Breaks...)
		out.Listings[i] = l
	}
	return out
}

// VendorThreshold es la fila de la threshold table de un vendor: shipping
// estándar y umbral de envío gratis. Solo el umbral de envío gratis se
// superpone sobre el snapshot; el shipping reportado nunca se pisa.
type VendorThreshold struct {
	VendorID          int64   `json:"vendorId" db:"vendor_id"`
	ShippingCost      float64 `json:"shippingCost" db:"shipping_cost"`
	FreeShipThreshold float64 `json:"freeShipThreshold" db:"free_ship_threshold"`
}

// OverlayThresholds devuelve una copia del snapshot con el umbral de envío
// gratis pisado por vendor donde haya threshold. El shipping estándar del
// listing se preserva verbatim.
func (s MarketSnapshot) OverlayThresholds(thresholds []VendorThreshold) MarketSnapshot {
	if len(thresholds) == 0 {
		return s.Clone()
	}
	byVendor := make(map[int64]VendorThreshold, len(thresholds))
	for _, t := range thresholds {
		byVendor[t.VendorID] = t
	}
	out := s.Clone()
	for i := range out.Listings {
		if t, ok := byVendor[out.Listings[i].VendorID]; ok {
			out.Listings[i].FreeShipThreshold = t.FreeShipThreshold
		}
	}
	return out
}
