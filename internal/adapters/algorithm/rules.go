package algorithm

// rules.go — implementación de referencia del algoritmo de decisión, para
// correr el motor end-to-end sin el engine de producción. El replay lo
// consume por el port ports.Algorithm; cualquier otra implementación (el
// engine real, stubs de test) encaja igual.
//
// Reglas: competidor elegible más barato por escalón de cantidad, undercut
// de un centavo, clamp a floor/ceiling, política de dirección y topes
// porcentuales. Los comments salen en el mismo dialecto de texto libre que
// el clasificador canónico consume ("CHANGE $DOWN ...", "IGNORE: ...").

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

const undercut = 0.01

// Engine es el algoritmo de referencia.
type Engine struct{}

// New crea el algoritmo de referencia.
func New() *Engine {
	return &Engine{}
}

// Decide ejecuta la versión actual: una decisión por (vendor propio, escalón
// de cantidad) presente en el snapshot.
func (a *Engine) Decide(_ context.Context, in ports.DecisionInput) ([]ports.Decision, error) {
	byVendor := make(map[int64]domain.VendorSettings, len(in.Settings))
	for _, s := range in.Settings {
		byVendor[s.VendorID] = s
	}

	var decisions []ports.Decision
	for _, vendorID := range in.OwnVendors {
		settings, ok := byVendor[vendorID]
		if !ok || !settings.Enabled {
			continue
		}
		own, ok := in.Snapshot.Listing(vendorID)
		if !ok {
			continue
		}
		for _, b := range own.Breaks {
			if settings.SuppressBreaks && b.MinQty != 1 {
				continue
			}
			decisions = append(decisions, decideTier(in.Snapshot, settings, own, b, "$"))
		}
	}
	return decisions, nil
}

// DecideLegacy ejecuta la versión legacy: solo el escalón de cantidad 1, y
// asume que el listing propio lo tiene — con el dato ausente falla, por eso
// el replay guarda la precondición antes de llegar acá.
func (a *Engine) DecideLegacy(_ context.Context, in ports.DecisionInput) ([]ports.Decision, error) {
	byVendor := make(map[int64]domain.VendorSettings, len(in.Settings))
	for _, s := range in.Settings {
		byVendor[s.VendorID] = s
	}

	var decisions []ports.Decision
	for _, vendorID := range in.OwnVendors {
		settings, ok := byVendor[vendorID]
		if !ok || !settings.Enabled {
			continue
		}
		own, ok := in.Snapshot.Listing(vendorID)
		if !ok {
			continue
		}
		qtyOne, found := qtyOneBreak(own)
		if !found {
			return nil, fmt.Errorf("algorithm.DecideLegacy: vendor %d has no quantity-1 price break", vendorID)
		}
		decisions = append(decisions, decideTier(in.Snapshot, settings, own, qtyOne, "#"))
	}
	return decisions, nil
}

// decideTier decide un escalón: busca el competidor elegible más barato y
// propone el undercut respetando floor/ceiling, dirección y topes. El sigil
// ("$" actual, "#" legacy) marca el dialecto del comment.
func decideTier(snap domain.MarketSnapshot, settings domain.VendorSettings, own domain.Listing, tier domain.PriceBreak, sigil string) ports.Decision {
	d := ports.Decision{
		VendorID:    settings.VendorID,
		Quantity:    tier.MinQty,
		BreaksValid: true,
	}

	lowest, trigger, found := lowestCompetitor(snap, settings, tier.MinQty)
	if !found {
		d.Comment = "N/A"
		return d
	}
	d.TriggerVendor = trigger

	old := tier.UnitPrice
	if settings.Basis != domain.BasisUnit {
		old += own.ShippingCost
	}

	if old <= lowest {
		if settings.KeepPosition {
			d.Comment = "IGNORE: ALREADY LOWEST"
			return d
		}
		// Subir hacia el competidor si la dirección lo permite.
		target := lowest - undercut
		if target <= old || settings.Direction == domain.DirectionDown {
			d.Comment = "IGNORE: ALREADY LOWEST"
			return d
		}
		target = capPct(target, old, settings.MaxUpPct)
		if target > settings.CeilingPrice {
			target = settings.CeilingPrice
		}
		price := domain.Round4(target)
		d.Price = &price
		d.Comment = fmt.Sprintf("CHANGE %sUP to %.2f under vendor %d", sigil, price, trigger)
		return d
	}

	// Competidor por debajo: bajar si la dirección lo permite.
	if settings.Direction == domain.DirectionUp {
		d.Comment = "IGNORE: DIRECTION"
		return d
	}
	target := lowest - undercut
	if target < settings.FloorPrice {
		if !settings.FloorCompeteNext {
			d.Comment = "IGNORE: HITFLOOR"
			return d
		}
		// Competir contra el siguiente precio por encima del floor.
		next, nextTrigger, ok := nextAboveFloor(snap, settings, tier.MinQty)
		if !ok {
			d.Comment = "IGNORE: HITFLOOR"
			return d
		}
		target = next - undercut
		if target < settings.FloorPrice {
			target = settings.FloorPrice
		}
		d.TriggerVendor = nextTrigger
	}
	target = capPct(target, old, settings.MaxDownPct)
	price := domain.Round4(target)
	d.Price = &price
	d.Comment = fmt.Sprintf("CHANGE %sDOWN to %.2f under vendor %d", sigil, price, d.TriggerVendor)
	return d
}

// lowestCompetitor devuelve el precio elegible más bajo del mercado para la
// cantidad dada y el vendor que lo ofrece.
func lowestCompetitor(snap domain.MarketSnapshot, settings domain.VendorSettings, qty int) (float64, int64, bool) {
	best, trigger, found := 0.0, int64(0), false
	for _, l := range snap.Listings {
		price, ok := candidatePrice(l, settings, qty)
		if !ok {
			continue
		}
		if !found || price < best {
			best, trigger, found = price, l.VendorID, true
		}
	}
	return best, trigger, found
}

// nextAboveFloor devuelve el precio elegible más bajo que sigue dejando
// margen sobre el floor tras el undercut.
func nextAboveFloor(snap domain.MarketSnapshot, settings domain.VendorSettings, qty int) (float64, int64, bool) {
	best, trigger, found := 0.0, int64(0), false
	for _, l := range snap.Listings {
		price, ok := candidatePrice(l, settings, qty)
		if !ok || price-undercut < settings.FloorPrice {
			continue
		}
		if !found || price < best {
			best, trigger, found = price, l.VendorID, true
		}
	}
	return best, trigger, found
}

// candidatePrice aplica los filtros de elegibilidad y devuelve el precio
// comparable del listing según el basis configurado.
func candidatePrice(l domain.Listing, settings domain.VendorSettings, qty int) (float64, bool) {
	if l.VendorID == settings.VendorID || settings.IsExcluded(l.VendorID) {
		return 0, false
	}
	if !settings.CompeteWithAll {
		if !l.InStock || l.Inventory < settings.InventoryThreshold {
			return 0, false
		}
	}
	if settings.BadgeMode == domain.BadgeOnly && l.BadgeID == 0 {
		return 0, false
	}
	b, ok := l.BreakFor(qty)
	if !ok {
		return 0, false
	}
	price := b.UnitPrice
	if settings.Basis != domain.BasisUnit {
		price += l.ShippingCost
	}
	return price, true
}

// capPct acota el movimiento al tope porcentual configurado. cap < 0 =
// deshabilitado.
func capPct(target, old, cap float64) float64 {
	if cap < 0 || old <= 0 {
		return target
	}
	maxMove := old * cap / 100
	switch {
	case target > old+maxMove:
		return old + maxMove
	case target < old-maxMove:
		return old - maxMove
	default:
		return target
	}
}

func qtyOneBreak(l domain.Listing) (domain.PriceBreak, bool) {
	for _, b := range l.Breaks {
		if b.MinQty == 1 {
			return b, true
		}
	}
	return domain.PriceBreak{}, false
}

var _ ports.Algorithm = (*Engine)(nil)
