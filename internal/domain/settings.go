package domain

// PriceBasis define sobre qué precio compite el repricer.
type PriceBasis string

const (
	BasisUnit   PriceBasis = "UNIT"    // precio unitario (primer price break)
	BasisTotal  PriceBasis = "TOTAL"   // unitario + shipping
	BasisBuyBox PriceBasis = "BUY_BOX" // precio del ganador del buy box
)

// Direction define en qué sentido puede moverse el precio.
type Direction string

const (
	DirectionUp     Direction = "UP"
	DirectionUpDown Direction = "UP_DOWN"
	DirectionDown   Direction = "DOWN"
)

// BadgeMode define contra qué listings se compite.
type BadgeMode string

const (
	BadgeAll  BadgeMode = "ALL"   // contra todos los listings
	BadgeOnly BadgeMode = "BADGE" // solo contra listings con badge
)

// HandlingAll es el grupo de handling-time que no filtra por tiempo de envío.
const HandlingAll = "ALL"

// DefaultCeiling es el techo sintetizado cuando no hay settings guardados.
const DefaultCeiling = 1e8

// VendorSettings es la política de pricing de un (producto, vendor).
// Es la fila de la settings table; cuando falta, se sintetiza con
// DefaultSettings en lugar de fallar el registro.
type VendorSettings struct {
	ProductID int64 `json:"productId" db:"product_id"`
	VendorID  int64 `json:"vendorId" db:"vendor_id"`

	FloorPrice   float64    `json:"floorPrice" db:"floor_price"`
	CeilingPrice float64    `json:"ceilingPrice" db:"ceiling_price"`
	Basis        PriceBasis `json:"basis" db:"basis"`
	Direction    Direction  `json:"direction" db:"direction"`
	BadgeMode    BadgeMode  `json:"badgeMode" db:"badge_mode"`

	// HandlingGroup restringe la competencia a listings con un tiempo de
	// manejo comparable. "ALL" = sin restricción.
	HandlingGroup string `json:"handlingGroup" db:"handling_group"`

	// Topes porcentuales de movimiento. -1 = deshabilitado.
	MaxUpPct        float64 `json:"maxUpPct" db:"max_up_pct"`
	MaxDownPct      float64 `json:"maxDownPct" db:"max_down_pct"`
	MaxUpPctBadge   float64 `json:"maxUpPctBadge" db:"max_up_pct_badge"`
	MaxDownPctBadge float64 `json:"maxDownPctBadge" db:"max_down_pct_badge"`

	// SisterVendors son vendors propios excluidos de la comparación para no
	// competir contra uno mismo.
	SisterVendors   []int64 `json:"sisterVendors" db:"-"`
	ExcludedVendors []int64 `json:"excludedVendors" db:"-"`
	InactiveVendor  int64   `json:"inactiveVendor" db:"inactive_vendor"`

	// InventoryThreshold: stock mínimo de un competidor para considerarlo.
	InventoryThreshold int  `json:"inventoryThreshold" db:"inventory_threshold"`
	KeepPosition       bool `json:"keepPosition" db:"keep_position"`
	CompeteWithAll     bool `json:"competeWithAll" db:"compete_with_all"`
	// FloorCompeteNext: al pegar contra el floor, competir contra el
	// siguiente precio en vez de rendirse.
	FloorCompeteNext bool `json:"floorCompeteNext" db:"floor_compete_next"`

	SuppressBreaks      bool `json:"suppressBreaks" db:"suppress_breaks"`
	SuppressBadgeBreaks bool `json:"suppressBadgeBreaks" db:"suppress_badge_breaks"`

	// SyncSisters, en el repricer en vivo, refresca la lista de sisters
	// desde el registry remoto de vendors. El replay la fuerza a false
	// siempre — ver replay.Engine.
	SyncSisters bool `json:"syncSisters" db:"sync_sisters"`

	Priority int  `json:"priority" db:"priority"`
	Enabled  bool `json:"enabled" db:"enabled"`
}

// DefaultSettings sintetiza la política por defecto documentada para un
// (producto, vendor) sin fila en la settings table.
func DefaultSettings(productID, vendorID int64) VendorSettings {
	return VendorSettings{
		ProductID:          productID,
		VendorID:           vendorID,
		FloorPrice:         0,
		CeilingPrice:       DefaultCeiling,
		Basis:              BasisUnit,
		Direction:          DirectionUpDown,
		BadgeMode:          BadgeAll,
		HandlingGroup:      HandlingAll,
		MaxUpPct:           -1,
		MaxDownPct:         -1,
		MaxUpPctBadge:      -1,
		MaxDownPctBadge:    -1,
		InventoryThreshold: 1,
		Enabled:            true,
	}
}

// IsExcluded devuelve true si vendorID está excluido de la comparación
// (lista de excluidos, sisters o el vendor inactivo).
func (s VendorSettings) IsExcluded(vendorID int64) bool {
	if vendorID == s.InactiveVendor && s.InactiveVendor != 0 {
		return true
	}
	for _, id := range s.ExcludedVendors {
		if id == vendorID {
			return true
		}
	}
	for _, id := range s.SisterVendors {
		if id == vendorID {
			return true
		}
	}
	return false
}

// Clone devuelve una copia profunda de los settings (las listas de vendors
// se copian, no se comparten).
func (s VendorSettings) Clone() VendorSettings {
	out := s
	out.SisterVendors = append([]int64(nil), s.SisterVendors...)
	out.ExcludedVendors = append([]int64(nil), s.ExcludedVendors...)
	return out
}

// SettingsPatch es un override parcial para análisis what-if. Solo los campos
// no-nil se aplican; el patch nunca se persiste.
type SettingsPatch struct {
	FloorPrice         *float64    `json:"floorPrice,omitempty"`
	CeilingPrice       *float64    `json:"ceilingPrice,omitempty"`
	Basis              *PriceBasis `json:"basis,omitempty"`
	Direction          *Direction  `json:"direction,omitempty"`
	BadgeMode          *BadgeMode  `json:"badgeMode,omitempty"`
	MaxUpPct           *float64    `json:"maxUpPct,omitempty"`
	MaxDownPct         *float64    `json:"maxDownPct,omitempty"`
	InventoryThreshold *int        `json:"inventoryThreshold,omitempty"`
	KeepPosition       *bool       `json:"keepPosition,omitempty"`
	CompeteWithAll     *bool       `json:"competeWithAll,omitempty"`
	FloorCompeteNext   *bool       `json:"floorCompeteNext,omitempty"`
	SuppressBreaks     *bool       `json:"suppressBreaks,omitempty"`
}

// IsEmpty devuelve true si el patch no tiene ningún campo seteado.
func (p SettingsPatch) IsEmpty() bool {
	return p.FloorPrice == nil && p.CeilingPrice == nil && p.Basis == nil &&
		p.Direction == nil && p.BadgeMode == nil && p.MaxUpPct == nil &&
		p.MaxDownPct == nil && p.InventoryThreshold == nil &&
		p.KeepPosition == nil && p.CompeteWithAll == nil &&
		p.FloorCompeteNext == nil && p.SuppressBreaks == nil
}

// Apply devuelve una copia de s con los campos del patch aplicados.
func (p SettingsPatch) Apply(s VendorSettings) VendorSettings {
	out := s.Clone()
	if p.FloorPrice != nil {
		out.FloorPrice = *p.FloorPrice
	}
	if p.CeilingPrice != nil {
		out.CeilingPrice = *p.CeilingPrice
	}
	if p.Basis != nil {
		out.Basis = *p.Basis
	}
	if p.Direction != nil {
		out.Direction = *p.Direction
	}
	if p.BadgeMode != nil {
		out.BadgeMode = *p.BadgeMode
	}
	if p.MaxUpPct != nil {
		out.MaxUpPct = *p.MaxUpPct
	}
	if p.MaxDownPct != nil {
		out.MaxDownPct = *p.MaxDownPct
	}
	if p.InventoryThreshold != nil {
		out.InventoryThreshold = *p.InventoryThreshold
	}
	if p.KeepPosition != nil {
		out.KeepPosition = *p.KeepPosition
	}
	if p.CompeteWithAll != nil {
		out.CompeteWithAll = *p.CompeteWithAll
	}
	if p.FloorCompeteNext != nil {
		out.FloorCompeteNext = *p.FloorCompeteNext
	}
	if p.SuppressBreaks != nil {
		out.SuppressBreaks = *p.SuppressBreaks
	}
	return out
}
