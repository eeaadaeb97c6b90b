package domain

// diff.go — artefactos de comparación. Todos son output puro: se construyen
// por llamada y los serializa el caller; este motor no los persiste.

import (
	"math"
	"time"
)

// PriceTolerance es la tolerancia de match entre el precio histórico y el
// replay. Diferencias ≤ 1 centavo cuentan como el mismo precio.
const PriceTolerance = 0.01

// Round4 redondea a 4 decimales.
func Round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// PricesMatch aplica la regla de tolerancia: ambos nil ⇒ match; uno solo nil
// ⇒ mismatch; ambos presentes ⇒ |a−b| ≤ PriceTolerance.
func PricesMatch(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	// Margen de float para que 9.50 vs 9.49 caiga exactamente en el límite.
	return math.Abs(*a-*b) <= PriceTolerance+1e-9
}

// DecisionsMatch aplica la regla de match record-level contra el histórico.
// Un mismatch de categoría siempre es mismatch, sin importar qué tan cerca
// estén los precios. res == nil (sin resultado para el par vendor/cantidad)
// solo matchea si el histórico fue NO_CHANGE.
func DecisionsMatch(hist Historical, res *ReplayResult) bool {
	if res == nil {
		return hist.Category() == NoChange
	}
	if hist.Category() != res.Category {
		return false
	}
	return PricesMatch(hist.Price, res.Price)
}

// PriceDelta devuelve round4(b − a), o nil si falta alguno de los dos.
func PriceDelta(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := Round4(*b - *a)
	return &d
}

// BacktestDiff es la comparación record-level: histórico vs replay actual.
type BacktestDiff struct {
	RecordID  int64  `json:"recordId"`
	JobID     string `json:"jobId"`
	ProductID int64  `json:"productId"`
	VendorID  int64  `json:"vendorId"`
	Quantity  int    `json:"quantity"`

	HistCategory Category `json:"histCategory"`
	CurrCategory Category `json:"currCategory"`
	HistPrice    *float64 `json:"histPrice,omitempty"`
	CurrPrice    *float64 `json:"currPrice,omitempty"`
	// PriceDelta = round4(actual − histórico); nil si falta algún precio.
	PriceDelta *float64 `json:"priceDelta,omitempty"`

	HistComment string `json:"histComment"`
	CurrComment string `json:"currComment"`
	Match       bool   `json:"match"`
}

// RegressionReport es el resultado de comparar un batch completo.
// Batch vacío ⇒ Total 0 y MatchRate 1 (match vacuo), nunca un error.
type RegressionReport struct {
	RunID     string         `json:"runId"`
	Total     int            `json:"total"`
	Matched   int            `json:"matched"`
	Errors    int            `json:"errors"`
	MatchRate float64        `json:"matchRate"`
	Elapsed   time.Duration  `json:"elapsed"`
	Diffs     []BacktestDiff `json:"diffs"`
}

// MarketRank es una entrada del ranking de mercado de un producto:
// precio total (unitario + shipping estándar) ascendente.
type MarketRank struct {
	Position   int      `json:"position"`
	VendorID   int64    `json:"vendorId"`
	VendorName string   `json:"vendorName"`
	// TotalPrice nil = sin precio unitario resoluble (ordena último).
	TotalPrice *float64 `json:"totalPrice,omitempty"`
	IsOwn      bool     `json:"isOwn"`
}

// VendorDecision es una fila de la comparación three-way a nivel producto:
// histórico vs algoritmo actual vs algoritmo legacy.
type VendorDecision struct {
	VendorID int64 `json:"vendorId"`
	Quantity int   `json:"quantity"`

	HistCategory Category `json:"histCategory"`
	HistPrice    *float64 `json:"histPrice,omitempty"`

	CurrCategory Category `json:"currCategory"`
	CurrPrice    *float64 `json:"currPrice,omitempty"`
	CurrMatch    bool     `json:"currMatch"`

	// Campos legacy nil = settings legacy no resolubles para el vendor; no
	// cuenta en el denominador de esa versión.
	LegacyCategory *Category `json:"legacyCategory,omitempty"`
	LegacyPrice    *float64  `json:"legacyPrice,omitempty"`
	LegacyMatch    *bool     `json:"legacyMatch,omitempty"`
}

// ProductDiff agrupa las decisiones de todos los vendors de un producto en
// una corrida (bucket de 2 minutos) más el ranking de mercado.
type ProductDiff struct {
	ProductID int64     `json:"productId"`
	Bucket    time.Time `json:"bucket"`

	Ranking   []MarketRank     `json:"ranking"`
	Decisions []VendorDecision `json:"decisions"`

	// Match: todas las filas aplicables matchean (legacy nil no bloquea).
	Match       bool `json:"match"`
	LegacyMatch bool `json:"legacyMatch"`
	CurrMatch   bool `json:"currMatch"`
	// HasLegacy: al menos una fila tiene algoritmo legacy aplicable.
	HasLegacy bool `json:"hasLegacy"`
}

// ProductReport es el reporte three-way a nivel producto de un batch.
type ProductReport struct {
	RunID       string        `json:"runId"`
	TotalGroups int           `json:"totalGroups"`
	// LegacyGroups es el denominador del rate legacy: grupos con al menos
	// una fila donde el algoritmo legacy aplica.
	LegacyGroups  int           `json:"legacyGroups"`
	MatchedBoth   int           `json:"matchedBoth"`
	MatchedCurr   int           `json:"matchedCurr"`
	MatchedLegacy int           `json:"matchedLegacy"`
	RateBoth      float64       `json:"rateBoth"`
	RateCurr      float64       `json:"rateCurr"`
	RateLegacy    float64       `json:"rateLegacy"`
	Elapsed       time.Duration `json:"elapsed"`
	Products      []ProductDiff `json:"products"`
}

// WhatIfKind clasifica el impacto del override sobre un record.
type WhatIfKind string

const (
	WhatIfUnchanged        WhatIfKind = "UNCHANGED"
	WhatIfNewlyRepriced    WhatIfKind = "NEWLY_REPRICED"
	WhatIfNoLongerRepriced WhatIfKind = "NO_LONGER_REPRICED"
	WhatIfPricedHigher     WhatIfKind = "PRICED_HIGHER"
	WhatIfPricedLower      WhatIfKind = "PRICED_LOWER"
	// WhatIfChanged: cambió la categoría sin caer en ninguno de los casos
	// anteriores (ej. un lado sin precio).
	WhatIfChanged WhatIfKind = "CHANGED"
)

// WhatIfSample es el detalle de un record cuyo resultado cambió con el
// override, acotado para render en UI.
type WhatIfSample struct {
	RecordID  int64 `json:"recordId"`
	ProductID int64 `json:"productId"`
	VendorID  int64 `json:"vendorId"`
	Quantity  int   `json:"quantity"`

	BaseCategory Category `json:"baseCategory"`
	NewCategory  Category `json:"newCategory"`
	BasePrice    *float64 `json:"basePrice,omitempty"`
	NewPrice     *float64 `json:"newPrice,omitempty"`
	Delta        *float64 `json:"delta,omitempty"`

	Kind WhatIfKind `json:"kind"`
}

// WhatIfReport agrega el impacto de un override sobre un batch.
type WhatIfReport struct {
	RunID   string `json:"runId"`
	Total   int    `json:"total"`
	Changed int    `json:"changed"`

	NewlyRepriced    int `json:"newlyRepriced"`
	NoLongerRepriced int `json:"noLongerRepriced"`
	PricedHigher     int `json:"pricedHigher"`
	PricedLower      int `json:"pricedLower"`

	// AvgDelta: promedio de (nuevo − base) sobre los records donde ambos
	// lados produjeron precio, redondeado a 4 decimales. 0 si no hay
	// ninguno — nunca NaN.
	AvgDelta float64 `json:"avgDelta"`

	Samples []WhatIfSample `json:"samples"`

	Elapsed time.Duration `json:"elapsed"`
}
