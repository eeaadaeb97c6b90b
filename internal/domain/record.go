package domain

import "time"

// Historical es el desenlace registrado de una decisión pasada, ya
// normalizado a la taxonomía canónica.
type Historical struct {
	Tag           Tag      `json:"tag"`
	Price         *float64 `json:"price,omitempty"`
	Comment       string   `json:"comment"`
	TriggerVendor int64    `json:"triggerVendor"`
	BreaksValid   bool     `json:"breaksValid"`

	// Campos solo-legacy (el decision log actual no los registra).
	ExistingPrice *float64 `json:"existingPrice,omitempty"`
	Rank          int      `json:"rank,omitempty"`
	LowestVendor  int64    `json:"lowestVendor,omitempty"`
	LowestPrice   *float64 `json:"lowestPrice,omitempty"`
}

// Category devuelve la categoría canónica del desenlace histórico.
func (h Historical) Category() Category {
	return h.Tag.Outcome()
}

// Record es un evento de decisión histórico autocontenido: todo lo necesario
// para volver a ejecutar el algoritmo contra el estado de mercado de aquel
// momento. El invariante del extractor: un record sin MarketSnapshot
// resoluble no se construye.
type Record struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"jobId"`
	ProductID int64     `json:"productId"`
	VendorID  int64     `json:"vendorId"`
	Quantity  int       `json:"quantity"`
	At        time.Time `json:"at"`
	RunName   string    `json:"runName"`

	Snapshot MarketSnapshot `json:"snapshot"`

	// Settings del vendor primario; OwnSettings incluye además los settings
	// del resto de los vendors propios para la comparación a nivel producto.
	Settings    VendorSettings   `json:"settings"`
	OwnSettings []VendorSettings `json:"ownSettings"`

	// LegacySettings es nil cuando no hay settings legacy resolubles para el
	// vendor; en ese caso el algoritmo legacy no aplica para este record.
	LegacySettings *VendorSettings `json:"legacySettings,omitempty"`

	Thresholds []VendorThreshold `json:"thresholds"`

	Historical Historical `json:"historical"`
}

// OwnVendorIDs devuelve los vendor ids de OwnSettings, en orden.
func (r Record) OwnVendorIDs() []int64 {
	ids := make([]int64, 0, len(r.OwnSettings))
	for _, s := range r.OwnSettings {
		ids = append(ids, s.VendorID)
	}
	return ids
}

// Clone devuelve una copia del record que no comparte estado mutable con el
// original (snapshot, settings y thresholds propios).
func (r Record) Clone() Record {
	out := r
	out.Snapshot = r.Snapshot.Clone()
	out.Settings = r.Settings.Clone()
	out.OwnSettings = make([]VendorSettings, len(r.OwnSettings))
	for i, s := range r.OwnSettings {
		out.OwnSettings[i] = s.Clone()
	}
	if r.LegacySettings != nil {
		ls := r.LegacySettings.Clone()
		out.LegacySettings = &ls
	}
	out.Thresholds = append([]VendorThreshold(nil), r.Thresholds...)
	return out
}

// ReplayResult es una decisión canónica producida al re-ejecutar un record.
// Efímero: este motor nunca lo persiste.
type ReplayResult struct {
	ProductID     int64    `json:"productId"`
	VendorID      int64    `json:"vendorId"`
	Quantity      int      `json:"quantity"`
	Category      Category `json:"category"`
	Price         *float64 `json:"price,omitempty"`
	Comment       string   `json:"comment"`
	TriggerVendor int64    `json:"triggerVendor"`
	BreaksValid   bool     `json:"breaksValid"`
}

// FindResult devuelve el resultado que corresponde a (vendorID, quantity),
// o nil si ninguno matchea.
func FindResult(results []ReplayResult, vendorID int64, quantity int) *ReplayResult {
	for i := range results {
		if results[i].VendorID == vendorID && results[i].Quantity == quantity {
			return &results[i]
		}
	}
	return nil
}
