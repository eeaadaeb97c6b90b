package web

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

// BatchRequest describe qué batch extraer: ventana, filtros y schema.
type BatchRequest struct {
	From string `json:"from" binding:"required"` // RFC 3339
	To   string `json:"to" binding:"required"`   // RFC 3339

	ProductIDs []int64 `json:"productIds,omitempty"`
	VendorIDs  []int64 `json:"vendorIds,omitempty"`
	RunName    string  `json:"runName,omitempty"`
	Limit      int     `json:"limit,omitempty"`

	// Schema: "current" (default) o "legacy". Elección explícita del
	// caller, nunca inferida.
	Schema string `json:"schema,omitempty"`
}

// Window parsea y valida la ventana temporal del request.
func (r BatchRequest) Window() (ports.Window, error) {
	from, err := time.Parse(time.RFC3339, r.From)
	if err != nil {
		return ports.Window{}, fmt.Errorf("web: invalid from %q: %w", r.From, err)
	}
	to, err := time.Parse(time.RFC3339, r.To)
	if err != nil {
		return ports.Window{}, fmt.Errorf("web: invalid to %q: %w", r.To, err)
	}
	if to.Before(from) {
		return ports.Window{}, fmt.Errorf("web: window ends before it starts")
	}
	return ports.Window{From: from, To: to}, nil
}

// Filters arma los filtros de extracción del request.
func (r BatchRequest) Filters() ports.Filters {
	return ports.Filters{
		ProductIDs: r.ProductIDs,
		VendorIDs:  r.VendorIDs,
		RunName:    r.RunName,
		Limit:      r.Limit,
	}
}

// WhatIfRequest agrega el override parcial al batch.
type WhatIfRequest struct {
	BatchRequest
	Override domain.SettingsPatch `json:"override"`
}

// ExportRequest escribe el batch extraído a un snapshot portable.
type ExportRequest struct {
	BatchRequest
	Path string `json:"path" binding:"required"`
}

// ErrorDetail es el cuerpo de un error HTTP.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse envuelve el error para el cliente.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
