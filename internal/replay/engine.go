package replay

// engine.go — re-ejecuta el algoritmo de decisión contra el estado de
// mercado reconstruido de un record histórico.
//
// Garantías:
//   - Sin efectos en vivo: los settings se clonan y SyncSisters se fuerza a
//     false antes de invocar (la lista de sisters ya viene materializada de
//     la extracción), así el replay nunca llega a un lookup remoto.
//   - Determinismo: mismo record ⇒ mismo resultado; replay es función pura
//     de su input.
//   - Contención de fallas: un error o panic del algoritmo se convierte en
//     un ReplayResult con categoría ERROR; nunca propaga.

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

// Engine re-ejecuta records contra las dos versiones del algoritmo.
type Engine struct {
	algo      ports.Algorithm
	slowRun   bool
	sourceURL string
}

// New crea un Engine sobre el algoritmo inyectado.
func New(algo ports.Algorithm, slowRun bool, sourceURL string) *Engine {
	return &Engine{algo: algo, slowRun: slowRun, sourceURL: sourceURL}
}

// Replay ejecuta la versión actual del algoritmo contra el record y devuelve
// todas las soluciones por cantidad del job; el caller filtra a la cantidad
// que le interesa.
func (e *Engine) Replay(ctx context.Context, rec domain.Record) []domain.ReplayResult {
	in := e.buildInput(rec, rec.OwnSettings)
	decisions, err := invoke(func() ([]ports.Decision, error) {
		return e.algo.Decide(ctx, in)
	})
	if err != nil {
		return []domain.ReplayResult{errorResult(rec, err)}
	}
	return e.canonicalize(rec, decisions)
}

// ReplayLegacy ejecuta la versión legacy. Devuelve nil (sin resultado, no un
// error) cuando los settings legacy del vendor no son resolubles. Si el
// listing propio está en el snapshot sin price break de cantidad 1,
// sustituye un sentinel SKIP en lugar de invocar: el algoritmo legacy tiene
// una falla documentada con ese dato ausente.
func (e *Engine) ReplayLegacy(ctx context.Context, rec domain.Record) []domain.ReplayResult {
	if rec.LegacySettings == nil {
		return nil
	}

	if own, ok := rec.Snapshot.Listing(rec.VendorID); ok && !own.HasQtyOne() {
		return []domain.ReplayResult{skipResult(rec)}
	}

	// El target usa sus settings legacy; los siblings mantienen los suyos.
	settings := make([]domain.VendorSettings, 0, len(rec.OwnSettings))
	replaced := false
	for _, s := range rec.OwnSettings {
		if s.VendorID == rec.VendorID {
			settings = append(settings, *rec.LegacySettings)
			replaced = true
			continue
		}
		settings = append(settings, s)
	}
	if !replaced {
		settings = append(settings, *rec.LegacySettings)
	}

	in := e.buildInput(rec, settings)
	decisions, err := invoke(func() ([]ports.Decision, error) {
		return e.algo.DecideLegacy(ctx, in)
	})
	if err != nil {
		return []domain.ReplayResult{errorResult(rec, err)}
	}
	return e.canonicalize(rec, decisions)
}

// ReplayWithOverrides ejecuta la versión actual con un patch de settings
// aplicado. Nunca muta el record de entrada: opera sobre una copia con el
// override mergeado tanto en los settings del target como en su entrada
// dentro de la lista completa.
func (e *Engine) ReplayWithOverrides(ctx context.Context, rec domain.Record, patch domain.SettingsPatch) []domain.ReplayResult {
	mod := rec.Clone()
	mod.Settings = patch.Apply(mod.Settings)
	for i := range mod.OwnSettings {
		if mod.OwnSettings[i].VendorID == mod.VendorID {
			mod.OwnSettings[i] = patch.Apply(mod.OwnSettings[i])
		}
	}
	return e.Replay(ctx, mod)
}

// buildInput arma el estado de mercado para el algoritmo: snapshot con el
// umbral de envío gratis superpuesto desde thresholds (el shipping estándar
// reportado se preserva verbatim, regla espejo de la extracción) y settings
// saneados para que ningún flag dispare un lookup en vivo.
func (e *Engine) buildInput(rec domain.Record, settings []domain.VendorSettings) ports.DecisionInput {
	snapshot := rec.Snapshot.OverlayThresholds(rec.Thresholds)

	// Vendors propios realmente presentes en el snapshot (set no excluido):
	// el algoritmo recibe la lista completa de identidades propias, pero los
	// presentes van primero para que ancle la decisión en ellos.
	present := make([]int64, 0, len(rec.OwnSettings))
	absent := make([]int64, 0, len(rec.OwnSettings))
	for _, id := range rec.OwnVendorIDs() {
		if _, ok := snapshot.Listing(id); ok && !rec.Settings.IsExcluded(id) {
			present = append(present, id)
		} else {
			absent = append(absent, id)
		}
	}

	return ports.DecisionInput{
		ProductID:  rec.ProductID,
		Snapshot:   snapshot,
		OwnVendors: append(present, absent...),
		Settings:   sanitize(settings),
		JobID:      rec.JobID,
		SlowRun:    e.slowRun,
		SourceURL:  e.sourceURL,
		Thresholds: append([]domain.VendorThreshold(nil), rec.Thresholds...),
	}
}

// sanitize clona cada settings y apaga SyncSisters: la lista de sisters ya
// está materializada, y el flag encendido dispararía el registry remoto.
func sanitize(settings []domain.VendorSettings) []domain.VendorSettings {
	out := make([]domain.VendorSettings, len(settings))
	for i, s := range settings {
		c := s.Clone()
		c.SyncSisters = false
		out[i] = c
	}
	return out
}

// canonicalize mapea las decisiones crudas del algoritmo a resultados
// canónicos. Los comments sin tag de dirección explícito infieren la
// dirección comparando el precio viejo (listing propio o precio existente
// del histórico) contra el nuevo.
func (e *Engine) canonicalize(rec domain.Record, decisions []ports.Decision) []domain.ReplayResult {
	results := make([]domain.ReplayResult, 0, len(decisions))
	for _, d := range decisions {
		old := oldPrice(rec, d.VendorID, d.Quantity)
		tag := domain.ClassifyReplayComment(d.Comment, old, d.Price)
		results = append(results, domain.ReplayResult{
			ProductID:     rec.ProductID,
			VendorID:      d.VendorID,
			Quantity:      d.Quantity,
			Category:      tag.Outcome(),
			Price:         d.Price,
			Comment:       d.Comment,
			TriggerVendor: d.TriggerVendor,
			BreaksValid:   d.BreaksValid,
		})
	}
	return results
}

// oldPrice resuelve el precio vigente del vendor antes de la decisión: el
// price break aplicable de su listing, o el precio existente registrado en
// el histórico legacy como fallback.
func oldPrice(rec domain.Record, vendorID int64, quantity int) *float64 {
	if l, ok := rec.Snapshot.Listing(vendorID); ok {
		if b, ok := l.BreakFor(quantity); ok {
			p := b.UnitPrice
			return &p
		}
	}
	return rec.Historical.ExistingPrice
}

// invoke ejecuta el algoritmo conteniendo tanto errores como panics.
func invoke(fn func() ([]ports.Decision, error)) (decisions []ports.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			decisions = nil
			err = fmt.Errorf("replay.invoke: algorithm panic: %v", r)
		}
	}()
	return fn()
}

func errorResult(rec domain.Record, err error) domain.ReplayResult {
	return domain.ReplayResult{
		ProductID: rec.ProductID,
		VendorID:  rec.VendorID,
		Quantity:  rec.Quantity,
		Category:  domain.Error,
		Comment:   err.Error(),
	}
}

func skipResult(rec domain.Record) domain.ReplayResult {
	return domain.ReplayResult{
		ProductID: rec.ProductID,
		VendorID:  rec.VendorID,
		Quantity:  rec.Quantity,
		Category:  domain.Skip,
		Comment:   "own listing has no quantity-1 price break",
	}
}
