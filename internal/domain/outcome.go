package domain

// outcome.go — taxonomía canónica de resultados de repricing.
//
// Todos los comments de texto libre (schema legacy y output del algoritmo)
// colapsan en un set fijo de tags, y cada tag mapea a exactamente una de las
// tres categorías canónicas {CHANGE_UP, CHANGE_DOWN, NO_CHANGE}. La
// precedencia de clasificación está calcada del history original y los tests
// la cubren de forma exhaustiva — no tocar sin tabla de casos delante.

import "strings"

// Tag es la clasificación fina de un comment de texto libre.
type Tag string

const (
	TagChangeUp     Tag = "CHANGE_UP"
	TagChangeDown   Tag = "CHANGE_DOWN"
	TagIgnoreFloor  Tag = "IGNORE_FLOOR"
	TagIgnoreSister Tag = "IGNORE_SISTER"
	TagIgnoreLowest Tag = "IGNORE_LOWEST"
	TagIgnoreOther  Tag = "IGNORE_OTHER"
	TagNoSolution   Tag = "NO_SOLUTION"
)

// Category es la categoría canónica de una decisión de pricing.
// ERROR y SKIP son sentinelas del replay, nunca salen del extractor.
type Category string

const (
	ChangeUp   Category = "CHANGE_UP"
	ChangeDown Category = "CHANGE_DOWN"
	NoChange   Category = "NO_CHANGE"
	Error      Category = "ERROR"
	Skip       Category = "SKIP"
)

// Outcome colapsa el tag en la categoría canónica de tres valores.
func (t Tag) Outcome() Category {
	switch t {
	case TagChangeUp:
		return ChangeUp
	case TagChangeDown:
		return ChangeDown
	default:
		return NoChange
	}
}

// IsPriceChange devuelve true si la categoría implica un cambio de precio.
func (c Category) IsPriceChange() bool {
	return c == ChangeUp || c == ChangeDown
}

// ClassifyComment mapea un comment de texto libre al tag correspondiente.
//
// Precedencia (case-insensitive, en este orden):
//  1. Prefijo "CHANGE": "$DOWN"/"#DOWN" → CHANGE_DOWN; "$UP"/"#UP" → CHANGE_UP;
//     sin tag explícito → CHANGE_DOWN por defecto.
//  2. Prefijo "IGNORE": "FLOOR"/"HITFLOOR" → IGNORE_FLOOR; "SISTER" →
//     IGNORE_SISTER; "LOWEST" → IGNORE_LOWEST; el resto → IGNORE_OTHER.
//  3. Vacío, "N/A" o cualquier otra cosa → NO_SOLUTION.
func ClassifyComment(comment string) Tag {
	return classify(comment, func() Tag { return TagChangeDown })
}

// ClassifyReplayComment es la variante del replay: cuando un comment CHANGE no
// trae tag de dirección explícito, la dirección se infiere comparando el precio
// viejo contra el nuevo (menor ⇒ CHANGE_DOWN, mayor ⇒ CHANGE_UP).
func ClassifyReplayComment(comment string, oldPrice, newPrice *float64) Tag {
	return classify(comment, func() Tag {
		if oldPrice != nil && newPrice != nil {
			if *newPrice > *oldPrice {
				return TagChangeUp
			}
		}
		return TagChangeDown
	})
}

// classify implementa la precedencia compartida; fallback resuelve la
// dirección cuando un CHANGE no trae "$UP"/"$DOWN"/"#UP"/"#DOWN".
func classify(comment string, fallback func() Tag) Tag {
	c := strings.ToUpper(strings.TrimSpace(comment))

	switch {
	case strings.HasPrefix(c, "CHANGE"):
		switch {
		case strings.Contains(c, "$DOWN"), strings.Contains(c, "#DOWN"):
			return TagChangeDown
		case strings.Contains(c, "$UP"), strings.Contains(c, "#UP"):
			return TagChangeUp
		default:
			return fallback()
		}
	case strings.HasPrefix(c, "IGNORE"):
		switch {
		// HITFLOOR contiene FLOOR — el orden acá no importa, pero se
		// listan los dos para que el criterio quede explícito.
		case strings.Contains(c, "HITFLOOR"), strings.Contains(c, "FLOOR"):
			return TagIgnoreFloor
		case strings.Contains(c, "SISTER"):
			return TagIgnoreSister
		case strings.Contains(c, "LOWEST"):
			return TagIgnoreLowest
		default:
			return TagIgnoreOther
		}
	default:
		// Vacío, "N/A" y cualquier texto no reconocido.
		return TagNoSolution
	}
}
