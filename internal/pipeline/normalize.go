package pipeline

import "sort"

// Старая операционная система (исп. статусы заказа).
var legacyOps = map[string]StageKey{
	"PENDIENTE":             Scheduled,
	"PROGRAMADA":            Scheduled,
	"ASIGNADA":              EnRouteToPickup,
	"EN_RUTA":               OnSitePickup,
	"RECOLECTADA":           Collected,
	"EN_TRANSITO":           EnRouteToDepot,
	"EN_ACOPIO":             AtDepot,
	"PESADA":                Weighed,
	"EN_CAMINO_TRATAMIENTO": EnRouteToTreatment,
	"EN_TRATAMIENTO":        InTreatment,
	"TRATADA":               Treated,
	"COMPLETADA":            Certified,
	"CERTIFICADA":           Certified,
	"CANCELADA":             Cancelled,
}

// Старая подсистема трекинга (lowercase).
var legacyTracking = map[string]StageKey{
	"pending":    Scheduled,
	"scheduled":  Scheduled,
	"in_route":   EnRouteToPickup,
	"arrived":    OnSitePickup,
	"picked_up":  Collected,
	"collected":  Collected,
	"in_transit": EnRouteToDepot,
	"received":   AtDepot,
	"weighed":    Weighed,
	"dispatched": EnRouteToTreatment,
	"processing": InTreatment,
	"processed":  Treated,
	"completed":  Certified,
	"certified":  Certified,
	"cancelled":  Cancelled,
	"canceled":   Cancelled,
}

// aliases is the single lookup table every raw token goes through.
// New aliases are added to one of the vocabularies above and nowhere else.
var aliases = func() map[string]StageKey {
	m := make(map[string]StageKey, len(linear)+1+len(legacyOps)+len(legacyTracking))
	for _, s := range linear {
		m[string(s.Key)] = s.Key
	}
	m[string(Cancelled)] = Cancelled
	for tok, k := range legacyOps {
		m[tok] = k
	}
	for tok, k := range legacyTracking {
		m[tok] = k
	}
	return m
}()

// Normalize maps a persisted status token onto its canonical stage.
// Matching is exact and case-sensitive; unknown tokens fall back to the
// initial stage instead of failing.
func Normalize(raw string) StageKey {
	if k, ok := aliases[raw]; ok {
		return k
	}
	return Initial().Key
}

// Aliases returns every token that normalizes to key, sorted.
func Aliases(key StageKey) []string {
	var out []string
	for tok, k := range aliases {
		if k == key {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}
