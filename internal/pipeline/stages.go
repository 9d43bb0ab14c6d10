package pipeline

// StageKey is a canonical pipeline stage identifier.
type StageKey string

const (
	Scheduled          StageKey = "SCHEDULED"
	EnRouteToPickup    StageKey = "EN_ROUTE_TO_PICKUP"
	OnSitePickup       StageKey = "ON_SITE_PICKUP"
	Collected          StageKey = "COLLECTED"
	EnRouteToDepot     StageKey = "EN_ROUTE_TO_DEPOT"
	AtDepot            StageKey = "AT_DEPOT"
	Weighed            StageKey = "WEIGHED"
	EnRouteToTreatment StageKey = "EN_ROUTE_TO_TREATMENT"
	InTreatment        StageKey = "IN_TREATMENT"
	Treated            StageKey = "TREATED"
	Certified          StageKey = "CERTIFIED"
	Cancelled          StageKey = "CANCELLED"
)

type Stage struct {
	Key         StageKey
	Ordinal     int
	Title       string
	Description string
}

// Линейная последовательность. Порядок в слайсе = ordinal.
// Добавление этапа требует перенумерации и ревью, регистрации в рантайме нет.
var linear = []Stage{
	{Key: Scheduled, Ordinal: 0, Title: "Scheduled", Description: "Pickup booked"},
	{Key: EnRouteToPickup, Ordinal: 1, Title: "En route to pickup", Description: "Crew dispatched to the customer site"},
	{Key: OnSitePickup, Ordinal: 2, Title: "On site", Description: "Crew loading at the customer site"},
	{Key: Collected, Ordinal: 3, Title: "Collected", Description: "Waste loaded and manifest signed"},
	{Key: EnRouteToDepot, Ordinal: 4, Title: "En route to depot", Description: "Transport to the transfer depot"},
	{Key: AtDepot, Ordinal: 5, Title: "At depot", Description: "Received at the depot"},
	{Key: Weighed, Ordinal: 6, Title: "Weighed", Description: "Weight verified on the depot scale"},
	{Key: EnRouteToTreatment, Ordinal: 7, Title: "En route to treatment", Description: "Transport to the treatment plant"},
	{Key: InTreatment, Ordinal: 8, Title: "In treatment", Description: "Being treated"},
	{Key: Treated, Ordinal: 9, Title: "Treated", Description: "Treatment finished"},
	{Key: Certified, Ordinal: 10, Title: "Certified", Description: "Disposal certificate issued"},
}

var cancelledStage = Stage{Key: Cancelled, Ordinal: -1, Title: "Cancelled", Description: "Order cancelled"}

var index = func() map[StageKey]int {
	m := make(map[StageKey]int, len(linear))
	for _, s := range linear {
		m[s.Key] = s.Ordinal
	}
	return m
}()

// Stages returns the linear sequence (CANCELLED excluded).
func Stages() []Stage {
	out := make([]Stage, len(linear))
	copy(out, linear)
	return out
}

// LinearCount is the number of stages in the linear sequence.
func LinearCount() int { return len(linear) }

// StageIndex returns the ordinal of key, or -1 for CANCELLED and unknown keys.
func StageIndex(key StageKey) int {
	if i, ok := index[key]; ok {
		return i
	}
	return -1
}

func Lookup(key StageKey) (Stage, bool) {
	if key == Cancelled {
		return cancelledStage, true
	}
	i, ok := index[key]
	if !ok {
		return Stage{}, false
	}
	return linear[i], true
}

func IsKnown(key StageKey) bool {
	_, ok := Lookup(key)
	return ok
}

func Initial() Stage  { return linear[0] }
func Terminal() Stage { return linear[len(linear)-1] }

// IsClosed reports whether no further transitions are allowed from key.
func IsClosed(key StageKey) bool {
	return key == Certified || key == Cancelled
}
