package domain

import "strings"

// Activity labels assigned to GPX tracks.
const (
	ActivityWalking = "walking"
	ActivityHiking  = "hiking"
	ActivityRunning = "running"
	ActivityCycling = "cycling"
	ActivityUnknown = "unknown"
)

// Semantic types attached to GPX records in the visit_semanticType column.
const (
	SemanticMountain   = "Mountain"
	SemanticRecreation = "Recreation"
	SemanticSports     = "Sports"
	SemanticOther      = "Other"
	SemanticWaypoint   = "Waypoint"
)

// Thresholds are the speed (km/h) and elevation gain (m) limits used when
// neither the filename nor the track name names an activity.
type Thresholds struct {
	WalkingMax    float64 `yaml:"walking_max"`
	HikingMax     float64 `yaml:"hiking_max"`
	RunningMax    float64 `yaml:"running_max"`
	CyclingMax    float64 `yaml:"cycling_max"`
	HikingMinGain float64 `yaml:"hiking_min_gain"`
}

type hint struct {
	activity string
	keywords []string
}

// Checked in order; the first matching keyword wins.
var filenameHints = []hint{
	{ActivityHiking, []string{"yamap"}},
	{ActivityRunning, []string{"run"}},
	{ActivityCycling, []string{"bike", "cycl"}},
	{ActivityWalking, []string{"walk"}},
}

var trackNameHints = []hint{
	{ActivityHiking, []string{"山", "岳", "峰", "峠", "登山", "ハイキング", "mountain", "peak", "summit", "hike"}},
	{ActivityRunning, []string{"ラン", "ジョギング", "run", "jog"}},
	{ActivityCycling, []string{"サイクル", "自転車", "bike", "cycling", "ride"}},
}

var mountainMarkers = []string{"山", "岳", "峰", "高原", "峠"}

// Classify assigns an activity label to a track. Filename hints take
// precedence over track-name hints, which take precedence over the speed and
// elevation thresholds.
func Classify(filename, trackName string, avgSpeedKmh, elevationGainM float64, t Thresholds) string {
	if a, ok := matchHint(filenameHints, filename); ok {
		return a
	}
	if a, ok := matchHint(trackNameHints, trackName); ok {
		return a
	}

	switch {
	case avgSpeedKmh < t.WalkingMax:
		return ActivityWalking
	case avgSpeedKmh < t.HikingMax && elevationGainM >= t.HikingMinGain:
		return ActivityHiking
	case avgSpeedKmh < t.RunningMax:
		return ActivityRunning
	case avgSpeedKmh < t.CyclingMax:
		return ActivityCycling
	default:
		return ActivityUnknown
	}
}

// SemanticType maps an activity and track name to the semantic label stored
// with GPX records. Mountain place names override the activity mapping.
func SemanticType(activity, trackName string) string {
	for _, m := range mountainMarkers {
		if strings.Contains(trackName, m) {
			return SemanticMountain
		}
	}
	switch activity {
	case ActivityHiking, ActivityWalking:
		return SemanticRecreation
	case ActivityRunning, ActivityCycling:
		return SemanticSports
	default:
		return SemanticOther
	}
}

func matchHint(hints []hint, s string) (string, bool) {
	if s == "" {
		return "", false
	}
	lower := strings.ToLower(s)
	for _, h := range hints {
		for _, kw := range h.keywords {
			if strings.Contains(lower, kw) {
				return h.activity, true
			}
		}
	}
	return "", false
}
