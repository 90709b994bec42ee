package ai

// FailureModes defines the valid failure mode categories for extracted
// records. Extractors are instructed to classify every failure into one of
// these; anything that does not fit maps to "other".
var FailureModes = []string{
	"bearing",
	"blockage",
	"calibration",
	"cavitation",
	"corrosion",
	"electrical",
	"fatigue",
	"fouling",
	"leak",
	"lubrication",
	"misalignment",
	"overheating",
	"seal",
	"vibration",
	"wear",
	"other",
}

// IsKnownFailureMode reports whether mode is in the FailureModes taxonomy.
func IsKnownFailureMode(mode string) bool {
	for _, m := range FailureModes {
		if m == mode {
			return true
		}
	}
	return false
}
