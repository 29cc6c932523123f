package tooth

// Confidence grades how reliable a canal-count estimate is
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CanalEstimate is the expected root canal count for a tooth and how
// confident the anatomy tables are in it.
type CanalEstimate struct {
	Count      int        `json:"canalCount"`
	Confidence Confidence `json:"confidence"`
}

// canalKey splits the estimate table by arch where canal anatomy differs.
type canalKey struct {
	group Group
	jaw   Jaw
}

// canalTable holds the fixed defaults. Third molars and unknown teeth are
// arch-independent and handled directly in EstimateCanals.
var canalTable = map[canalKey]CanalEstimate{
	{GroupAnterior, JawMaxillary}:  {Count: 1, Confidence: ConfidenceHigh},
	{GroupAnterior, JawMandibular}: {Count: 1, Confidence: ConfidenceMedium},
	{GroupPremolar, JawMaxillary}:  {Count: 2, Confidence: ConfidenceMedium},
	{GroupPremolar, JawMandibular}: {Count: 1, Confidence: ConfidenceMedium},
	{GroupMolar, JawMaxillary}:     {Count: 3, Confidence: ConfidenceMedium},
	{GroupMolar, JawMandibular}:    {Count: 3, Confidence: ConfidenceMedium},
}

// EstimateCanals returns the default canal count for a tooth group in the
// given arch. Unknown groups and third molars fall back to 3 canals at low
// confidence; an unknown arch uses the mandibular row at low confidence.
func EstimateCanals(group Group, jaw Jaw) CanalEstimate {
	if group == GroupThirdMolar || group == GroupUnknown {
		return CanalEstimate{Count: 3, Confidence: ConfidenceLow}
	}
	if jaw == JawUnknown {
		est, ok := canalTable[canalKey{group, JawMandibular}]
		if !ok {
			return CanalEstimate{Count: 3, Confidence: ConfidenceLow}
		}
		est.Confidence = ConfidenceLow
		return est
	}
	est, ok := canalTable[canalKey{group, jaw}]
	if !ok {
		return CanalEstimate{Count: 3, Confidence: ConfidenceLow}
	}
	return est
}

// EstimateCanalsForTooth is EstimateCanals keyed by an FDI tooth number.
func EstimateCanalsForTooth(fdi int) CanalEstimate {
	return EstimateCanals(classifyFDI(fdi), JawOf(fdi))
}
