package profile

// Profile is the canonical shape of one user's matching attributes.
// Every field is always populated: lists are non-nil and categorical
// values default to "".
type Profile struct {
	Name               string   `json:"name"`
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	PreferredMode      string   `json:"preferredMode"`
	PrimaryGoal        string   `json:"primaryGoal"`
	PreferredFrequency string   `json:"preferredFrequency"`
	PartnerPreference  string   `json:"partnerPreference"`
	SessionLength      string   `json:"sessionLength"`
	TimeZone           string   `json:"timeZone"`
	StudyPersonality   string   `json:"studyPersonality"`
	Availability       string   `json:"availability"`
}

// Raw is a loosely-shaped profile record as returned by any store.
type Raw map[string]any

// Entry is one keyed record from a Source collection.
type Entry struct {
	Key  string
	Data Raw
}

// Field names as stored in raw records.
const (
	KeyName               = "name"
	KeyUsername           = "username"
	KeyStrengths          = "strengths"
	KeyWeaknesses         = "weaknesses"
	KeyPreferredMode      = "preferredMode"
	KeyPrimaryGoal        = "primaryGoal"
	KeyPreferredFrequency = "preferredFrequency"
	KeyPartnerPreference  = "partnerPreference"
	KeySessionLength      = "sessionLength"
	KeyTimeZone           = "timeZone"
	KeyStudyPersonality   = "studyPersonality"
	KeyAvailability       = "availability"
	KeyAddedBy            = "addedBy"
	KeyCreatedAt          = "createdAt"
	KeyUpdatedAt          = "updatedAt"
)

// Raw returns the canonical map form of p. Normalizing the result with
// any fallback key yields p again.
func (p Profile) Raw() Raw {
	r := Raw{
		KeyName:       p.Name,
		KeyStrengths:  copyStrings(p.Strengths),
		KeyWeaknesses: copyStrings(p.Weaknesses),
	}
	for _, f := range categoricalFields {
		r[f.key] = *f.ptr(&p)
	}
	return r
}

// LooksEmpty reports whether p carries nothing useful for matching.
func (p Profile) LooksEmpty() bool {
	return p.Availability == "" && len(p.Strengths) == 0 && len(p.Weaknesses) == 0
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	cp.Strengths = copyStrings(p.Strengths)
	cp.Weaknesses = copyStrings(p.Weaknesses)
	return cp
}

func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
