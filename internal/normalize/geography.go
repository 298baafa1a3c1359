package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ansel1/merry"
	"github.com/powerman/must"
	"gopkg.in/yaml.v3"

	"github.com/uidai-stress/internal/model"
)

// SentinelCode marks geography the upstream extractor could not resolve.
// It appears in the state or district column and as a pincode placeholder.
const SentinelCode = "100000"

// ErrUnresolvedGeography is raised for rows carrying the sentinel.
var ErrUnresolvedGeography = merry.New("unresolved geography")

//go:embed aliases.yaml
var builtinAliases []byte

type aliasFile struct {
	States map[string]string `yaml:"states"`
}

// Normalizer canonicalizes state and district names so that rows keyed on
// spelling variants collapse into one district key. It keeps per-alias hit
// counts for the data quality report.
type Normalizer struct {
	stateAliases map[string]string
	hits         map[string]int
}

// NewNormalizer builds a normalizer from the compiled-in alias table.
func NewNormalizer() *Normalizer {
	var f aliasFile
	must.NoErr(yaml.Unmarshal(builtinAliases, &f))
	return &Normalizer{
		stateAliases: f.States,
		hits:         make(map[string]int),
	}
}

// LoadOverlay merges additional state aliases from a YAML file on top of
// the compiled-in table, so administrative renames do not require a
// rebuild. Returns the number of aliases added or replaced.
func (n *Normalizer) LoadOverlay(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read alias overlay: %w", err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("failed to parse alias overlay %s: %w", path, err)
	}
	for from, to := range f.States {
		n.stateAliases[from] = to
	}
	return len(f.States), nil
}

// AliasCount returns the number of state aliases currently loaded.
func (n *Normalizer) AliasCount() int {
	return len(n.stateAliases)
}

// Hits returns how many times each alias fired since construction.
func (n *Normalizer) Hits() map[string]int {
	out := make(map[string]int, len(n.hits))
	for k, v := range n.hits {
		out[k] = v
	}
	return out
}

// State canonicalizes a state name: trim, then exact alias lookup. Unknown
// states pass through trimmed but otherwise unchanged; canonical names are
// never title-cased because they contain lowercase conjunctions
// ("Dadra and Nagar Haveli and Daman and Diu").
func (n *Normalizer) State(raw string) string {
	s := strings.TrimSpace(raw)
	if canonical, ok := n.stateAliases[s]; ok {
		n.hits[s]++
		return canonical
	}
	return s
}

// District canonicalizes a district name: trim, collapse internal
// whitespace, then title-case.
func (n *Normalizer) District(raw string) string {
	d := strings.Join(strings.Fields(raw), " ")
	return titleCase(d)
}

// Record normalizes the geography of a transaction record in place. Rows
// whose state, district or pincode carry the sentinel placeholder, or whose
// pincode is not a 6-digit code, fail with ErrUnresolvedGeography.
func (n *Normalizer) Record(rec *model.TransactionRecord) error {
	state := n.State(rec.State)
	district := n.District(rec.District)
	pincode := strings.TrimSpace(rec.Pincode)

	if state == SentinelCode || district == SentinelCode || !ValidPincode(pincode) {
		return merry.Append(ErrUnresolvedGeography,
			fmt.Sprintf("state=%q district=%q pincode=%q", rec.State, rec.District, rec.Pincode))
	}

	rec.State = state
	rec.District = district
	rec.Pincode = pincode
	return nil
}

// ValidPincode reports whether p is a 6-digit code other than the
// unresolved placeholder.
func ValidPincode(p string) bool {
	if len(p) != 6 || p == SentinelCode {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// titleCase uppercases every letter that follows a non-letter and
// lowercases the rest, so "raja annamalai puram" becomes "Raja Annamalai
// Puram" and "24-parganas" becomes "24-Parganas".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
