package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/uvdose/uvdose/pkg/types"
)

// ErrMalformed is returned when the specification document cannot be used.
// A missing file is malformed too: it never means "no systems".
var ErrMalformed = errors.New("catalog: malformed specification document")

// Catalog holds the operating limits of every system in the specification
// document. It is read once and never modified.
type Catalog struct {
	path   string
	ranges map[string]types.ParameterRanges
}

type document struct {
	SupportedSystems map[string]*systemSpec `json:"supported_systems"`
}

type systemSpec struct {
	OperationalLimits *struct {
		Flow *types.Range `json:"flow"`
		UVT  *types.Range `json:"uvt"`
	} `json:"operational_limits"`
}

// Load parses the specification document at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.path = path
	slog.Info("catalog: loaded", "path", path, "systems", len(c.ranges))
	return c, nil
}

// Parse builds a Catalog from the raw document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.SupportedSystems == nil {
		return nil, fmt.Errorf("%w: missing supported_systems", ErrMalformed)
	}

	c := &Catalog{ranges: make(map[string]types.ParameterRanges, len(doc.SupportedSystems))}
	for id, spec := range doc.SupportedSystems {
		if spec == nil || spec.OperationalLimits == nil {
			slog.Warn("catalog: system has no operational limits", "system", id)
			continue
		}
		lim := spec.OperationalLimits
		if lim.Flow == nil || lim.UVT == nil {
			return nil, fmt.Errorf("%w: %s: operational limits need flow and uvt", ErrMalformed, id)
		}
		if err := checkRange(*lim.Flow); err != nil {
			return nil, fmt.Errorf("%w: %s: flow: %w", ErrMalformed, id, err)
		}
		if err := checkRange(*lim.UVT); err != nil {
			return nil, fmt.Errorf("%w: %s: uvt: %w", ErrMalformed, id, err)
		}
		c.ranges[id] = types.ParameterRanges{Flow: *lim.Flow, UVT: *lim.UVT}
	}
	return c, nil
}

func checkRange(r types.Range) error {
	if r.Min > r.Max {
		return fmt.Errorf("min %g > max %g", r.Min, r.Max)
	}
	if r.Unit == "" {
		return errors.New("empty unit")
	}
	return nil
}

// RangesFor returns the operating limits of system.
func (c *Catalog) RangesFor(system string) (types.ParameterRanges, bool) {
	r, ok := c.ranges[system]
	return r, ok
}

// Systems returns the catalogued system identifiers, sorted.
func (c *Catalog) Systems() []string {
	out := make([]string, 0, len(c.ranges))
	for id := range c.ranges {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of catalogued systems.
func (c *Catalog) Len() int { return len(c.ranges) }

// Path returns the file the catalog was loaded from, if any.
func (c *Catalog) Path() string { return c.path }
