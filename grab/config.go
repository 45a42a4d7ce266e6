package grab

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// SolverKind selects the deformation solver used during a grab.
type SolverKind int

const (
	// SolverLinear is the factorized graph Laplacian solver.
	SolverLinear SolverKind = iota
	// SolverXPBD is the extended position based dynamics solver.
	SolverXPBD
)

func (k SolverKind) String() string {
	switch k {
	case SolverLinear:
		return "linear"
	case SolverXPBD:
		return "xpbd"
	}
	return fmt.Sprintf("SolverKind(%d)", int(k))
}

// ParseSolverKind parses the names returned by SolverKind.String.
func ParseSolverKind(s string) (SolverKind, error) {
	switch s {
	case "linear", "laplacian":
		return SolverLinear, nil
	case "xpbd", "pbd":
		return SolverXPBD, nil
	}
	return 0, fmt.Errorf("unknown solver %q", s)
}

func (k *SolverKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseSolverKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k SolverKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// Config holds the tunable parameters of a Grabber.
type Config struct {
	// Radius is the grab search radius. Vertices within Radius of a handle
	// are solved for, the first vertex outside along each path is pinned.
	// It also normalizes the XPBD compliance falloff.
	Radius float64 `yaml:"radius"`
	// Solver chosen at the start of each grab.
	Solver SolverKind `yaml:"solver"`
	// Iterations is the number of XPBD constraint projection passes per frame.
	Iterations int `yaml:"iterations"`
	// Timestep used when UpdateGrab is called with a non positive dt.
	Timestep float64 `yaml:"timestep"`
	// ComplianceMin and ComplianceMax bound the distance constraint
	// compliance. Edges touching a handle get ComplianceMin, edges a Radius
	// or more away get ComplianceMax.
	ComplianceMin float64 `yaml:"compliance_min"`
	ComplianceMax float64 `yaml:"compliance_max"`
	// VolumeConstraints enables tetrahedron volume preservation in XPBD.
	VolumeConstraints bool    `yaml:"volume_constraints"`
	VolumeCompliance  float64 `yaml:"volume_compliance"`
	// PreserveDetail makes the linear solver keep the rest shape's
	// Laplacian (differential coordinates) for free vertices. When false
	// free vertices are pulled to the average of their neighbors, the plain
	// harmonic grab.
	PreserveDetail bool `yaml:"preserve_detail"`
	// FlipY negates the mouse Y coordinate after conversion to NDC, for
	// hosts whose screen Y axis points opposite to clip space Y.
	FlipY bool `yaml:"flip_y"`
}

// DefaultConfig returns the parameters used by the interactive tool.
func DefaultConfig() Config {
	return Config{
		Radius:            0.5,
		Solver:            SolverLinear,
		Iterations:        16,
		Timestep:          0.016,
		ComplianceMin:     1e-6,
		ComplianceMax:     1e-3,
		VolumeConstraints: false,
		VolumeCompliance:  0,
		PreserveDetail:    true,
	}
}

// Validate returns an error describing the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case !(c.Radius > 0):
		return errors.New("radius must be positive")
	case c.Solver != SolverLinear && c.Solver != SolverXPBD:
		return fmt.Errorf("invalid solver %v", c.Solver)
	case c.Iterations <= 0:
		return errors.New("iterations must be positive")
	case !(c.Timestep > 0):
		return errors.New("timestep must be positive")
	case c.ComplianceMin < 0 || c.ComplianceMax < c.ComplianceMin:
		return errors.New("compliance bounds must satisfy 0 <= min <= max")
	case c.VolumeCompliance < 0:
		return errors.New("volume compliance must be non negative")
	}
	return nil
}

// LoadConfig decodes a YAML document over DefaultConfig. Fields missing from
// the document keep their default value. The result is validated.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding grab config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid grab config: %w", err)
	}
	return cfg, nil
}
