package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ssuji15/kennel/model"
)

// Container-internal service ports the catalog classifies image types by.
const (
	NotebookPort = 8888
	StudioPort   = 8787
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Catalog is the static table of launchable image types plus membership sets
// derived once at construction. Read-only after New.
type Catalog struct {
	specs    map[string]model.ImageSpec
	byImage  map[string]string
	notebook map[string]bool
	studio   map[string]bool
	gpu      map[string]bool
}

// Class is the derived membership of one image type.
type Class struct {
	Notebook    bool
	Studio      bool
	GPU         bool
	Environment string
}

// Builtin returns the default image table: the two general dev environments
// with dynamically published ports, and the fixed-port exclusive gpu boxes.
func Builtin() *Catalog {
	c, err := New([]model.ImageSpec{
		{
			Key:         "python",
			Image:       "eri_dev:latest",
			Environment: EnvDev,
			AutoRemove:  true,
			Ports: map[int]model.PortPolicy{
				NotebookPort: {Mode: model.PortAuto, RangeStart: 8890, RangeEnd: 9000},
			},
		},
		{
			Key:         "python-r",
			Image:       "eri_dev_p_r:latest",
			Environment: EnvDev,
			AutoRemove:  true,
			Ports: map[int]model.PortPolicy{
				NotebookPort: {Mode: model.PortAuto, RangeStart: 8890, RangeEnd: 9000},
				StudioPort:   {Mode: model.PortAuto, RangeStart: 8789, RangeEnd: 8799},
			},
		},
		{
			Key:         "gpu-dev",
			Image:       "eri_dev:latest",
			Environment: EnvDev,
			GPUs:        1,
			Exclusive:   true,
			AutoRemove:  true,
			Ports: map[int]model.PortPolicy{
				NotebookPort: {Mode: model.PortFixed, Port: 8889},
			},
		},
		{
			Key:         "gpu-prod",
			Image:       "eri_prod:latest",
			Environment: EnvProd,
			GPUs:        1,
			Exclusive:   true,
			AutoRemove:  true,
			Ports: map[int]model.PortPolicy{
				NotebookPort: {Mode: model.PortFixed, Port: NotebookPort},
			},
		},
	})
	if err != nil {
		// the built-in table is validated by tests
		panic(err)
	}
	return c
}

type catalogFile struct {
	Images []model.ImageSpec `yaml:"images"`
}

// Load reads an image table from a yaml file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	return New(f.Images)
}

// New validates the given specs and builds the derived sets.
func New(specs []model.ImageSpec) (*Catalog, error) {
	c := &Catalog{
		specs:    make(map[string]model.ImageSpec, len(specs)),
		byImage:  make(map[string]string, len(specs)),
		notebook: make(map[string]bool),
		studio:   make(map[string]bool),
		gpu:      make(map[string]bool),
	}

	for _, s := range specs {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, ok := c.specs[s.Key]; ok {
			return nil, fmt.Errorf("duplicate image type %q", s.Key)
		}
		c.specs[s.Key] = s.Clone()
		if _, ok := c.byImage[s.Image]; !ok {
			c.byImage[s.Image] = s.Key
		}
		if _, ok := s.Ports[NotebookPort]; ok {
			c.notebook[s.Key] = true
		}
		if _, ok := s.Ports[StudioPort]; ok {
			c.studio[s.Key] = true
		}
		if s.GPUs > 0 {
			c.gpu[s.Key] = true
		}
	}
	return c, nil
}

func validate(s model.ImageSpec) error {
	if s.Key == "" {
		return fmt.Errorf("image type with empty key")
	}
	if s.Image == "" {
		return fmt.Errorf("image type %q has no image reference", s.Key)
	}
	if s.Environment != EnvDev && s.Environment != EnvProd {
		return fmt.Errorf("image type %q has invalid environment %q", s.Key, s.Environment)
	}
	if s.GPUs < 0 {
		return fmt.Errorf("image type %q has negative gpu count", s.Key)
	}
	for internal, p := range s.Ports {
		if internal <= 0 {
			return fmt.Errorf("image type %q has invalid container port %d", s.Key, internal)
		}
		switch p.Mode {
		case model.PortFixed:
			if p.Port <= 0 {
				return fmt.Errorf("image type %q has invalid fixed port for %d", s.Key, internal)
			}
		case model.PortAuto:
			if p.RangeStart <= 0 || p.RangeEnd < p.RangeStart {
				return fmt.Errorf("image type %q has invalid auto port range for %d", s.Key, internal)
			}
		default:
			return fmt.Errorf("image type %q has unknown port mode %q", s.Key, p.Mode)
		}
	}
	return nil
}

// Lookup returns a deep copy of the named entry.
func (c *Catalog) Lookup(key string) (model.ImageSpec, error) {
	s, ok := c.specs[key]
	if !ok {
		return model.ImageSpec{}, &model.UnknownImageTypeError{Type: key}
	}
	return s.Clone(), nil
}

// TypeForImage reverse-looks-up the image type owning an image reference.
func (c *Catalog) TypeForImage(image string) (string, bool) {
	key, ok := c.byImage[image]
	return key, ok
}

// ClassOf reports the derived membership flags for an image type. The zero
// Class is returned for unknown keys.
func (c *Catalog) ClassOf(key string) Class {
	s, ok := c.specs[key]
	if !ok {
		return Class{}
	}
	return Class{
		Notebook:    c.notebook[key],
		Studio:      c.studio[key],
		GPU:         c.gpu[key],
		Environment: s.Environment,
	}
}

// Keys lists all image type keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.specs))
	for k := range c.specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
