package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Grid Grid `yaml:"grid"`

	// Display-only: what the front-end charges per cube, in lamports.
	// The server never verifies payment.
	PricePerCubeLamports uint64 `yaml:"price_per_cube_lamports"`

	Session Session `yaml:"session"`
	RPC     RPC     `yaml:"rpc"`
}

type Grid struct {
	XDim int `yaml:"x_dim"`
	YDim int `yaml:"y_dim"`
	ZDim int `yaml:"z_dim"`
}

type Session struct {
	// MaxQueue is the per-connection outbound frame buffer. A viewer that
	// falls further behind starts losing oldest frames.
	MaxQueue int `yaml:"max_queue"`
}

type RPC struct {
	// UpstreamURL enables the /rpc passthrough when non-empty. The URL is
	// expected to carry the provider API key.
	UpstreamURL string `yaml:"upstream_url"`
}

func Defaults() Tuning {
	return Tuning{
		Grid:                 Grid{XDim: 10, YDim: 10, ZDim: 10},
		PricePerCubeLamports: 10_000_000,
		Session:              Session{MaxQueue: 64},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.normalize()
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) normalize() {
	d := Defaults()
	if t.Grid.XDim == 0 {
		t.Grid.XDim = d.Grid.XDim
	}
	if t.Grid.YDim == 0 {
		t.Grid.YDim = d.Grid.YDim
	}
	if t.Grid.ZDim == 0 {
		t.Grid.ZDim = d.Grid.ZDim
	}
	if t.Session.MaxQueue <= 0 {
		t.Session.MaxQueue = d.Session.MaxQueue
	}
	if t.Session.MaxQueue > 1024 {
		t.Session.MaxQueue = 1024
	}
}

func (t Tuning) validate() error {
	if t.Grid.XDim < 1 || t.Grid.YDim < 1 || t.Grid.ZDim < 1 {
		return fmt.Errorf("grid dimensions must be >= 1, got %dx%dx%d", t.Grid.XDim, t.Grid.YDim, t.Grid.ZDim)
	}
	return nil
}
