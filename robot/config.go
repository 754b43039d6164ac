package robot

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v2"
)

const DefaultPositionRate = 10 // Hz

type AxisLimit struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// WorkspaceLimits are the inclusive coordinate bounds inside which move
// commands are accepted.
type WorkspaceLimits struct {
	X AxisLimit `yaml:"x"`
	Y AxisLimit `yaml:"y"`
	Z AxisLimit `yaml:"z"`
}

// Check validates a target position against the limits. The returned error
// identifies the first offending axis.
func (w WorkspaceLimits) Check(target mgl64.Vec3) error {
	axes := []struct {
		name  string
		limit AxisLimit
		value float64
	}{
		{"x", w.X, target.X()},
		{"y", w.Y, target.Y()},
		{"z", w.Z, target.Z()},
	}

	for _, a := range axes {
		if a.value < a.limit.Min || a.value > a.limit.Max {
			return &BoundsError{
				Axis:  a.name,
				Value: a.value,
				Min:   a.limit.Min,
				Max:   a.limit.Max,
			}
		}
	}
	return nil
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type Config struct {
	Serial       SerialConfig    `yaml:"serial"`
	Workspace    WorkspaceLimits `yaml:"workspace"`
	Home         []float64       `yaml:"home,flow"`
	PositionRate int             `yaml:"position_rate"`
	Firmware     string          `yaml:"firmware"`
}

// HomeVec returns the configured home position as a vector.
func (c Config) HomeVec() mgl64.Vec3 {
	return mgl64.Vec3{c.Home[0], c.Home[1], c.Home[2]}
}

// LoadConfig reads and validates a robot configuration file.
func LoadConfig(filename string) (config Config, err error) {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("unable to read config file: %w", err)
	}

	err = yaml.Unmarshal(yamlFile, &config)
	if err != nil {
		return config, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, config.validate()
}

func (c *Config) validate() error {
	if len(c.Home) == 0 {
		c.Home = []float64{0, 0, 2.5}
	}
	if len(c.Home) != 3 {
		return fmt.Errorf("home must have exactly 3 coordinates, got %d", len(c.Home))
	}
	if c.PositionRate <= 0 {
		c.PositionRate = DefaultPositionRate
	}
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = 115200
	}
	if err := c.Workspace.Check(c.HomeVec()); err != nil {
		return fmt.Errorf("home position outside workspace: %w", err)
	}
	return nil
}
