package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed libet.toml
var defaultConfigData []byte

// Config represents the entire TOML configuration structure
type Config struct {
	Default     string             `toml:"default"`
	DataDir     string             `toml:"data_dir"`
	ConfirmKeys []string           `toml:"confirm_keys"`
	QuitKeys    []string           `toml:"quit_keys"`
	MoveKeys    map[string]float64 `toml:"move_keys"`
	Resolution  Resolution         `toml:"resolution"`
	Display     Display            `toml:"display"`
	Trigger     Trigger            `toml:"trigger"`
	MQTT        MQTT               `toml:"mqtt"`
	Profile     []Profile          `toml:"profile"`

	// Path of the file the configuration was loaded from
	Path string `toml:"-"`
}

// Resolution of the recorded measurements
type Resolution struct {
	Angle float64       `toml:"angle"` // degrees
	Time  time.Duration `toml:"time"`
}

// Display timing parameters
type Display struct {
	RefreshHz    float64 `toml:"refresh_hz"`
	FrameSamples int     `toml:"frame_samples"`
}

// Trigger describes the optional trigger device
type Trigger struct {
	Driver string        `toml:"driver"`
	Port   string        `toml:"port"`
	Baud   int           `toml:"baud"`
	Pulse  time.Duration `toml:"pulse"`
}

// MQTT describes the optional broker receiving a copy of every trial
type MQTT struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
}

// Profile represents one experimental paradigm
type Profile struct {
	Name                string        `toml:"name"`
	FilePrefix          string        `toml:"file_prefix"`
	FullRotation        time.Duration `toml:"full_rotation"`
	HoldTime            time.Duration `toml:"hold_time"`
	BlockBreak          time.Duration `toml:"block_break"`
	ISI                 []int         `toml:"isi"`       // seconds, [min, max]
	DotDelay            []int         `toml:"dot_delay"` // frames, [min, max]
	TrainingTrials      int           `toml:"training_trials"`
	BlockTrials         int           `toml:"block_trials"`
	TrainingRepetitions int           `toml:"training_repetitions"`
	BlockRepetitions    int           `toml:"block_repetitions"`
	TrainingConditions  []string      `toml:"training_conditions"`
	ArmAfterDegrees     float64       `toml:"arm_after_degrees"`
	Endless             bool          `toml:"endless"`
	ResetAngleOnMiss    bool          `toml:"reset_angle_on_miss"`
	Question            string        `toml:"question"`
	MissedText          string        `toml:"missed_text"`
	Condition           []Condition   `toml:"condition"`
}

// Condition represents one block type of a profile
type Condition struct {
	Name        string       `toml:"name"`
	Keys        []string     `toml:"keys"`
	StartCode   uint16       `toml:"start_code"`
	PressCode   uint16       `toml:"press_code"`
	Instruction string       `toml:"instruction"`
	Preparation *Preparation `toml:"preparation"`
}

// Preparation is a cue shown before every trial of a condition
type Preparation struct {
	Text     string        `toml:"text"`
	Duration time.Duration `toml:"duration"`
}

// DefaultPath determines the config file path based on the operating system
func DefaultPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "libet")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".libet"), nil
}

// Initialize returns the default config file path.
// If the config file doesn't exist, it creates it from the embedded default.
func Initialize() (string, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}
		if err := os.WriteFile(configPath, defaultConfigData, 0644); err != nil {
			return "", fmt.Errorf("failed to create default config file at %s: %w", configPath, err)
		}
	}
	return configPath, nil
}

// Default parses the embedded configuration.
func Default() (*Config, error) {
	var conf Config
	if _, err := toml.Decode(string(defaultConfigData), &conf); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Load parses and validates the configuration file.
// An empty path means the per-user file, created on first use.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Initialize()
		if err != nil {
			return nil, err
		}
	}

	var conf Config
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}
	conf.Path = path

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &conf, nil
}

// Validate checks global settings and every profile.
func (c *Config) Validate() error {
	if c.Default == "" {
		return errors.New("`default` key is missing or empty in config")
	}
	if len(c.ConfirmKeys) == 0 {
		return errors.New("confirm_keys must not be empty")
	}
	if len(c.QuitKeys) == 0 {
		return errors.New("quit_keys must not be empty")
	}
	if len(c.MoveKeys) == 0 {
		return errors.New("move_keys must not be empty")
	}
	if c.Resolution.Angle <= 0 || c.Resolution.Angle > 1 {
		return fmt.Errorf("invalid angle resolution: %g (must be in (0, 1])", c.Resolution.Angle)
	}
	if steps := 1 / c.Resolution.Angle; math.Abs(steps-math.Round(steps)) > 1e-6 {
		return fmt.Errorf("invalid angle resolution: %g (must divide one degree evenly)", c.Resolution.Angle)
	}
	if c.Resolution.Time <= 0 {
		return fmt.Errorf("invalid time resolution: %v (must be positive)", c.Resolution.Time)
	}
	if c.Display.RefreshHz <= 0 {
		return fmt.Errorf("invalid refresh_hz: %g (must be positive)", c.Display.RefreshHz)
	}
	if c.Display.FrameSamples <= 0 {
		return fmt.Errorf("invalid frame_samples: %d (must be positive)", c.Display.FrameSamples)
	}
	if c.Trigger.Port != "" && c.Trigger.Baud <= 0 {
		return fmt.Errorf("invalid trigger baud: %d (must be positive)", c.Trigger.Baud)
	}

	// Profile names must be unique, and the default one must exist
	seen := make(map[string]bool)
	for i := range c.Profile {
		p := &c.Profile[i]
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.validate(); err != nil {
			return err
		}
	}
	if !seen[c.Default] {
		return fmt.Errorf("default profile %q not found in profile array", c.Default)
	}
	return nil
}

func (p *Profile) validate() error {
	if p.Name == "" {
		return errors.New("profile has no name")
	}
	if p.FullRotation <= 0 {
		return fmt.Errorf("profile %q has invalid full_rotation: %v (must be positive)", p.Name, p.FullRotation)
	}
	if p.HoldTime < 0 {
		return fmt.Errorf("profile %q has invalid hold_time: %v", p.Name, p.HoldTime)
	}
	if p.BlockBreak < 0 {
		return fmt.Errorf("profile %q has invalid block_break: %v", p.Name, p.BlockBreak)
	}
	if err := checkRange(p.ISI); err != nil {
		return fmt.Errorf("profile %q has invalid isi: %w", p.Name, err)
	}
	if err := checkRange(p.DotDelay); err != nil {
		return fmt.Errorf("profile %q has invalid dot_delay: %w", p.Name, err)
	}
	if p.TrainingTrials < 0 {
		return fmt.Errorf("profile %q has invalid training_trials: %d", p.Name, p.TrainingTrials)
	}
	if p.BlockTrials <= 0 {
		return fmt.Errorf("profile %q has invalid block_trials: %d (must be positive)", p.Name, p.BlockTrials)
	}
	if p.BlockRepetitions <= 0 {
		return fmt.Errorf("profile %q has invalid block_repetitions: %d (must be positive)", p.Name, p.BlockRepetitions)
	}
	if p.TrainingRepetitions < 0 {
		return fmt.Errorf("profile %q has invalid training_repetitions: %d", p.Name, p.TrainingRepetitions)
	}
	if p.ArmAfterDegrees < 0 || p.ArmAfterDegrees >= 360 {
		return fmt.Errorf("profile %q has invalid arm_after_degrees: %g (must be in [0, 360))", p.Name, p.ArmAfterDegrees)
	}
	if len(p.Condition) == 0 {
		return fmt.Errorf("profile %q has no conditions listed", p.Name)
	}

	names := make(map[string]bool)
	for _, c := range p.Condition {
		if c.Name == "" {
			return fmt.Errorf("profile %q has a condition without name", p.Name)
		}
		if names[c.Name] {
			return fmt.Errorf("profile %q has duplicate condition %q", p.Name, c.Name)
		}
		names[c.Name] = true
		if len(c.Keys) == 0 {
			return fmt.Errorf("condition %q has no qualifying keys", c.Name)
		}
		if c.Preparation != nil && c.Preparation.Duration < 0 {
			return fmt.Errorf("condition %q has negative preparation duration", c.Name)
		}
	}

	// Verify each training condition exists in condition array
	for _, name := range p.TrainingConditions {
		if !names[name] {
			return fmt.Errorf("training condition %q of profile %q not found in condition array", name, p.Name)
		}
	}
	return nil
}

// checkRange verifies an inclusive [min, max] pair of non-negative integers.
func checkRange(r []int) error {
	if len(r) != 2 {
		return fmt.Errorf("expected [min, max], got %v", r)
	}
	if r[0] < 0 || r[1] < r[0] {
		return fmt.Errorf("bad range [%d, %d]", r[0], r[1])
	}
	return nil
}

// GetProfile returns the profile with a given name.
// Empty name selects the default profile.
func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.Default
	}
	for i := range c.Profile {
		if c.Profile[i].Name == name {
			return &c.Profile[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found in configuration", name)
}

// ProfileNames lists profiles in file order.
func (c *Config) ProfileNames() []string {
	names := make([]string, len(c.Profile))
	for i := range c.Profile {
		names[i] = c.Profile[i].Name
	}
	return names
}

// GetCondition returns the condition with a given name.
func (p *Profile) GetCondition(name string) (*Condition, error) {
	for i := range p.Condition {
		if p.Condition[i].Name == name {
			return &p.Condition[i], nil
		}
	}
	return nil, fmt.Errorf("condition %q not found in profile %q", name, p.Name)
}

// Training returns conditions used for the training part.
// Without an explicit list, every condition is trained.
func (p *Profile) Training() []*Condition {
	var list []*Condition
	if len(p.TrainingConditions) == 0 {
		for i := range p.Condition {
			list = append(list, &p.Condition[i])
		}
		return list
	}
	for _, name := range p.TrainingConditions {
		c, err := p.GetCondition(name)
		if err == nil {
			list = append(list, c)
		}
	}
	return list
}
