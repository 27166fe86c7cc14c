package config

import (
	"errors"
	"fmt"
)

// Validate checks the resolved configuration for obvious mistakes before
// any command runs.
func (c *Config) Validate() error {
	var errs []error

	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid output format %q (must be text or json)", c.OutputFormat))
	}
	if c.ModelsDir == "" {
		errs = append(errs, errors.New("models_dir must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.StatePath == "" {
		errs = append(errs, errors.New("state_path must not be empty"))
	}
	if c.Sampling.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("sampling.iterations must be positive, got %d", c.Sampling.Iterations))
	}
	if c.Sampling.BurnIn < 0 {
		errs = append(errs, fmt.Errorf("sampling.burnin must not be negative, got %d", c.Sampling.BurnIn))
	}
	if c.Sampling.BurnIn >= c.Sampling.Iterations {
		errs = append(errs, fmt.Errorf("sampling.burnin (%d) must be less than sampling.iterations (%d)", c.Sampling.BurnIn, c.Sampling.Iterations))
	}
	if c.Sampling.Chains <= 0 {
		errs = append(errs, fmt.Errorf("sampling.chains must be positive, got %d", c.Sampling.Chains))
	}
	if c.Sampling.Thin <= 0 {
		errs = append(errs, fmt.Errorf("sampling.thin must be positive, got %d", c.Sampling.Thin))
	}

	return errors.Join(errs...)
}
