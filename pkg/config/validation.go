package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s failed validation (%s)", e.Field, e.Tag)
}

// ValidationErrors collects every failure from a single Validate call.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("config validation failed: %s", strings.Join(messages, "; "))
}

// Validator wraps a struct-tag validator for Config.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the struct-tag rules registered.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate runs struct-tag validation plus the cross-field rules that
// validator tags cannot express (weight sums, contract/judge consistency).
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return ValidationErrors{{Field: "config", Tag: "required", Message: "config is nil"}}
	}

	var errs ValidationErrors

	if err := v.validate.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				errs = append(errs, ValidationError{
					Field: fe.Namespace(),
					Tag:   fe.Tag(),
					Value: fe.Value(),
				})
			}
		} else {
			errs = append(errs, ValidationError{Message: err.Error()})
		}
	}

	errs = append(errs, v.customRules(cfg)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) customRules(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	if sum := cfg.Retrieval.Weights.Sum(); sum > 0 && (sum < 0.999 || sum > 1.001) {
		errs = append(errs, ValidationError{
			Field:   "Retrieval.Weights",
			Tag:     "sum_to_one",
			Value:   sum,
			Message: fmt.Sprintf("retrieval ranking weights must sum to 1.0, got %.3f", sum),
		})
	}

	if sum := cfg.Promoter.UtilityWeights.Sum(); sum > 0 && (sum < 0.999 || sum > 1.001) {
		errs = append(errs, ValidationError{
			Field:   "Promoter.UtilityWeights",
			Tag:     "sum_to_one",
			Value:   sum,
			Message: fmt.Sprintf("promoter utility weights must sum to 1.0, got %.3f", sum),
		})
	}

	if cfg.Referee.JudgeEnabled && cfg.Referee.JudgeModelID == "" {
		errs = append(errs, ValidationError{
			Field:   "Referee.JudgeModelID",
			Tag:     "required_if",
			Message: "judge_model_id is required when judge_enabled is true",
		})
	}

	if cfg.StepLoop.ValidationRetryCap > cfg.StepLoop.MaxSteps {
		errs = append(errs, ValidationError{
			Field:   "StepLoop.ValidationRetryCap",
			Tag:     "lte_max_steps",
			Message: "validation_retry_cap cannot exceed max_steps",
		})
	}

	return errs
}

// Validate is a convenience wrapper equivalent to NewValidator().Validate(c).
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}
