package entities

import (
	"fmt"
	"math"
	"strconv"

	domainerrors "lexmatch.backend/internal/domain/errors"
)

// FeeModelType discriminates the fee model variants
type FeeModelType string

const (
	FeeModelSuccess FeeModelType = "success"
	FeeModelFixed   FeeModelType = "fixed"
	FeeModelHourly  FeeModelType = "hourly"
)

// FeeModel is a tagged union: exactly one of Percent, Value or Rate is set,
// selected by Type.
type FeeModel struct {
	Type    FeeModelType `json:"type"`
	Percent *float64     `json:"percent,omitempty"`
	Value   *float64     `json:"value,omitempty"`
	Rate    *float64     `json:"rate,omitempty"`
}

// SuccessFee builds a success-fee model (percentage of the award)
func SuccessFee(percent float64) FeeModel {
	return FeeModel{Type: FeeModelSuccess, Percent: &percent}
}

// FixedFee builds a fixed-fee model
func FixedFee(value float64) FeeModel {
	return FeeModel{Type: FeeModelFixed, Value: &value}
}

// HourlyFee builds an hourly-rate model
func HourlyFee(rate float64) FeeModel {
	return FeeModel{Type: FeeModelHourly, Rate: &rate}
}

// Validate checks the fee model is well formed. It returns nil or a
// validation *AppError; it never corrects the input.
func (f FeeModel) Validate() error {
	switch f.Type {
	case FeeModelSuccess:
		if f.Value != nil || f.Rate != nil {
			return domainerrors.Validation("success fee model must only set percent")
		}
		if f.Percent == nil || !isNumeric(*f.Percent) {
			return domainerrors.Validation("success fee model requires a numeric percent")
		}
		if *f.Percent <= 0 || *f.Percent > 100 {
			return domainerrors.Validation("success fee percent must be greater than 0 and at most 100")
		}
	case FeeModelFixed:
		if f.Percent != nil || f.Rate != nil {
			return domainerrors.Validation("fixed fee model must only set value")
		}
		if f.Value == nil || !isNumeric(*f.Value) {
			return domainerrors.Validation("fixed fee model requires a numeric value")
		}
		if *f.Value <= 0 {
			return domainerrors.Validation("fixed fee value must be greater than 0")
		}
	case FeeModelHourly:
		if f.Percent != nil || f.Value != nil {
			return domainerrors.Validation("hourly fee model must only set rate")
		}
		if f.Rate == nil || !isNumeric(*f.Rate) {
			return domainerrors.Validation("hourly fee model requires a numeric rate")
		}
		if *f.Rate <= 0 {
			return domainerrors.Validation("hourly fee rate must be greater than 0")
		}
	default:
		return domainerrors.Validation("unknown fee model type")
	}
	return nil
}

// Amount returns the populated variant's number, or 0 when the model is malformed.
func (f FeeModel) Amount() float64 {
	switch f.Type {
	case FeeModelSuccess:
		if f.Percent != nil {
			return *f.Percent
		}
	case FeeModelFixed:
		if f.Value != nil {
			return *f.Value
		}
	case FeeModelHourly:
		if f.Rate != nil {
			return *f.Rate
		}
	}
	return 0
}

// Format renders the fee model for display. Malformed models render a
// fallback instead of failing.
func (f FeeModel) Format() string {
	if f.Validate() != nil {
		return "Fee model unavailable"
	}
	switch f.Type {
	case FeeModelSuccess:
		return fmt.Sprintf("%s%% of the award on success", strconv.FormatFloat(*f.Percent, 'f', -1, 64))
	case FeeModelFixed:
		return fmt.Sprintf("Fixed fee: %.2f", *f.Value)
	case FeeModelHourly:
		return fmt.Sprintf("Hourly rate: %.2f/h", *f.Rate)
	}
	return "Fee model unavailable"
}

func (f FeeModel) clone() FeeModel {
	out := FeeModel{Type: f.Type}
	if f.Percent != nil {
		v := *f.Percent
		out.Percent = &v
	}
	if f.Value != nil {
		v := *f.Value
		out.Value = &v
	}
	if f.Rate != nil {
		v := *f.Rate
		out.Rate = &v
	}
	return out
}

func isNumeric(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
