// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("asset_category", validateAssetCategory)
		_ = v.RegisterValidation("check_result", validateCheckResult)
		_ = v.RegisterValidation("dividend_frequency", validateDividendFrequency)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
	}
}

func validateAssetCategory(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "real_estate", "fine_art", "commodity", "collectible", "private_equity":
		return true
	}
	return false
}

func validateCheckResult(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "passed", "failed", "pending":
		return true
	}
	return false
}

func validateDividendFrequency(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "monthly", "quarterly", "annual":
		return true
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "purchase", "sale", "dividend":
		return true
	}
	return false
}
