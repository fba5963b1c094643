package ledgerdelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// ValidIdentifier validates whether the value can name an account.
var ValidIdentifier validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return domain.IsValidIdentifier(s)
	}

	return false
}
