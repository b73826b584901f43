package drafts

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/odyssey-erp/catalog/internal/shared"
)

// Mode selects the rule set applied to an Input.
type Mode int

const (
	// ModeCreate requires every business field.
	ModeCreate Mode = iota
	// ModeUpdate validates only the fields present in the request.
	ModeUpdate
)

var ruleSets = map[Mode]map[string]string{
	ModeCreate: {
		"Name":         "required,notblank,max=255",
		"Manufacturer": "required,notblank,max=255",
		"MRP":          "required",
		"SalesPrice":   "required",
		"CategoryID":   "required,gt=0",
	},
	ModeUpdate: {
		"Name":         "omitempty,notblank,max=255",
		"Manufacturer": "omitempty,notblank,max=255",
		"CategoryID":   "omitempty,gt=0",
	},
}

var fieldNames = map[string]string{
	"Name":         "name",
	"Manufacturer": "manufacturer",
	"MRP":          "mrp",
	"SalesPrice":   "sales_price",
	"CategoryID":   "category_id",
}

var modeValidators = func() map[Mode]*validator.Validate {
	out := make(map[Mode]*validator.Validate, len(ruleSets))
	for mode, rules := range ruleSets {
		v := validator.New(validator.WithRequiredStructEnabled())
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
		v.RegisterStructValidationMapRules(rules, Input{})
		out[mode] = v
	}
	return out
}()

// ValidateFor checks in against the rule set of mode. Cross-field price rules
// need the stored values on update, so they run separately via checkPrices.
func ValidateFor(mode Mode, in Input) error {
	v, ok := modeValidators[mode]
	if !ok {
		return errors.New("drafts: unknown validation mode")
	}
	fields := make(map[string]string)
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			name := fieldNames[fe.StructField()]
			if name == "" {
				name = strings.ToLower(fe.StructField())
			}
			fields[name] = describe(name, fe)
		}
	}
	checkAmount(fields, "mrp", in.MRP)
	checkAmount(fields, "sales_price", in.SalesPrice)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkAmount(fields map[string]string, name string, amount *shared.Money) {
	switch {
	case amount == nil:
	case *amount < 0:
		fields[name] = ErrNegativePrice.Error()
	case amount.Exceeds():
		fields[name] = ErrPriceTooLarge.Error()
	}
}

func checkPrices(mrp, salesPrice shared.Money) error {
	if salesPrice > mrp {
		return newValidationError("sales_price", ErrPriceAboveMRP)
	}
	return nil
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "The " + field + " field is required."
	case "max":
		return "The " + field + " field must not be greater than " + fe.Param() + " characters."
	case "gt":
		return "The " + field + " field must reference an existing record."
	default:
		return "The " + field + " field is invalid."
	}
}
