package store

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/normalize"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func entityValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("strength", func(fl validator.FieldLevel) bool {
			return normalize.ValidStrength(fl.Field().String())
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks every entity against its field rules and rejects duplicate
// keys. All problems are reported together.
func Validate(entities []model.Entity) error {
	var errs []string
	seen := make(map[string]int, len(entities))

	for i, e := range entities {
		label := fmt.Sprintf("row %d (%s)", i+1, e.Key)
		if err := entityValidator().Struct(e); err != nil {
			var verrs validator.ValidationErrors
			if eris.As(err, &verrs) {
				for _, fe := range verrs {
					errs = append(errs, fmt.Sprintf("%s: %s", label, describe(fe)))
				}
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", label, err))
			}
		}

		key := model.NormalizeKey(e.Key)
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			errs = append(errs, fmt.Sprintf("%s: duplicate entity_key (first seen at row %d)", label, first))
			continue
		}
		seen[key] = i + 1
	}

	if len(errs) > 0 {
		return eris.Errorf("store: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "strength":
		return fmt.Sprintf("%s %q is not a known strength label", fe.Field(), fe.Value())
	case "finite":
		return fmt.Sprintf("%s must be a finite number", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
