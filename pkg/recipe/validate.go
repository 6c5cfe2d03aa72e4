package recipe

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
	"github.com/relvacode/iso8601"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/tree"
)

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()

	enLocale := en.New()
	enTranslator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(fmt.Errorf("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, enTranslator); err != nil {
		panic(fmt.Errorf("translator was not registered: %w", err))
	}

	if err := validate.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := iso8601.ParseString(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}

	// Use YAML field names in error messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return validate, enTranslator
}

// Validate checks field constraints, date formats and the shape of rules.
// All problems are reported together.
func (r *Recipe) Validate() error {
	var errs []error

	validate, translator := newValidator()
	if err := validate.Struct(r); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return errors.WrapValidation("recipe", err)
		}
		for _, e := range validationErrs {
			field := strings.TrimPrefix(e.Namespace(), "Recipe.")
			errs = append(errs, errors.NewValidationError(field, e.Value(), e.Translate(translator)))
		}
	}

	// Map values are not reached by dive,keys,...,endkeys.
	for _, extension := range slices.Sorted(maps.Keys(r.Formats)) {
		if err := validate.Struct(r.Formats[extension]); err != nil {
			var validationErrs validator.ValidationErrors
			if !errors.As(err, &validationErrs) {
				return errors.WrapValidation("formats["+extension+"]", err)
			}
			for _, e := range validationErrs {
				field := "formats[" + extension + "]." + e.Field()
				errs = append(errs, errors.NewValidationError(field, e.Value(), e.Translate(translator)))
			}
		}
	}

	for i, spec := range r.Rules {
		if err := spec.validate(); err != nil {
			errs = append(errs, errors.NewValidationError(fmt.Sprintf("rules[%d]", i), spec, err.Error()))
		}
	}
	for name, override := range r.Files {
		if override.Name != "" && strings.ContainsAny(override.Name, `/\`) {
			errs = append(errs, errors.NewValidationError("files["+name+"].name", override.Name,
				"must not contain path separators"))
		}
	}
	return errors.Join(errs...)
}

func (s RuleSpec) validate() error {
	set := 0
	for _, value := range []string{s.Skip, s.Rename, s.RenameExtension} {
		if value != "" {
			set++
		}
	}
	switch {
	case set != 1:
		return errors.New("exactly one of skip, rename and rename_extension must be set")
	case s.Skip != "" && s.To != nil:
		return errors.New("skip does not take a 'to' value")
	case s.Skip == "" && s.To == nil:
		return errors.New("renames require a 'to' value")
	case s.RenameExtension != "" && tree.Suffix("x"+s.RenameExtension) != s.RenameExtension:
		return fmt.Errorf("%q is not a file extension", s.RenameExtension)
	}
	return nil
}
