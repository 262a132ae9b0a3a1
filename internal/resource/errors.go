package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"account-service/internal/apperr"
)

// Invalid converts a validation failure into a Validation error listing every field message.
// Internal validator failures and nil pass through unchanged.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return apperr.Wrap(apperr.KindValidation, "Invalid input data. "+err.Error()+".", err)
	}
	keys := make([]string, 0, len(fields))
	for k, e := range fields {
		if e != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = k + ": " + fields[k].Error()
	}
	return apperr.Wrap(apperr.KindValidation, "Invalid input data. "+strings.Join(msgs, ". ")+".", err)
}

// Decode unmarshals a JSON request body into v. Unknown fields are ignored; an empty body decodes to v's zero value.
func Decode(body []byte, v any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.Wrap(apperr.KindValidation, fmt.Sprintf("Invalid input data. %s: must be a %s.", typeErr.Field, typeErr.Type), err)
		}
		return apperr.Wrap(apperr.KindValidation, "Invalid input data.", err)
	}
	return nil
}

// Duplicate reports a uniqueness violation on field. value may be empty when the backend does not expose it.
func Duplicate(field, value string, err error) error {
	msg := "Duplicate " + field + " value. Please use another value."
	if value != "" {
		msg = fmt.Sprintf("Duplicate %s value %q. Please use another value.", field, value)
	}
	return apperr.Wrap(apperr.KindDuplicate, msg, err)
}

func notFound(name string) error {
	return apperr.New(apperr.KindNotFound, "No "+name+" with that id.")
}

var (
	errNoBuilder = apperr.New(apperr.KindInternal, "resource: create is not supported")
	errNoPatcher = apperr.New(apperr.KindInternal, "resource: update is not supported")
)
