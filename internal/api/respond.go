package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/availability-booking/internal/calendar"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// hhmm accepts a slot start, 00:00 through 23:59.
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		t, err := calendar.ParseTimeOfDay(fl.Field().String())
		return err == nil && t < calendar.MinutesPerDay
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeValidationError turns the first failed field into invalid_<field>.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		writeError(w, http.StatusBadRequest, "invalid_"+fe.Field(),
			fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
}
