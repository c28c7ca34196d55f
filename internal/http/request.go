package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhonier182/lista-mercado/internal/core"
)

const maxBodyBytes = 1 << 20

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it. Unreadable bodies
// are bad requests; rule violations are validation errors.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest("request body is empty")
		}
		return errBadRequest("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return errBadRequest("request body must contain a single JSON object")
	}
	return s.validateStruct(dst)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return core.NewValidationError(fe.Field(), "%s", ruleMessage(fe))
	}
	return errBadRequest(err.Error())
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("too long (max %s characters)", fe.Param())
	case "min":
		return fmt.Sprintf("too short (min %s characters)", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}

// flexDecimal accepts a decimal as a JSON number or a JSON string; strings
// may use a comma as the decimal separator.
type flexDecimal string

func (d *flexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = flexDecimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a number or a string, got %s", b)
	}
	*d = flexDecimal(n.String())
	return nil
}

func (d flexDecimal) price() (decimal.Decimal, error) {
	return core.ParsePrice(string(d))
}

// quantity is nil when the field was absent or null.
func (d flexDecimal) quantity() (*decimal.Decimal, error) {
	if strings.TrimSpace(string(d)) == "" {
		return nil, nil
	}
	q, err := core.ParseDecimal("quantity", string(d))
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// monthParam reads year and month from the query. Both absent means the
// current month; supplying only one is a bad request.
func (s *Server) monthParam(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	ys, ms := strings.TrimSpace(q.Get("year")), strings.TrimSpace(q.Get("month"))
	if ys == "" && ms == "" {
		now := s.now()
		return now.Year(), int(now.Month()), nil
	}
	if ys == "" || ms == "" {
		return 0, 0, errBadRequest("year and month must be given together")
	}
	year, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, errBadRequest(fmt.Sprintf("invalid year %q", ys))
	}
	month, err := strconv.Atoi(ms)
	if err != nil {
		return 0, 0, errBadRequest(fmt.Sprintf("invalid month %q", ms))
	}
	return year, month, nil
}

// intParam reads an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errBadRequest(fmt.Sprintf("invalid %s %q", name, v))
	}
	return n, nil
}

// parseObservedAt accepts RFC 3339 timestamps and plain dates; plain dates
// are taken as midnight in loc. Empty means zero, which the recorder turns
// into now.
func parseObservedAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, core.NewValidationError("date", "must be YYYY-MM-DD or an RFC 3339 timestamp")
}
