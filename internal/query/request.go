package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Raw parameter keys.
const (
	ParamPage         = "page"
	ParamPageSize     = "pageSize"
	ParamFilterParams = "filterParams"
	ParamOrderParams  = "orderParams"
)

const DefaultPageSize = 10

// FilterRequest is the typed form of the raw filter/order/page parameters.
type FilterRequest struct {
	Filters  map[string]FilterValue
	Order    []OrderParam
	Page     int `validate:"min=1"`
	PageSize int `validate:"min=1"`
}

// ParseOptions selects how missing keys are handled. A strict caller reports
// every missing key as a user error; otherwise defaults apply.
type ParseOptions struct {
	Strict          bool
	DefaultPageSize int
}

var (
	requiredCodes = map[string]string{
		ParamPage:         CodePageRequired,
		ParamPageSize:     CodePageSizeRequired,
		ParamFilterParams: CodeFilterParamsRequired,
		ParamOrderParams:  CodeOrderParamsRequired,
	}
	validate = validator.New()
)

// ParseRequest turns raw string parameters into a FilterRequest.
func ParseRequest(raw map[string]string, opts ParseOptions) (FilterRequest, error) {
	defaults := map[string]string{
		ParamPage:         "1",
		ParamPageSize:     strconv.Itoa(DefaultPageSize),
		ParamFilterParams: "{}",
		ParamOrderParams:  "[]",
	}
	if opts.DefaultPageSize > 0 {
		defaults[ParamPageSize] = strconv.Itoa(opts.DefaultPageSize)
	}

	get := func(key string) (string, error) {
		if v := strings.TrimSpace(raw[key]); v != "" {
			return v, nil
		}
		if opts.Strict {
			return "", userErrorf(requiredCodes[key], "%s parameter is required", key)
		}
		return defaults[key], nil
	}

	var req FilterRequest
	for _, key := range []string{ParamPage, ParamPageSize, ParamFilterParams, ParamOrderParams} {
		v, err := get(key)
		if err != nil {
			return FilterRequest{}, err
		}
		switch key {
		case ParamPage:
			if req.Page, err = strconv.Atoi(v); err != nil {
				return FilterRequest{}, userErrorf(CodeInvalidPage, "page must be an integer, got %q", v)
			}
		case ParamPageSize:
			if req.PageSize, err = strconv.Atoi(v); err != nil {
				return FilterRequest{}, userErrorf(CodeInvalidPageSize, "pageSize must be an integer, got %q", v)
			}
		case ParamFilterParams:
			if req.Filters, err = ParseFilters(v); err != nil {
				return FilterRequest{}, err
			}
		case ParamOrderParams:
			if req.Order, err = ParseOrder(v); err != nil {
				return FilterRequest{}, err
			}
		}
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if verrs[0].Field() == "PageSize" {
				return FilterRequest{}, userErrorf(CodeInvalidPageSize, "pageSize must be at least 1, got %d", req.PageSize)
			}
			return FilterRequest{}, userErrorf(CodeInvalidPage, "page must be at least 1, got %d", req.Page)
		}
		return FilterRequest{}, err
	}
	return req, nil
}

// ParseOrder decodes orderParams: a JSON array of [field, direction] pairs.
// A missing or non-string direction is left empty and sorts ascending.
func ParseOrder(raw string) ([]OrderParam, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var pairs [][]any
	if err := dec.Decode(&pairs); err != nil {
		return nil, userErrorf(CodeMalformedOrderParams, "orderParams is not an array of pairs: %v", err)
	}
	order := make([]OrderParam, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) == 0 {
			return nil, userErrorf(CodeMalformedOrderParams, "orderParams[%d] is empty", i)
		}
		field, ok := pair[0].(string)
		if !ok || strings.TrimSpace(field) == "" {
			return nil, userErrorf(CodeMalformedOrderParams, "orderParams[%d] has no field name", i)
		}
		var dir string
		if len(pair) > 1 {
			dir, _ = pair[1].(string)
		}
		order = append(order, OrderParam{Field: strings.TrimSpace(field), Direction: dir})
	}
	return order, nil
}
