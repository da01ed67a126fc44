package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArgTenantID is the argument every availability tool takes to select a
// tenant.
const ArgTenantID = "tenant_id"

// GetTenantFromArgs returns the trimmed tenant id argument, or "" when it
// is missing or not a string.
func GetTenantFromArgs(args map[string]interface{}) string {
	return StringArg(args, ArgTenantID)
}

// StringArg returns a trimmed string argument, or "" when it is missing or
// not a string.
func StringArg(args map[string]interface{}, name string) string {
	v, ok := args[name].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// RequiredStringArg is StringArg that fails on a missing or empty value.
func RequiredStringArg(args map[string]interface{}, name string) (string, error) {
	v := StringArg(args, name)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

// IntArg returns an integer argument, or def when it is missing. JSON
// numbers arrive as float64 and must be whole. Values outside the int32
// range are rejected.
func IntArg(args map[string]interface{}, name string, def int) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("%s is out of range", name)
		}
		return int(v), nil
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("%s is out of range", name)
		}
		return v, nil
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("%s is out of range", name)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}

// IntListArg parses a comma-separated list of integers such as "1,2,3".
// It returns nil when the argument is missing or empty.
func IntListArg(args map[string]interface{}, name string) ([]int, error) {
	raw := StringArg(args, name)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%s must be a comma-separated list of numbers", name)
		}
		out = append(out, n)
	}
	return out, nil
}
