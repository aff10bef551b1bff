package annotations

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

var httpMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "ANY"}

func checkHTTPMethod(v any) error {
	method := strings.ToUpper(v.(string))
	if !slices.Contains(httpMethods, method) {
		return fmt.Errorf("must be one of %s, got %s", strings.Join(httpMethods, ", "), method)
	}
	return nil
}

// checkRoutePath accepts paths such as /users/{id} and /static/{*}: a
// parameter fills a whole segment and the wildcard comes last
func checkRoutePath(v any) error {
	path := v.(string)
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("must start with '/', got %s", path)
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if !strings.ContainsAny(seg, "{}") {
			continue
		}
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			return fmt.Errorf("segment %s must be a whole {name} parameter", seg)
		}
		name := seg[1 : len(seg)-1]
		switch {
		case name == "*" && i != len(segments)-1:
			return fmt.Errorf("wildcard {*} must be the last segment of %s", path)
		case name != "*" && !isIdentifier(name):
			return fmt.Errorf("parameter %s is not a valid name", seg)
		}
	}
	return nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func checkPositive(v any) error {
	if d := v.(time.Duration); d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func checkNonNegative(v any) error {
	if d := v.(time.Duration); d < 0 {
		return fmt.Errorf("cannot be negative, got %s", d)
	}
	return nil
}

// checkConfigKey accepts dotted viper keys such as server.port
func checkConfigKey(v any) error {
	key := v.(string)
	if key == "" || slices.Contains(strings.Split(key, "."), "") {
		return fmt.Errorf("%q is not a dotted configuration key", key)
	}
	return nil
}

func checkCommand(a *ParsedAnnotation) error {
	if strings.TrimSpace(a.GetString("Use")) == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if args := a.GetInt("Args", -1); args < -1 {
		return fmt.Errorf("command Args must be -1 (any) or a count, got %d", args)
	}
	return nil
}
