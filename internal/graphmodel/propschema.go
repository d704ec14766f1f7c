package graphmodel

import (
	"fmt"
	"sort"
)

// fieldSpec describes one property of a node kind's schema.
type fieldSpec struct {
	name     string
	required bool
	allowed  []string // non-empty => closed enum
	isNumber bool
	numRange [2]float64 // inclusive, only checked when isNumber
	defValue any
}

// kindSchema is the full per-kind schema used by Validate and DeriveNaturalKey.
type kindSchema struct {
	fields       []fieldSpec
	needsParent  bool
	needsUUID    bool
	naturalKey   func(props map[string]any, parentID string, uuid string) string
}

var schemas = map[NodeKind]kindSchema{
	KindHost: {
		fields: []fieldSpec{
			{name: "authorityKind", required: true, allowed: []string{"IP", "DOMAIN"}},
			{name: "authority", required: true},
			{name: "resolvedIpsJson", defValue: "[]"},
		},
		naturalKey: func(p map[string]any, _ string, _ string) string {
			return fmt.Sprintf("host:%s", asString(p["authority"]))
		},
	},
	KindVHost: {
		fields: []fieldSpec{
			{name: "hostname", required: true},
			{name: "source"},
		},
		needsParent: true,
		naturalKey: func(p map[string]any, parentID string, _ string) string {
			return fmt.Sprintf("vhost:%s:%s", parentID, asString(p["hostname"]))
		},
	},
	KindService: {
		fields: []fieldSpec{
			{name: "transport", required: true, allowed: []string{"tcp", "udp"}},
			{name: "port", required: true, isNumber: true, numRange: [2]float64{0, 65535}},
			{name: "appProto", required: true},
			{name: "protoConfidence", required: true, allowed: []string{"high", "medium", "low"}},
			{name: "state", required: true, allowed: []string{"open", "closed", "filtered"}},
			{name: "banner"}, {name: "product"}, {name: "version"},
		},
		needsParent: true,
		naturalKey: func(p map[string]any, parentID string, _ string) string {
			return fmt.Sprintf("svc:%s:%s:%s", parentID, asString(p["transport"]), numString(p["port"]))
		},
	},
	KindEndpoint: {
		fields: []fieldSpec{
			{name: "baseUri", required: true},
			{name: "method", required: true},
			{name: "path", required: true},
			{name: "statusCode"}, {name: "contentLength"}, {name: "words"}, {name: "lines"},
		},
		needsParent: true,
		naturalKey: func(p map[string]any, parentID string, _ string) string {
			return fmt.Sprintf("ep:%s:%s:%s", parentID, asString(p["method"]), asString(p["path"]))
		},
	},
	KindInput: {
		fields: []fieldSpec{
			{name: "location", required: true, allowed: []string{"query", "path", "body", "header", "cookie"}},
			{name: "name", required: true},
			{name: "typeHint"},
		},
		needsParent: true,
		naturalKey: func(p map[string]any, parentID string, _ string) string {
			return fmt.Sprintf("in:%s:%s:%s", parentID, asString(p["location"]), asString(p["name"]))
		},
	},
	KindObservation: {
		fields: []fieldSpec{
			{name: "rawValue", required: true},
			{name: "normValue", required: true},
			{name: "source", required: true},
			{name: "confidence", required: true},
			{name: "observedAt", required: true},
			{name: "bodyPath"},
		},
		needsUUID: true,
		naturalKey: func(_ map[string]any, _ string, uuid string) string {
			return fmt.Sprintf("obs:%s", uuid)
		},
	},
	KindCredential: {
		fields: []fieldSpec{
			{name: "username", required: true},
			{name: "secret", required: true},
			{name: "secretType", required: true, allowed: []string{"password", "token", "api_key", "ssh_key"}},
			{name: "source", required: true},
			{name: "confidence", required: true},
		},
		needsUUID: true,
		naturalKey: func(_ map[string]any, _ string, uuid string) string {
			return fmt.Sprintf("cred:%s", uuid)
		},
	},
	KindVulnerability: {
		fields: []fieldSpec{
			{name: "vulnType", required: true},
			{name: "title", required: true},
			{name: "severity", required: true, allowed: []string{"critical", "high", "medium", "low", "info"}},
			{name: "confidence", required: true},
			{name: "description"},
			{name: "status", allowed: []string{"unverified", "confirmed", "false_positive", "not_exploitable"}, defValue: "unverified"},
		},
		needsUUID: true,
		naturalKey: func(_ map[string]any, _ string, uuid string) string {
			return fmt.Sprintf("vuln:%s", uuid)
		},
	},
	KindCVE: {
		fields: []fieldSpec{
			{name: "cveId", required: true},
			{name: "description"}, {name: "cvssScore"}, {name: "cvssVector"}, {name: "referenceUrl"},
		},
		needsParent: true,
		naturalKey: func(p map[string]any, parentID string, _ string) string {
			return fmt.Sprintf("cve:%s:%s", parentID, asString(p["cveId"]))
		},
	},
	KindSvcObservation: {
		fields: []fieldSpec{
			{name: "key", required: true},
			{name: "value", required: true},
			{name: "confidence", required: true},
		},
		needsUUID: true,
		naturalKey: func(_ map[string]any, _ string, uuid string) string {
			return fmt.Sprintf("svcobs:%s", uuid)
		},
	},
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func numString(v any) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%d", int64(n))
	case int64:
		return fmt.Sprintf("%d", n)
	case int:
		return fmt.Sprintf("%d", n)
	default:
		return asString(v)
	}
}

// NeedsParent reports whether kind's natural-key template references a
// caller-supplied parentId (spec §4.2).
func NeedsParent(kind NodeKind) bool {
	s, ok := schemas[kind]
	return ok && s.needsParent
}

// NeedsFreshUUID reports whether kind always derives a fresh UUID-based
// natural key (observation, credential, vulnerability, svc_observation).
func NeedsFreshUUID(kind NodeKind) bool {
	s, ok := schemas[kind]
	return ok && s.needsUUID
}

// Validate checks props against kind's required/optional/enum schema,
// applying defaults for any missing optional field that declares one.
// It returns the (possibly defaulted) props map, or a plain error naming the
// first violation (callers wrap it with kgerrors.NewValidation).
func Validate(kind NodeKind, props map[string]any) (map[string]any, error) {
	schema, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}

	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}

	for _, f := range schema.fields {
		v, present := out[f.name]
		if !present || v == nil || v == "" {
			if f.required {
				return nil, fmt.Errorf("kind %q: field %q is required", kind, f.name)
			}
			if f.defValue != nil {
				out[f.name] = f.defValue
			}
			continue
		}
		if len(f.allowed) > 0 {
			s := asString(v)
			if !stringIn(s, f.allowed) {
				return nil, fmt.Errorf("kind %q: field %q must be one of %v, got %q", kind, f.name, f.allowed, s)
			}
		}
		if f.isNumber {
			n, err := asFloat(v)
			if err != nil {
				return nil, fmt.Errorf("kind %q: field %q must be numeric: %w", kind, f.name, err)
			}
			if n < f.numRange[0] || n > f.numRange[1] {
				return nil, fmt.Errorf("kind %q: field %q must be in [%v, %v], got %v", kind, f.name, f.numRange[0], f.numRange[1], n)
			}
		}
	}
	return out, nil
}

func stringIn(s string, set []string) bool {
	for _, a := range set {
		if a == s {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		var f float64
		_, err := fmt.Sscanf(fmt.Sprintf("%v", v), "%g", &f)
		return f, err
	}
}

// DeriveNaturalKey computes the deterministic natural key for (kind, props,
// parentID) per the templates of spec §4.2. freshUUID is only consulted for
// kinds whose template embeds a fresh UUID (NeedsFreshUUID); it must be
// generated by the caller (see idgen.NewUUID) so this function stays pure
// and total, per §9's design note.
func DeriveNaturalKey(kind NodeKind, props map[string]any, parentID, freshUUID string) (string, error) {
	schema, ok := schemas[kind]
	if !ok {
		return "", fmt.Errorf("unknown node kind %q", kind)
	}
	if schema.needsParent && parentID == "" {
		return "", fmt.Errorf("kind %q requires a parentId", kind)
	}
	return schema.naturalKey(props, parentID, freshUUID), nil
}

// MergeProps implements the right-biased union of spec §8's "Upsert merge"
// property: existing ⊕ incoming, incoming wins on overlapping keys.
func MergeProps(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// RequiredFieldNames returns the required field names for kind, sorted, for
// diagnostics and tests.
func RequiredFieldNames(kind NodeKind) []string {
	schema := schemas[kind]
	var names []string
	for _, f := range schema.fields {
		if f.required {
			names = append(names, f.name)
		}
	}
	sort.Strings(names)
	return names
}
