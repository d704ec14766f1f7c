// Package facts projects the property graph into the positional tuples the
// Datalog evaluator (C8) consumes as baseFacts, per the fixed predicate
// table of spec §4.7 (C6).
package facts

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/kgerrors"
)

// Fact is one derived tuple: a predicate name plus its positional values,
// each a string or a 64-bit integer (spec §3's fact definition).
type Fact struct {
	Predicate string
	Values    []any
}

// Predicates lists every predicate the extractor knows how to project, in
// the order spec §4.7's table names them.
var Predicates = []string{
	"host", "service", "http_endpoint", "input", "endpoint_input",
	"observation", "credential", "vulnerability", "vulnerability_endpoint",
	"cve", "vhost",
}

// ExtractAll extracts every predicate's facts in parallel (each predicate's
// query is independent of the others), grounding the extractor's bulk path
// on golang.org/x/sync/errgroup the way the rest of the pack uses it for
// independent fan-out work.
func ExtractAll(ctx context.Context, store *graphstore.Store) ([]Fact, error) {
	results := make([][]Fact, len(Predicates))

	g, gctx := errgroup.WithContext(ctx)
	for i, pred := range Predicates {
		i, pred := i, pred
		g.Go(func() error {
			facts, err := ExtractByPredicate(gctx, store, pred, 0)
			if err != nil {
				return err
			}
			results[i] = facts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Fact
	for _, facts := range results {
		all = append(all, facts...)
	}
	return all, nil
}

// ExtractByPredicate extracts only the named predicate's facts (spec §4.7's
// extractFactsByPredicate), optionally capped to limit rows (limit <= 0
// means unbounded).
func ExtractByPredicate(ctx context.Context, store *graphstore.Store, predicate string, limit int) ([]Fact, error) {
	switch predicate {
	case "host":
		return extractHost(ctx, store, limit)
	case "service":
		return extractService(ctx, store, limit)
	case "http_endpoint":
		return extractHTTPEndpoint(ctx, store, limit)
	case "input":
		return extractInput(ctx, store, limit)
	case "endpoint_input":
		return extractEndpointInput(ctx, store, limit)
	case "observation":
		return extractObservation(ctx, store, limit)
	case "credential":
		return extractCredential(ctx, store, limit)
	case "vulnerability":
		return extractVulnerability(ctx, store, limit)
	case "vulnerability_endpoint":
		return extractVulnerabilityEndpoint(ctx, store, limit)
	case "cve":
		return extractCVE(ctx, store, limit)
	case "vhost":
		return extractVHost(ctx, store, limit)
	default:
		return nil, fmt.Errorf("%w: unknown predicate %q", kgerrors.ErrBadRequest, predicate)
	}
}

func limitClause(limit int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}

func extractHost(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT id, json_extract(props_json, '$.authority'), json_extract(props_json, '$.authorityKind')
		FROM nodes WHERE kind = 'host' ORDER BY id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("host", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var id, authority, authorityKind string
		if err := rows.Scan(&id, &authority, &authorityKind); err != nil {
			return nil, extractErr("host", err)
		}
		out = append(out, Fact{Predicate: "host", Values: []any{id, authority, authorityKind}})
	}
	return out, rows.Err()
}

func extractService(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT hs.source_id, s.id,
		       json_extract(s.props_json, '$.transport'),
		       json_extract(s.props_json, '$.port'),
		       json_extract(s.props_json, '$.appProto'),
		       json_extract(s.props_json, '$.state')
		FROM nodes s
		JOIN edges hs ON hs.kind = 'HOST_SERVICE' AND hs.target_id = s.id
		WHERE s.kind = 'service'
		ORDER BY s.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("service", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var hostID, id, transport, appProto, state string
		var port int64
		if err := rows.Scan(&hostID, &id, &transport, &port, &appProto, &state); err != nil {
			return nil, extractErr("service", err)
		}
		out = append(out, Fact{Predicate: "service", Values: []any{hostID, id, transport, port, appProto, state}})
	}
	return out, rows.Err()
}

func extractHTTPEndpoint(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT se.source_id, e.id,
		       json_extract(e.props_json, '$.method'),
		       json_extract(e.props_json, '$.path'),
		       COALESCE(json_extract(e.props_json, '$.statusCode'), 0)
		FROM nodes e
		JOIN edges se ON se.kind = 'SERVICE_ENDPOINT' AND se.target_id = e.id
		WHERE e.kind = 'endpoint'
		ORDER BY e.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("http_endpoint", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var serviceID, id, method, path string
		var statusCode int64
		if err := rows.Scan(&serviceID, &id, &method, &path, &statusCode); err != nil {
			return nil, extractErr("http_endpoint", err)
		}
		out = append(out, Fact{Predicate: "http_endpoint", Values: []any{serviceID, id, method, path, statusCode}})
	}
	return out, rows.Err()
}

func extractInput(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT si.source_id, i.id,
		       json_extract(i.props_json, '$.location'),
		       json_extract(i.props_json, '$.name')
		FROM nodes i
		JOIN edges si ON si.kind = 'SERVICE_INPUT' AND si.target_id = i.id
		WHERE i.kind = 'input'
		ORDER BY i.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("input", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var serviceID, id, location, name string
		if err := rows.Scan(&serviceID, &id, &location, &name); err != nil {
			return nil, extractErr("input", err)
		}
		out = append(out, Fact{Predicate: "input", Values: []any{serviceID, id, location, name}})
	}
	return out, rows.Err()
}

func extractEndpointInput(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT source_id, target_id FROM edges WHERE kind = 'ENDPOINT_INPUT'
		ORDER BY source_id, target_id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("endpoint_input", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var endpointID, inputID string
		if err := rows.Scan(&endpointID, &inputID); err != nil {
			return nil, extractErr("endpoint_input", err)
		}
		out = append(out, Fact{Predicate: "endpoint_input", Values: []any{endpointID, inputID}})
	}
	return out, rows.Err()
}

func extractObservation(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT io.source_id,
		       json_extract(o.props_json, '$.rawValue'),
		       json_extract(o.props_json, '$.normValue')
		FROM nodes o
		JOIN edges io ON io.kind = 'INPUT_OBSERVATION' AND io.target_id = o.id
		WHERE o.kind = 'observation'
		ORDER BY o.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("observation", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var inputID, rawValue, normValue string
		if err := rows.Scan(&inputID, &rawValue, &normValue); err != nil {
			return nil, extractErr("observation", err)
		}
		out = append(out, Fact{Predicate: "observation", Values: []any{inputID, rawValue, normValue}})
	}
	return out, rows.Err()
}

func extractCredential(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT sc.source_id, c.id,
		       json_extract(c.props_json, '$.username'),
		       json_extract(c.props_json, '$.secretType')
		FROM nodes c
		JOIN edges sc ON sc.kind = 'SERVICE_CREDENTIAL' AND sc.target_id = c.id
		WHERE c.kind = 'credential'
		ORDER BY c.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("credential", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var serviceID, id, username, secretType string
		if err := rows.Scan(&serviceID, &id, &username, &secretType); err != nil {
			return nil, extractErr("credential", err)
		}
		out = append(out, Fact{Predicate: "credential", Values: []any{serviceID, id, username, secretType}})
	}
	return out, rows.Err()
}

func extractVulnerability(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT sv.source_id, v.id,
		       json_extract(v.props_json, '$.vulnType'),
		       json_extract(v.props_json, '$.severity'),
		       json_extract(v.props_json, '$.confidence')
		FROM nodes v
		JOIN edges sv ON sv.kind = 'SERVICE_VULNERABILITY' AND sv.target_id = v.id
		WHERE v.kind = 'vulnerability'
		ORDER BY v.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("vulnerability", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var serviceID, id, vulnType, severity string
		var confidence sql.NullFloat64
		if err := rows.Scan(&serviceID, &id, &vulnType, &severity, &confidence); err != nil {
			return nil, extractErr("vulnerability", err)
		}
		out = append(out, Fact{Predicate: "vulnerability", Values: []any{serviceID, id, vulnType, severity, confidenceString(confidence)}})
	}
	return out, rows.Err()
}

func extractVulnerabilityEndpoint(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT target_id, source_id FROM edges WHERE kind = 'ENDPOINT_VULNERABILITY'
		ORDER BY target_id, source_id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("vulnerability_endpoint", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var vulnID, endpointID string
		if err := rows.Scan(&vulnID, &endpointID); err != nil {
			return nil, extractErr("vulnerability_endpoint", err)
		}
		out = append(out, Fact{Predicate: "vulnerability_endpoint", Values: []any{vulnID, endpointID}})
	}
	return out, rows.Err()
}

func extractCVE(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT vc.source_id,
		       json_extract(c.props_json, '$.cveId'),
		       COALESCE(json_extract(c.props_json, '$.cvssScore'), 0)
		FROM nodes c
		JOIN edges vc ON vc.kind = 'VULNERABILITY_CVE' AND vc.target_id = c.id
		WHERE c.kind = 'cve'
		ORDER BY c.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("cve", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var vulnID, cveID string
		var cvssScore sql.NullFloat64
		if err := rows.Scan(&vulnID, &cveID, &cvssScore); err != nil {
			return nil, extractErr("cve", err)
		}
		out = append(out, Fact{Predicate: "cve", Values: []any{vulnID, cveID, confidenceString(cvssScore)}})
	}
	return out, rows.Err()
}

func extractVHost(ctx context.Context, store *graphstore.Store, limit int) ([]Fact, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT hv.source_id, v.id,
		       json_extract(v.props_json, '$.hostname'),
		       COALESCE(json_extract(v.props_json, '$.source'), '')
		FROM nodes v
		JOIN edges hv ON hv.kind = 'HOST_VHOST' AND hv.target_id = v.id
		WHERE v.kind = 'vhost'
		ORDER BY v.id`+limitClause(limit))
	if err != nil {
		return nil, extractErr("vhost", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var hostID, id, hostname, source string
		if err := rows.Scan(&hostID, &id, &hostname, &source); err != nil {
			return nil, extractErr("vhost", err)
		}
		out = append(out, Fact{Predicate: "vhost", Values: []any{hostID, id, hostname, source}})
	}
	return out, rows.Err()
}

// confidenceString renders a NULL-able fractional value as the string form
// a fact tuple can carry (fact values are string | int64, per spec §3); 0
// substitutes for an absent value, matching the table's "0 if absent" note.
func confidenceString(v sql.NullFloat64) string {
	if !v.Valid {
		return "0"
	}
	return fmt.Sprintf("%g", v.Float64)
}

// SortStable orders facts by predicate then by their rendered values, for
// deterministic test assertions and CLI output.
func SortStable(facts []Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].Predicate != facts[j].Predicate {
			return facts[i].Predicate < facts[j].Predicate
		}
		return fmt.Sprint(facts[i].Values) < fmt.Sprint(facts[j].Values)
	})
}

func extractErr(predicate string, err error) error {
	return fmt.Errorf("%w: extract %s: %v", kgerrors.ErrStorage, predicate, err)
}
