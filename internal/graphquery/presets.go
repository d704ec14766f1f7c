package graphquery

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/kgerrors"
)

// PresetNames is the closed set of analytical queries of spec §4.3, each
// built as one parameterised SQL query over the (nodes, edges) schema
// rather than host-language graph walking, since every preset is a fixed
// join shape the query planner can execute directly.
var PresetNames = []string{
	"attack_surface", "critical_vulns", "credential_exposure",
	"unscanned_services", "vuln_by_host", "reachable_services",
}

// RunPreset dispatches to one of the closed preset queries by name. params
// carries preset-specific arguments (currently only reachable_services'
// required "hostId"). An unknown name or a missing required parameter
// returns a BadRequest-flavored error (spec §6's error table).
func RunPreset(ctx context.Context, store *graphstore.Store, name string, params map[string]string) ([]map[string]any, error) {
	switch name {
	case "attack_surface":
		return attackSurface(ctx, store)
	case "critical_vulns":
		return criticalVulns(ctx, store)
	case "credential_exposure":
		return credentialExposure(ctx, store)
	case "unscanned_services":
		return unscannedServices(ctx, store)
	case "vuln_by_host":
		return vulnByHost(ctx, store)
	case "reachable_services":
		hostID, ok := params["hostId"]
		if !ok || hostID == "" {
			return nil, fmt.Errorf("%w: reachable_services requires hostId", kgerrors.ErrBadRequest)
		}
		return reachableServices(ctx, store, hostID)
	default:
		return nil, fmt.Errorf("%w: unknown preset %q", kgerrors.ErrBadRequest, name)
	}
}

func attackSurface(ctx context.Context, store *graphstore.Store) ([]map[string]any, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT h.id, s.id, e.id, i.id
		FROM nodes h
		JOIN edges he ON he.kind = 'HOST_SERVICE' AND he.source_id = h.id
		JOIN nodes s ON s.id = he.target_id AND s.kind = 'service'
		LEFT JOIN edges es ON es.kind = 'SERVICE_ENDPOINT' AND es.source_id = s.id
		LEFT JOIN nodes e ON e.id = es.target_id AND e.kind = 'endpoint'
		LEFT JOIN edges ei ON ei.kind = 'ENDPOINT_INPUT' AND ei.source_id = e.id
		LEFT JOIN nodes i ON i.id = ei.target_id AND i.kind = 'input'
		WHERE h.kind = 'host'
		ORDER BY h.id, s.id, e.id, i.id
	`)
	if err != nil {
		return nil, presetErr("attack_surface", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var hostID, serviceID string
		var endpointID, inputID sql.NullString
		if err := rows.Scan(&hostID, &serviceID, &endpointID, &inputID); err != nil {
			return nil, presetErr("attack_surface", err)
		}
		out = append(out, map[string]any{
			"hostId": hostID, "serviceId": serviceID,
			"endpointId": nullableString(endpointID), "inputId": nullableString(inputID),
		})
	}
	return out, rows.Err()
}

func criticalVulns(ctx context.Context, store *graphstore.Store) ([]map[string]any, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT v.id, json_extract(v.props_json, '$.severity'), s.id, h.id
		FROM nodes v
		JOIN edges sv ON sv.kind = 'SERVICE_VULNERABILITY' AND sv.target_id = v.id
		JOIN nodes s ON s.id = sv.source_id AND s.kind = 'service'
		JOIN edges hs ON hs.kind = 'HOST_SERVICE' AND hs.target_id = s.id
		JOIN nodes h ON h.id = hs.source_id AND h.kind = 'host'
		WHERE v.kind = 'vulnerability'
		  AND json_extract(v.props_json, '$.severity') IN ('critical', 'high')
		ORDER BY CASE json_extract(v.props_json, '$.severity') WHEN 'critical' THEN 0 ELSE 1 END, h.id
	`)
	if err != nil {
		return nil, presetErr("critical_vulns", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var vulnID, severity, serviceID, hostID string
		if err := rows.Scan(&vulnID, &severity, &serviceID, &hostID); err != nil {
			return nil, presetErr("critical_vulns", err)
		}
		out = append(out, map[string]any{
			"vulnerabilityId": vulnID, "severity": severity, "serviceId": serviceID, "hostId": hostID,
		})
	}
	return out, rows.Err()
}

func credentialExposure(ctx context.Context, store *graphstore.Store) ([]map[string]any, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT s.id, c.id
		FROM nodes s
		JOIN edges sc ON sc.kind = 'SERVICE_CREDENTIAL' AND sc.source_id = s.id
		JOIN nodes c ON c.id = sc.target_id AND c.kind = 'credential'
		WHERE s.kind = 'service'
		ORDER BY s.id, c.id
	`)
	if err != nil {
		return nil, presetErr("credential_exposure", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var serviceID, credentialID string
		if err := rows.Scan(&serviceID, &credentialID); err != nil {
			return nil, presetErr("credential_exposure", err)
		}
		out = append(out, map[string]any{"serviceId": serviceID, "credentialId": credentialID})
	}
	return out, rows.Err()
}

func unscannedServices(ctx context.Context, store *graphstore.Store) ([]map[string]any, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT s.id, h.id
		FROM nodes s
		JOIN edges hs ON hs.kind = 'HOST_SERVICE' AND hs.target_id = s.id
		JOIN nodes h ON h.id = hs.source_id AND h.kind = 'host'
		WHERE s.kind = 'service'
		  AND NOT EXISTS (SELECT 1 FROM edges se WHERE se.kind = 'SERVICE_ENDPOINT' AND se.source_id = s.id)
		ORDER BY s.id
	`)
	if err != nil {
		return nil, presetErr("unscanned_services", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var serviceID, hostID string
		if err := rows.Scan(&serviceID, &hostID); err != nil {
			return nil, presetErr("unscanned_services", err)
		}
		out = append(out, map[string]any{"serviceId": serviceID, "hostId": hostID})
	}
	return out, rows.Err()
}

func vulnByHost(ctx context.Context, store *graphstore.Store) ([]map[string]any, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT h.id, COUNT(v.id) AS vuln_count
		FROM nodes h
		JOIN edges hs ON hs.kind = 'HOST_SERVICE' AND hs.source_id = h.id
		JOIN nodes s ON s.id = hs.target_id AND s.kind = 'service'
		JOIN edges sv ON sv.kind = 'SERVICE_VULNERABILITY' AND sv.source_id = s.id
		JOIN nodes v ON v.id = sv.target_id AND v.kind = 'vulnerability'
		WHERE h.kind = 'host'
		GROUP BY h.id
		ORDER BY vuln_count DESC, h.id
	`)
	if err != nil {
		return nil, presetErr("vuln_by_host", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var hostID string
		var count int64
		if err := rows.Scan(&hostID, &count); err != nil {
			return nil, presetErr("vuln_by_host", err)
		}
		out = append(out, map[string]any{"hostId": hostID, "vulnCount": count})
	}
	return out, rows.Err()
}

func reachableServices(ctx context.Context, store *graphstore.Store, hostID string) ([]map[string]any, error) {
	if _, err := store.FindByID(ctx, hostID); err != nil {
		return nil, err
	}
	rows, err := store.DB().QueryContext(ctx, `
		SELECT s.id
		FROM nodes s
		JOIN edges hs ON hs.kind = 'HOST_SERVICE' AND hs.target_id = s.id
		WHERE hs.source_id = ? AND s.kind = 'service'
		ORDER BY s.id
	`, hostID)
	if err != nil {
		return nil, presetErr("reachable_services", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var serviceID string
		if err := rows.Scan(&serviceID); err != nil {
			return nil, presetErr("reachable_services", err)
		}
		out = append(out, map[string]any{"serviceId": serviceID})
	}
	return out, rows.Err()
}

func nullableString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func presetErr(name string, err error) error {
	return fmt.Errorf("%w: preset %s: %v", kgerrors.ErrStorage, name, err)
}
