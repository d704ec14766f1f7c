// Package migrations holds the individual, numbered schema migrations run by
// graphstore.Store.Migrate. Each exported function is idempotent: applying it
// to a database that has already been migrated must be a no-op.
package migrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/reconkg/engine/internal/graphmodel"
)

// legacyTables lists the pre-graph, row-per-entity tables that existed before
// the (nodes, edges) property graph (spec §4.1's "pivotal migration"). They
// are rewritten and dropped in this one step, in dependency order so that
// child rows are always processed after the parent row they reference.
var legacyTables = []string{
	"legacy_hosts", "legacy_vhosts", "legacy_services", "legacy_endpoints",
	"legacy_inputs", "legacy_observations", "legacy_credentials",
	"legacy_vulnerabilities", "legacy_cves", "legacy_svc_observations",
}

// LegacyRewrite copies every row of the legacy entity tables into the
// (nodes, edges) schema and drops the legacy tables, all inside one
// transaction with foreign-key enforcement suspended for its duration (spec
// §4.1: "runs inside a single transaction; foreign keys are suspended only
// within it"). If none of the legacy tables exist, it is a no-op: the base
// DDL already creates the current (nodes, edges) schema directly.
func LegacyRewrite(ctx context.Context, db *sql.DB) error {
	present, err := anyLegacyTablesExist(ctx, db)
	if err != nil {
		return fmt.Errorf("check legacy tables: %w", err)
	}
	if !present {
		return nil
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("suspend foreign keys: %w", err)
	}
	defer db.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite transaction: %w", err)
	}
	defer tx.Rollback()

	r := &rewriter{tx: tx, hostOf: map[int64]string{}, serviceOf: map[int64]string{}, endpointOf: map[int64]string{}, vulnOf: map[int64]string{}}

	if err := r.rewriteHosts(ctx); err != nil {
		return err
	}
	if err := r.rewriteVHosts(ctx); err != nil {
		return err
	}
	if err := r.rewriteServices(ctx); err != nil {
		return err
	}
	if err := r.rewriteEndpoints(ctx); err != nil {
		return err
	}
	if err := r.rewriteInputs(ctx); err != nil {
		return err
	}
	if err := r.rewriteObservations(ctx); err != nil {
		return err
	}
	if err := r.rewriteCredentials(ctx); err != nil {
		return err
	}
	if err := r.rewriteVulnerabilities(ctx); err != nil {
		return err
	}
	if err := r.rewriteCVEs(ctx); err != nil {
		return err
	}
	if err := r.rewriteSvcObservations(ctx); err != nil {
		return err
	}

	for _, t := range legacyTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", t)); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}

	return tx.Commit()
}

func anyLegacyTablesExist(ctx context.Context, db *sql.DB) (bool, error) {
	row := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN (
			'legacy_hosts','legacy_vhosts','legacy_services','legacy_endpoints',
			'legacy_inputs','legacy_observations','legacy_credentials',
			'legacy_vulnerabilities','legacy_cves','legacy_svc_observations'
		)`)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// rewriter carries the legacy-id -> new-node-id resolution maps needed to
// rebuild foreign-key references as edges, mirroring the resolution-map
// pattern of the teacher's internal/importer/importer.go.
type rewriter struct {
	tx *sql.Tx

	hostOf     map[int64]string
	vhostOf    map[int64]string
	serviceOf  map[int64]string
	endpointOf map[int64]string
	inputOf    map[int64]string
	vulnOf     map[int64]string
}

func (r *rewriter) tableExists(ctx context.Context, name string) (bool, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *rewriter) insertNode(ctx context.Context, id string, kind graphmodel.NodeKind, naturalKey string, props map[string]any, evidenceArtifactID sql.NullInt64, createdAt, updatedAt string) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal props for %s %s: %w", kind, id, err)
	}
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, natural_key, props_json, evidence_artifact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(kind), naturalKey, string(propsJSON), evidenceArtifactID, createdAt, updatedAt)
	return err
}

func (r *rewriter) insertEdge(ctx context.Context, id string, kind graphmodel.EdgeKind, sourceID, targetID string, evidenceArtifactID sql.NullInt64, createdAt string) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO edges (id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at)
		VALUES (?, ?, ?, ?, '{}', ?, ?)
		ON CONFLICT(kind, source_id, target_id) DO NOTHING
	`, id, string(kind), sourceID, targetID, evidenceArtifactID, createdAt)
	return err
}

// legacyNodeID returns the legacy row's own id, in string form, as the new
// node's id: spec §4.1 requires "the original id of every legacy row
// becomes the node's id, so that external references remain valid" — a
// synthetic id would break exactly the references this migration exists to
// preserve. See DESIGN.md for the cross-table id-collision tradeoff this
// implies.
func legacyNodeID(table string, legacyID int64) string {
	return strconv.FormatInt(legacyID, 10)
}

func legacyEdgeID(kind graphmodel.EdgeKind, sourceID, targetID string) string {
	return fmt.Sprintf("legacy-edge:%s:%s:%s", kind, sourceID, targetID)
}

func (r *rewriter) rewriteHosts(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_hosts")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, authority_kind, authority, resolved_ips_json, evidence_artifact_id, created_at, updated_at
		FROM legacy_hosts`)
	if err != nil {
		return fmt.Errorf("select legacy_hosts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID int64
		var authorityKind, authority, resolvedIPsJSON, createdAt, updatedAt string
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &authorityKind, &authority, &resolvedIPsJSON, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_hosts row: %w", err)
		}
		nodeID := legacyNodeID("legacy_hosts", legacyID)
		props := map[string]any{"authorityKind": authorityKind, "authority": authority, "resolvedIpsJson": resolvedIPsJSON}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindHost, props, "", "")
		if err != nil {
			return fmt.Errorf("derive natural key for legacy host %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindHost, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert host node for legacy host %d: %w", legacyID, err)
		}
		r.hostOf[legacyID] = nodeID
	}
	return rows.Err()
}

func (r *rewriter) rewriteVHosts(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_vhosts")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, host_id, hostname, source, evidence_artifact_id, created_at, updated_at
		FROM legacy_vhosts`)
	if err != nil {
		return fmt.Errorf("select legacy_vhosts: %w", err)
	}
	defer rows.Close()

	if r.vhostOf == nil {
		r.vhostOf = map[int64]string{}
	}
	for rows.Next() {
		var legacyID, hostID int64
		var hostname, source, createdAt, updatedAt string
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &hostID, &hostname, &source, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_vhosts row: %w", err)
		}
		parentID, ok := r.hostOf[hostID]
		if !ok {
			continue // best-effort skip of unresolvable references, per spec §4.3
		}
		nodeID := legacyNodeID("legacy_vhosts", legacyID)
		props := map[string]any{"hostname": hostname, "source": source}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindVHost, props, parentID, "")
		if err != nil {
			return fmt.Errorf("derive natural key for legacy vhost %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindVHost, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert vhost node for legacy vhost %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeHostVHost, parentID, nodeID), graphmodel.EdgeHostVHost, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert host->vhost edge for legacy vhost %d: %w", legacyID, err)
		}
		r.vhostOf[legacyID] = nodeID
	}
	return rows.Err()
}

func (r *rewriter) rewriteServices(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_services")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, host_id, transport, port, app_proto, proto_confidence, state, banner, product, version, evidence_artifact_id, created_at, updated_at
		FROM legacy_services`)
	if err != nil {
		return fmt.Errorf("select legacy_services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, hostID, port int64
		var transport, appProto, protoConfidence, state, createdAt, updatedAt string
		var banner, product, version sql.NullString
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &hostID, &transport, &port, &appProto, &protoConfidence, &state, &banner, &product, &version, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_services row: %w", err)
		}
		parentID, ok := r.hostOf[hostID]
		if !ok {
			continue
		}
		nodeID := legacyNodeID("legacy_services", legacyID)
		props := map[string]any{
			"transport": transport, "port": float64(port), "appProto": appProto,
			"protoConfidence": protoConfidence, "state": state,
			"banner": banner.String, "product": product.String, "version": version.String,
		}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindService, props, parentID, "")
		if err != nil {
			return fmt.Errorf("derive natural key for legacy service %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindService, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert service node for legacy service %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeHostService, parentID, nodeID), graphmodel.EdgeHostService, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert host->service edge for legacy service %d: %w", legacyID, err)
		}
		r.serviceOf[legacyID] = nodeID
	}
	return rows.Err()
}

func (r *rewriter) rewriteEndpoints(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_endpoints")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, service_id, base_uri, method, path, status_code, content_length, words, lines, evidence_artifact_id, created_at, updated_at
		FROM legacy_endpoints`)
	if err != nil {
		return fmt.Errorf("select legacy_endpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, serviceID int64
		var baseURI, method, path, createdAt, updatedAt string
		var statusCode, contentLength, words, lines sql.NullInt64
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &serviceID, &baseURI, &method, &path, &statusCode, &contentLength, &words, &lines, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_endpoints row: %w", err)
		}
		parentID, ok := r.serviceOf[serviceID]
		if !ok {
			continue
		}
		nodeID := legacyNodeID("legacy_endpoints", legacyID)
		props := map[string]any{
			"baseUri": baseURI, "method": method, "path": path,
			"statusCode": statusCode.Int64, "contentLength": contentLength.Int64,
			"words": words.Int64, "lines": lines.Int64,
		}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindEndpoint, props, parentID, "")
		if err != nil {
			return fmt.Errorf("derive natural key for legacy endpoint %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindEndpoint, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert endpoint node for legacy endpoint %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeServiceEndpoint, parentID, nodeID), graphmodel.EdgeServiceEndpoint, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert service->endpoint edge for legacy endpoint %d: %w", legacyID, err)
		}
		r.endpointOf[legacyID] = nodeID
	}
	return rows.Err()
}

func (r *rewriter) rewriteInputs(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_inputs")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, service_id, endpoint_id, location, name, type_hint, evidence_artifact_id, created_at, updated_at
		FROM legacy_inputs`)
	if err != nil {
		return fmt.Errorf("select legacy_inputs: %w", err)
	}
	defer rows.Close()

	if r.inputOf == nil {
		r.inputOf = map[int64]string{}
	}
	for rows.Next() {
		var legacyID, serviceID int64
		var endpointID sql.NullInt64
		var location, name, createdAt, updatedAt string
		var typeHint sql.NullString
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &serviceID, &endpointID, &location, &name, &typeHint, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_inputs row: %w", err)
		}
		parentID, ok := r.serviceOf[serviceID]
		if !ok {
			continue
		}
		nodeID := legacyNodeID("legacy_inputs", legacyID)
		props := map[string]any{"location": location, "name": name, "typeHint": typeHint.String}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindInput, props, parentID, "")
		if err != nil {
			return fmt.Errorf("derive natural key for legacy input %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindInput, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert input node for legacy input %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeServiceInput, parentID, nodeID), graphmodel.EdgeServiceInput, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert service->input edge for legacy input %d: %w", legacyID, err)
		}
		if endpointID.Valid {
			if epNodeID, ok := r.endpointOf[endpointID.Int64]; ok {
				if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeEndpointInput, epNodeID, nodeID), graphmodel.EdgeEndpointInput, epNodeID, nodeID, evidenceArtifactID, createdAt); err != nil {
					return fmt.Errorf("insert endpoint->input edge for legacy input %d: %w", legacyID, err)
				}
			}
		}
		r.inputOf[legacyID] = nodeID
	}
	return rows.Err()
}

func (r *rewriter) rewriteObservations(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_observations")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, input_id, raw_value, norm_value, source, confidence, observed_at, body_path, evidence_artifact_id, created_at, updated_at
		FROM legacy_observations`)
	if err != nil {
		return fmt.Errorf("select legacy_observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, inputID int64
		var rawValue, normValue, source, observedAt, createdAt, updatedAt string
		var confidence float64
		var bodyPath sql.NullString
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &inputID, &rawValue, &normValue, &source, &confidence, &observedAt, &bodyPath, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_observations row: %w", err)
		}
		parentID, ok := r.inputOf[inputID]
		if !ok {
			continue
		}
		nodeID := legacyNodeID("legacy_observations", legacyID)
		props := map[string]any{
			"rawValue": rawValue, "normValue": normValue, "source": source,
			"confidence": confidence, "observedAt": observedAt, "bodyPath": bodyPath.String,
		}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindObservation, props, "", nodeID)
		if err != nil {
			return fmt.Errorf("derive natural key for legacy observation %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindObservation, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert observation node for legacy observation %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeInputObservation, parentID, nodeID), graphmodel.EdgeInputObservation, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert input->observation edge for legacy observation %d: %w", legacyID, err)
		}
	}
	return rows.Err()
}

func (r *rewriter) rewriteCredentials(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_credentials")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, service_id, endpoint_id, username, secret, secret_type, source, confidence, evidence_artifact_id, created_at, updated_at
		FROM legacy_credentials`)
	if err != nil {
		return fmt.Errorf("select legacy_credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, serviceID int64
		var endpointID sql.NullInt64
		var username, secret, secretType, source, createdAt, updatedAt string
		var confidence float64
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &serviceID, &endpointID, &username, &secret, &secretType, &source, &confidence, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_credentials row: %w", err)
		}
		nodeID := legacyNodeID("legacy_credentials", legacyID)
		props := map[string]any{
			"username": username, "secret": secret, "secretType": secretType,
			"source": source, "confidence": confidence,
		}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindCredential, props, "", nodeID)
		if err != nil {
			return fmt.Errorf("derive natural key for legacy credential %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindCredential, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert credential node for legacy credential %d: %w", legacyID, err)
		}
		if parentID, ok := r.serviceOf[serviceID]; ok {
			if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeServiceCredential, parentID, nodeID), graphmodel.EdgeServiceCredential, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
				return fmt.Errorf("insert service->credential edge for legacy credential %d: %w", legacyID, err)
			}
		}
		if endpointID.Valid {
			if epNodeID, ok := r.endpointOf[endpointID.Int64]; ok {
				if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeEndpointCredential, epNodeID, nodeID), graphmodel.EdgeEndpointCredential, epNodeID, nodeID, evidenceArtifactID, createdAt); err != nil {
					return fmt.Errorf("insert endpoint->credential edge for legacy credential %d: %w", legacyID, err)
				}
			}
		}
	}
	return rows.Err()
}

func (r *rewriter) rewriteVulnerabilities(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_vulnerabilities")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, service_id, endpoint_id, vuln_type, title, severity, confidence, description, status, evidence_artifact_id, created_at, updated_at
		FROM legacy_vulnerabilities`)
	if err != nil {
		return fmt.Errorf("select legacy_vulnerabilities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, serviceID int64
		var endpointID sql.NullInt64
		var vulnType, title, severity, createdAt, updatedAt string
		var confidence float64
		var description, status sql.NullString
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &serviceID, &endpointID, &vulnType, &title, &severity, &confidence, &description, &status, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_vulnerabilities row: %w", err)
		}
		nodeID := legacyNodeID("legacy_vulnerabilities", legacyID)
		statusVal := status.String
		if statusVal == "" {
			statusVal = "unverified"
		}
		props := map[string]any{
			"vulnType": vulnType, "title": title, "severity": severity,
			"confidence": confidence, "description": description.String, "status": statusVal,
		}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindVulnerability, props, "", nodeID)
		if err != nil {
			return fmt.Errorf("derive natural key for legacy vulnerability %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindVulnerability, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert vulnerability node for legacy vulnerability %d: %w", legacyID, err)
		}
		if parentID, ok := r.serviceOf[serviceID]; ok {
			if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeServiceVulnerability, parentID, nodeID), graphmodel.EdgeServiceVulnerability, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
				return fmt.Errorf("insert service->vulnerability edge for legacy vulnerability %d: %w", legacyID, err)
			}
		}
		if endpointID.Valid {
			if epNodeID, ok := r.endpointOf[endpointID.Int64]; ok {
				if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeEndpointVulnerability, epNodeID, nodeID), graphmodel.EdgeEndpointVulnerability, epNodeID, nodeID, evidenceArtifactID, createdAt); err != nil {
					return fmt.Errorf("insert endpoint->vulnerability edge for legacy vulnerability %d: %w", legacyID, err)
				}
			}
		}
		r.vulnOf[legacyID] = nodeID
	}
	return rows.Err()
}

func (r *rewriter) rewriteCVEs(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_cves")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, vulnerability_id, cve_id, description, cvss_score, cvss_vector, reference_url, evidence_artifact_id, created_at, updated_at
		FROM legacy_cves`)
	if err != nil {
		return fmt.Errorf("select legacy_cves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, vulnerabilityID int64
		var cveID, createdAt, updatedAt string
		var description, cvssVector, referenceURL sql.NullString
		var cvssScore sql.NullFloat64
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &vulnerabilityID, &cveID, &description, &cvssScore, &cvssVector, &referenceURL, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_cves row: %w", err)
		}
		parentID, ok := r.vulnOf[vulnerabilityID]
		if !ok {
			continue
		}
		nodeID := legacyNodeID("legacy_cves", legacyID)
		props := map[string]any{
			"cveId": cveID, "description": description.String,
			"cvssScore": cvssScore.Float64, "cvssVector": cvssVector.String, "referenceUrl": referenceURL.String,
		}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindCVE, props, parentID, "")
		if err != nil {
			return fmt.Errorf("derive natural key for legacy cve %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindCVE, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert cve node for legacy cve %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeVulnerabilityCVE, parentID, nodeID), graphmodel.EdgeVulnerabilityCVE, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert vulnerability->cve edge for legacy cve %d: %w", legacyID, err)
		}
	}
	return rows.Err()
}

func (r *rewriter) rewriteSvcObservations(ctx context.Context) error {
	ok, err := r.tableExists(ctx, "legacy_svc_observations")
	if err != nil || !ok {
		return err
	}
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, service_id, key, value, confidence, evidence_artifact_id, created_at, updated_at
		FROM legacy_svc_observations`)
	if err != nil {
		return fmt.Errorf("select legacy_svc_observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID, serviceID int64
		var key, value, createdAt, updatedAt string
		var confidence float64
		var evidenceArtifactID sql.NullInt64
		if err := rows.Scan(&legacyID, &serviceID, &key, &value, &confidence, &evidenceArtifactID, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy_svc_observations row: %w", err)
		}
		parentID, ok := r.serviceOf[serviceID]
		if !ok {
			continue
		}
		nodeID := legacyNodeID("legacy_svc_observations", legacyID)
		props := map[string]any{"key": key, "value": value, "confidence": confidence}
		naturalKey, err := graphmodel.DeriveNaturalKey(graphmodel.KindSvcObservation, props, "", nodeID)
		if err != nil {
			return fmt.Errorf("derive natural key for legacy svc_observation %d: %w", legacyID, err)
		}
		if err := r.insertNode(ctx, nodeID, graphmodel.KindSvcObservation, naturalKey, props, evidenceArtifactID, createdAt, updatedAt); err != nil {
			return fmt.Errorf("insert svc_observation node for legacy svc_observation %d: %w", legacyID, err)
		}
		if err := r.insertEdge(ctx, legacyEdgeID(graphmodel.EdgeServiceObservation, parentID, nodeID), graphmodel.EdgeServiceObservation, parentID, nodeID, evidenceArtifactID, createdAt); err != nil {
			return fmt.Errorf("insert service->svc_observation edge for legacy svc_observation %d: %w", legacyID, err)
		}
	}
	return rows.Err()
}
