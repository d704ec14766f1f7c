// Package normalize implements the transactional batch upsert of an
// external parser's ParseResult into the property graph (spec §4.4, C5),
// resolving the parser's external keys (host authority, port, method, path,
// location, name, title) into internal node ids across nine arrays.
package normalize

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/idgen"
	"github.com/reconkg/engine/internal/kgerrors"
)

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ParseResult is the fixed shape an external collaborator (an nmap/ffuf/
// nuclei parser) hands the normalizer. Every array is keyed by the external
// identifiers named in spec §4.4, not by internal node ids.
type ParseResult struct {
	Hosts               []HostRecord
	Services            []ServiceRecord
	ServiceObservations []ServiceObservationRecord
	HTTPEndpoints       []EndpointRecord
	Inputs              []InputRecord
	EndpointInputs      []EndpointInputLink
	Observations        []ObservationRecord
	Vulnerabilities     []VulnerabilityRecord
	CVEs                []CVERecord
}

type HostRecord struct {
	AuthorityKind   string
	Authority       string
	ResolvedIPsJSON string
}

type ServiceRecord struct {
	HostAuthority   string
	Transport       string
	Port            int
	AppProto        string
	ProtoConfidence string
	State           string
	Banner          string
	Product         string
	Version         string
}

type ServiceObservationRecord struct {
	HostAuthority string
	Transport     string
	Port          int
	Key           string
	Value         string
	Confidence    float64
}

type EndpointRecord struct {
	HostAuthority string
	Port          int
	BaseURI       string
	Method        string
	Path          string
	StatusCode    int
	ContentLength int
	Words         int
	Lines         int
}

type InputRecord struct {
	HostAuthority string
	Port          int
	Location      string
	Name          string
	TypeHint      string
}

type EndpointInputLink struct {
	HostAuthority string
	Port          int
	Method        string
	Path          string
	Location      string
	Name          string
}

type ObservationRecord struct {
	HostAuthority string
	Port          int
	Location      string
	Name          string
	RawValue      string
	NormValue     string
	Source        string
	Confidence    float64
	ObservedAt    string
	BodyPath      string
}

type VulnerabilityRecord struct {
	HostAuthority string
	Port          int
	Method        string // optional, attaches to an endpoint instead of just the service
	Path          string
	VulnType      string
	Title         string
	Severity      string
	Confidence    float64
	Description   string
	Status        string
}

type CVERecord struct {
	VulnerabilityTitle string
	CVEID              string
	Description        string
	CVSSScore          float64
	CVSSVector         string
	ReferenceURL       string
}

// NormalizeResult counts the rows newly created (not merged into an
// existing row) per kind, per spec §4.4's "returns counts of newly-created
// rows per kind".
type NormalizeResult struct {
	HostsCreated               int
	ServicesCreated            int
	ServiceObservationsCreated int
	EndpointsCreated           int
	InputsCreated              int
	EndpointInputEdges         int
	ObservationsCreated        int
	VulnerabilitiesCreated     int
	CVEsCreated                int
}

// Normalize runs the nine-step processing pipeline of spec §4.4 inside a
// single transaction. Every write carries evidenceArtifactId = artifactID.
// References that cannot be resolved against an earlier step's lookup map
// are silently skipped (best-effort persistence), never an error.
func Normalize(ctx context.Context, store *graphstore.Store, artifactID int64, pr ParseResult) (*NormalizeResult, error) {
	tx, err := store.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin normalize transaction: %v", kgerrors.ErrStorage, err)
	}
	defer tx.Rollback()

	evidence := &artifactID
	result := &NormalizeResult{}

	hostOf := map[string]string{}          // authority -> nodeId
	serviceOf := map[serviceKey]string{}   // (hostId, transport, port) -> nodeId
	endpointOf := map[endpointKey]string{} // (serviceId, method, path) -> nodeId
	inputOf := map[inputKey]string{}       // (serviceId, location, name) -> nodeId
	vulnOf := map[string]string{}          // title -> nodeId

	// 1. hosts
	for _, h := range pr.Hosts {
		props := map[string]any{"authorityKind": h.AuthorityKind, "authority": h.Authority}
		if h.ResolvedIPsJSON != "" {
			props["resolvedIpsJson"] = h.ResolvedIPsJSON
		}
		id, created, err := upsertTx(ctx, tx, graphmodel.KindHost, props, "", evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize host %q: %w", h.Authority, err)
		}
		hostOf[h.Authority] = id
		if created {
			result.HostsCreated++
		}
	}

	// 2. services
	for _, sv := range pr.Services {
		hostID, ok := hostOf[sv.HostAuthority]
		if !ok {
			continue
		}
		props := map[string]any{
			"transport": sv.Transport, "port": float64(sv.Port), "appProto": sv.AppProto,
			"protoConfidence": sv.ProtoConfidence, "state": sv.State,
			"banner": sv.Banner, "product": sv.Product, "version": sv.Version,
		}
		id, created, err := upsertTx(ctx, tx, graphmodel.KindService, props, hostID, evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize service %s:%d: %w", sv.HostAuthority, sv.Port, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeHostService, hostID, id, evidence); err != nil {
			return nil, err
		}
		serviceOf[serviceKey{hostID, sv.Transport, sv.Port}] = id
		if created {
			result.ServicesCreated++
		}
	}

	// 3. service_observations
	for _, so := range pr.ServiceObservations {
		hostID, ok := hostOf[so.HostAuthority]
		if !ok {
			continue
		}
		serviceID, ok := serviceOf[serviceKey{hostID, so.Transport, so.Port}]
		if !ok {
			continue
		}
		props := map[string]any{"key": so.Key, "value": so.Value, "confidence": so.Confidence}
		id, created, err := upsertTx(ctx, tx, graphmodel.KindSvcObservation, props, "", evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize service_observation %s: %w", so.Key, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeServiceObservation, serviceID, id, evidence); err != nil {
			return nil, err
		}
		if created {
			result.ServiceObservationsCreated++
		}
	}

	// 4. http_endpoints (services are tcp in this flow)
	for _, ep := range pr.HTTPEndpoints {
		hostID, ok := hostOf[ep.HostAuthority]
		if !ok {
			continue
		}
		serviceID, ok := serviceOf[serviceKey{hostID, "tcp", ep.Port}]
		if !ok {
			continue
		}
		props := map[string]any{
			"baseUri": ep.BaseURI, "method": ep.Method, "path": ep.Path,
			"statusCode": float64(ep.StatusCode), "contentLength": float64(ep.ContentLength),
			"words": float64(ep.Words), "lines": float64(ep.Lines),
		}
		id, created, err := upsertTx(ctx, tx, graphmodel.KindEndpoint, props, serviceID, evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize endpoint %s %s: %w", ep.Method, ep.Path, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeServiceEndpoint, serviceID, id, evidence); err != nil {
			return nil, err
		}
		endpointOf[endpointKey{serviceID, ep.Method, ep.Path}] = id
		if created {
			result.EndpointsCreated++
		}
	}

	// 5. inputs
	for _, in := range pr.Inputs {
		hostID, ok := hostOf[in.HostAuthority]
		if !ok {
			continue
		}
		serviceID, ok := serviceOf[serviceKey{hostID, "tcp", in.Port}]
		if !ok {
			continue
		}
		props := map[string]any{"location": in.Location, "name": in.Name, "typeHint": in.TypeHint}
		id, created, err := upsertTx(ctx, tx, graphmodel.KindInput, props, serviceID, evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize input %s/%s: %w", in.Location, in.Name, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeServiceInput, serviceID, id, evidence); err != nil {
			return nil, err
		}
		inputOf[inputKey{serviceID, in.Location, in.Name}] = id
		if created {
			result.InputsCreated++
		}
	}

	// 6. endpoint_inputs
	for _, link := range pr.EndpointInputs {
		hostID, ok := hostOf[link.HostAuthority]
		if !ok {
			continue
		}
		serviceID, ok := serviceOf[serviceKey{hostID, "tcp", link.Port}]
		if !ok {
			continue
		}
		endpointID, ok := endpointOf[endpointKey{serviceID, link.Method, link.Path}]
		if !ok {
			continue
		}
		inputID, ok := inputOf[inputKey{serviceID, link.Location, link.Name}]
		if !ok {
			continue
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeEndpointInput, endpointID, inputID, evidence); err != nil {
			return nil, err
		}
		result.EndpointInputEdges++
	}

	// 7. observations (always created fresh; UUID natural key)
	for _, ob := range pr.Observations {
		hostID, ok := hostOf[ob.HostAuthority]
		if !ok {
			continue
		}
		serviceID, ok := serviceOf[serviceKey{hostID, "tcp", ob.Port}]
		if !ok {
			continue
		}
		inputID, ok := inputOf[inputKey{serviceID, ob.Location, ob.Name}]
		if !ok {
			continue
		}
		props := map[string]any{
			"rawValue": ob.RawValue, "normValue": ob.NormValue, "source": ob.Source,
			"confidence": ob.Confidence, "observedAt": ob.ObservedAt, "bodyPath": ob.BodyPath,
		}
		id, _, err := upsertTx(ctx, tx, graphmodel.KindObservation, props, "", evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize observation on %s/%s: %w", ob.Location, ob.Name, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeInputObservation, inputID, id, evidence); err != nil {
			return nil, err
		}
		result.ObservationsCreated++ // always fresh, per spec §4.2's UUID-natural-key note
	}

	// 8. vulnerabilities (attach to service, optionally to endpoint)
	for _, v := range pr.Vulnerabilities {
		hostID, ok := hostOf[v.HostAuthority]
		if !ok {
			continue
		}
		serviceID, ok := serviceOf[serviceKey{hostID, "tcp", v.Port}]
		if !ok {
			continue
		}
		props := map[string]any{
			"vulnType": v.VulnType, "title": v.Title, "severity": v.Severity,
			"confidence": v.Confidence, "description": v.Description, "status": v.Status,
		}
		id, _, err := upsertTx(ctx, tx, graphmodel.KindVulnerability, props, "", evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize vulnerability %q: %w", v.Title, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeServiceVulnerability, serviceID, id, evidence); err != nil {
			return nil, err
		}
		if v.Method != "" && v.Path != "" {
			if endpointID, ok := endpointOf[endpointKey{serviceID, v.Method, v.Path}]; ok {
				if err := edgeTx(ctx, tx, graphmodel.EdgeEndpointVulnerability, endpointID, id, evidence); err != nil {
					return nil, err
				}
			}
		}
		vulnOf[v.Title] = id
		result.VulnerabilitiesCreated++ // always fresh, per spec §4.2's UUID-natural-key note
	}

	// 9. cves (resolve parent vulnerability by title through step 8's map)
	for _, c := range pr.CVEs {
		vulnID, ok := vulnOf[c.VulnerabilityTitle]
		if !ok {
			continue
		}
		props := map[string]any{
			"cveId": c.CVEID, "description": c.Description,
			"cvssScore": c.CVSSScore, "cvssVector": c.CVSSVector, "referenceUrl": c.ReferenceURL,
		}
		id, created, err := upsertTx(ctx, tx, graphmodel.KindCVE, props, vulnID, evidence)
		if err != nil {
			return nil, fmt.Errorf("normalize cve %q: %w", c.CVEID, err)
		}
		if err := edgeTx(ctx, tx, graphmodel.EdgeVulnerabilityCVE, vulnID, id, evidence); err != nil {
			return nil, err
		}
		if created {
			result.CVEsCreated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit normalize transaction: %v", kgerrors.ErrStorage, err)
	}
	return result, nil
}

type serviceKey struct {
	hostID    string
	transport string
	port      int
}

type endpointKey struct {
	serviceID string
	method    string
	path      string
}

type inputKey struct {
	serviceID string
	location  string
	name      string
}

// upsertTx mirrors graphstore's upsert semantics directly against a shared
// transaction, so the normalizer's nine steps commit atomically (spec §4.4's
// "runs in a single transaction").
func upsertTx(ctx context.Context, tx *sql.Tx, kind graphmodel.NodeKind, props map[string]any, parentID string, evidenceArtifactID *int64) (id string, created bool, err error) {
	validated, err := graphmodel.Validate(kind, props)
	if err != nil {
		return "", false, kgerrors.NewValidation(string(kind), "props", err.Error())
	}

	freshUUID := ""
	if graphmodel.NeedsFreshUUID(kind) {
		freshUUID = idgen.NewUUID()
	}
	naturalKey, err := graphmodel.DeriveNaturalKey(kind, validated, parentID, freshUUID)
	if err != nil {
		return "", false, kgerrors.NewValidation(string(kind), "parentId", err.Error())
	}

	if !graphmodel.NeedsFreshUUID(kind) {
		row := tx.QueryRowContext(ctx, `SELECT id, props_json FROM nodes WHERE natural_key = ?`, naturalKey)
		var existingID, existingPropsJSON string
		err := row.Scan(&existingID, &existingPropsJSON)
		if err == nil {
			var existingProps map[string]any
			if err := json.Unmarshal([]byte(existingPropsJSON), &existingProps); err != nil {
				return "", false, fmt.Errorf("unmarshal existing props: %w", err)
			}
			merged := graphmodel.MergeProps(existingProps, validated)
			mergedJSON, err := json.Marshal(merged)
			if err != nil {
				return "", false, fmt.Errorf("marshal merged props: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE nodes SET props_json = ?, evidence_artifact_id = ?, updated_at = ? WHERE id = ?
			`, string(mergedJSON), evidenceArtifactID, nowRFC3339(), existingID); err != nil {
				return "", false, fmt.Errorf("%w: update node: %v", kgerrors.ErrStorage, err)
			}
			return existingID, false, nil
		}
		if err != sql.ErrNoRows {
			return "", false, fmt.Errorf("%w: lookup natural key: %v", kgerrors.ErrStorage, err)
		}
	}

	newID := idgen.New()
	propsJSON, err := json.Marshal(validated)
	if err != nil {
		return "", false, fmt.Errorf("marshal props: %w", err)
	}
	now := nowRFC3339()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, natural_key, props_json, evidence_artifact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, newID, string(kind), naturalKey, string(propsJSON), evidenceArtifactID, now, now); err != nil {
		return "", false, fmt.Errorf("%w: insert node: %v", kgerrors.ErrStorage, err)
	}
	return newID, true, nil
}

func edgeTx(ctx context.Context, tx *sql.Tx, kind graphmodel.EdgeKind, sourceID, targetID string, evidenceArtifactID *int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO edges (id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at)
		VALUES (?, ?, ?, ?, '{}', ?, ?)
		ON CONFLICT(kind, source_id, target_id) DO NOTHING
	`, idgen.New(), string(kind), sourceID, targetID, evidenceArtifactID, nowRFC3339())
	if err != nil {
		return fmt.Errorf("%w: insert edge %s: %v", kgerrors.ErrStorage, kind, err)
	}
	return nil
}
