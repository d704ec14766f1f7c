package normalize

import (
	"context"
	"testing"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphstore"
)

func TestNormalizeEndToEndResolvesChain(t *testing.T) {
	ctx := context.Background()
	store, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()

	pr := ParseResult{
		Hosts: []HostRecord{{AuthorityKind: "IP", Authority: "192.0.2.1"}},
		Services: []ServiceRecord{{
			HostAuthority: "192.0.2.1", Transport: "tcp", Port: 443,
			AppProto: "https", ProtoConfidence: "high", State: "open",
		}},
		HTTPEndpoints: []EndpointRecord{{
			HostAuthority: "192.0.2.1", Port: 443, BaseURI: "https://192.0.2.1/",
			Method: "GET", Path: "/login",
		}},
		Inputs: []InputRecord{{
			HostAuthority: "192.0.2.1", Port: 443, Location: "query", Name: "user",
		}},
		EndpointInputs: []EndpointInputLink{{
			HostAuthority: "192.0.2.1", Port: 443, Method: "GET", Path: "/login",
			Location: "query", Name: "user",
		}},
		Observations: []ObservationRecord{{
			HostAuthority: "192.0.2.1", Port: 443, Location: "query", Name: "user",
			RawValue: "admin", NormValue: "admin", Source: "ffuf", Confidence: 0.9, ObservedAt: "2026-01-01T00:00:00Z",
		}},
		Vulnerabilities: []VulnerabilityRecord{{
			HostAuthority: "192.0.2.1", Port: 443, Method: "GET", Path: "/login",
			VulnType: "sqli", Title: "SQL injection in login", Severity: "critical", Confidence: 0.8,
		}},
		CVEs: []CVERecord{{VulnerabilityTitle: "SQL injection in login", CVEID: "CVE-2026-0001"}},
	}

	result, err := Normalize(ctx, store, 1, pr)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if result.HostsCreated != 1 || result.ServicesCreated != 1 || result.EndpointsCreated != 1 ||
		result.InputsCreated != 1 || result.EndpointInputEdges != 1 || result.ObservationsCreated != 1 ||
		result.VulnerabilitiesCreated != 1 || result.CVEsCreated != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	hosts, err := store.FindByKind(ctx, graphstore.NodeFilter{Kind: graphmodel.KindHost})
	if err != nil {
		t.Fatalf("FindByKind hosts: %v", err)
	}
	if len(hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(hosts))
	}

	cves, err := store.FindByKind(ctx, graphstore.NodeFilter{Kind: graphmodel.KindCVE})
	if err != nil {
		t.Fatalf("FindByKind cves: %v", err)
	}
	if len(cves) != 1 {
		t.Fatalf("expected 1 cve resolved through the vulnerability title map, got %d", len(cves))
	}
}

func TestNormalizeSkipsUnresolvableReferences(t *testing.T) {
	ctx := context.Background()
	store, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()

	pr := ParseResult{
		Observations: []ObservationRecord{{
			HostAuthority: "unknown-host", Port: 1, Location: "query", Name: "x", RawValue: "v", NormValue: "v",
			Source: "ffuf", Confidence: 0.5, ObservedAt: "2026-01-01T00:00:00Z",
		}},
		CVEs: []CVERecord{{VulnerabilityTitle: "no such vulnerability", CVEID: "CVE-2026-9999"}},
	}

	result, err := Normalize(ctx, store, 1, pr)
	if err != nil {
		t.Fatalf("Normalize should not error on unresolvable references: %v", err)
	}
	if result.ObservationsCreated != 0 || result.CVEsCreated != 0 {
		t.Fatalf("expected unresolvable references to be silently skipped, got %+v", result)
	}
}
