package abuse_test

import (
	"context"
	"testing"

	"github.com/andrea-athirat/corda/internal/abuse"
)

func TestRuleBasedScorer_Score_clean(t *testing.T) {
	s := abuse.NewRuleBasedScorer()
	report, err := s.Score(context.Background(), []string{"O=Acme Corp,L=New York,C=US"}, []string{"https://node1.acme.example:10002"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.Rejected {
		t.Errorf("expected a clean publish not to be rejected, got score %d", report.Score)
	}
	if report.Severity != "none" {
		t.Errorf("Severity: got %q, want %q", report.Severity, "none")
	}
}

func TestRuleBasedScorer_Score_flagsHTTPAddress(t *testing.T) {
	s := abuse.NewRuleBasedScorer()
	report, err := s.Score(context.Background(), []string{"O=Acme Corp,L=New York,C=US"}, []string{"http://node1.acme.example:10002"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(report.Findings) == 0 {
		t.Fatal("expected at least one finding for a plaintext address")
	}
	found := false
	for _, f := range report.Findings {
		if f.Rule == "address_scheme" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an address_scheme finding, got %+v", report.Findings)
	}
}

func TestRuleBasedScorer_Score_flagsMalformedLegalName(t *testing.T) {
	s := abuse.NewRuleBasedScorer()
	report, err := s.Score(context.Background(), []string{"not a distinguished name"}, []string{"https://node1.acme.example:10002"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	found := false
	for _, f := range report.Findings {
		if f.Rule == "legal_name_malformed" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a legal_name_malformed finding, got %+v", report.Findings)
	}
}

func TestRuleBasedScorer_Score_flagsImpersonationKeyword(t *testing.T) {
	s := abuse.NewRuleBasedScorer()
	report, err := s.Score(context.Background(), []string{"CN=Network Map,O=Acme Corp"}, []string{"https://node1.acme.example:10002"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	found := false
	for _, f := range report.Findings {
		if f.Rule == "legal_name_keyword" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a legal_name_keyword finding, got %+v", report.Findings)
	}
}

func TestRuleBasedScorer_Score_rejectsWhenScoreCrossesThreshold(t *testing.T) {
	s := abuse.NewRuleBasedScorer()
	report, err := s.Score(context.Background(), []string{"", "", "CN=System Admin", "CN=Root CA"}, []string{"not-a-url", "http://node2.acme.example"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !report.Rejected {
		t.Errorf("expected publish to be rejected, got score %d with findings %+v", report.Score, report.Findings)
	}
}
