package abuse

import (
	"context"
	"net/url"
	"strings"
)

// ruleFunc inspects a publish request's legal identities and addresses and
// returns zero or more Findings if its rule matches.
type ruleFunc func(legalIdentities, addresses []string) []Finding

// RuleBasedScorer is the default Scorer implementation. It runs a fixed set
// of pattern-matching rules against the publish inputs and accumulates a
// score.
type RuleBasedScorer struct {
	rules []ruleFunc
}

// NewRuleBasedScorer returns a RuleBasedScorer loaded with the default rule set.
func NewRuleBasedScorer() *RuleBasedScorer {
	s := &RuleBasedScorer{}
	s.rules = []ruleFunc{
		ruleAddressScheme,
		ruleAddressMalformed,
		ruleLegalNameMalformed,
		ruleLegalNameKeywords,
	}
	return s
}

// Score implements Scorer.
func (s *RuleBasedScorer) Score(_ context.Context, legalIdentities, addresses []string) (*Report, error) {
	var findings []Finding
	for _, r := range s.rules {
		findings = append(findings, r(legalIdentities, addresses)...)
	}

	total := 0
	for _, f := range findings {
		total += int(f.Confidence * 25)
	}
	if total > 100 {
		total = 100
	}

	if findings == nil {
		findings = []Finding{}
	}

	return &Report{
		Score:    total,
		Severity: severityLabel(total),
		Findings: findings,
		Rejected: total >= 85,
	}, nil
}

// ── Rules ─────────────────────────────────────────────────────────────────────

// ruleAddressScheme flags non-TLS endpoint schemes outside of loopback.
func ruleAddressScheme(_, addresses []string) []Finding {
	var findings []Finding
	for _, addr := range addresses {
		lower := strings.ToLower(addr)
		if strings.HasPrefix(lower, "http://") && !strings.Contains(lower, "localhost") && !strings.Contains(lower, "127.0.0.1") {
			findings = append(findings, Finding{
				Rule:        "address_scheme",
				Description: "Address uses a non-HTTPS scheme: " + addr,
				Confidence:  0.4,
			})
		}
	}
	return findings
}

// ruleAddressMalformed flags addresses that don't parse as a URL with a host.
func ruleAddressMalformed(_, addresses []string) []Finding {
	var findings []Finding
	for _, addr := range addresses {
		u, err := url.Parse(addr)
		if err != nil || u.Host == "" {
			findings = append(findings, Finding{
				Rule:        "address_malformed",
				Description: "Address does not parse as a URL with a host: " + addr,
				Confidence:  0.6,
			})
		}
	}
	return findings
}

// ruleLegalNameMalformed flags legal identities that aren't a comma-separated
// list of RDN key=value pairs (the distinguished-name shape a certificate
// subject is expected to carry).
func ruleLegalNameMalformed(legalIdentities, _ []string) []Finding {
	var findings []Finding
	for _, id := range legalIdentities {
		if id == "" {
			findings = append(findings, Finding{
				Rule:        "legal_name_malformed",
				Description: "Legal identity is empty",
				Confidence:  0.8,
			})
			continue
		}
		wellFormed := true
		for _, rdn := range strings.Split(id, ",") {
			if !strings.Contains(rdn, "=") {
				wellFormed = false
				break
			}
		}
		if !wellFormed {
			findings = append(findings, Finding{
				Rule:        "legal_name_malformed",
				Description: "Legal identity is not a valid RDN sequence: " + id,
				Confidence:  0.7,
			})
		}
	}
	return findings
}

// suspiciousLegalNameKeywords are terms in a legal identity that suggest
// impersonation of zone infrastructure rather than a real node operator.
var suspiciousLegalNameKeywords = []string{
	"zone operator", "network map", "root ca", "intermediate ca", "admin",
	"system", "doorman", "notary",
}

func ruleLegalNameKeywords(legalIdentities, _ []string) []Finding {
	var findings []Finding
	for _, id := range legalIdentities {
		lower := strings.ToLower(id)
		for _, kw := range suspiciousLegalNameKeywords {
			if strings.Contains(lower, kw) {
				findings = append(findings, Finding{
					Rule:        "legal_name_keyword",
					Description: "Legal identity contains suspicious keyword: " + kw,
					Confidence:  0.6,
				})
				break
			}
		}
	}
	return findings
}
