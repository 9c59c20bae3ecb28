//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package token

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/verdict"
)

// AuditClass groups claim audit findings in report summaries.
const AuditClass policy.ActionClass = "token-claims"

// AuditConfig parameterizes the claim audit suite.
type AuditConfig struct {
	// ForbiddenClaims must never appear in a token payload; plaintext
	// identity data in a bearer token is an information leak.
	ForbiddenClaims []string
	// RequiredClaims are the business claims a portal token must carry.
	RequiredClaims []string
	// StandardClaims are the registered JWT claims expected on every token.
	StandardClaims []string
	// AllowedAlgorithms is the signing algorithm whitelist.
	AllowedAlgorithms []string
	// MaxLifetime bounds exp-iat.
	MaxLifetime time.Duration
	// MaxPayloadBytes bounds the serialized payload size.
	MaxPayloadBytes int
	// JTIPrefix is the expected replay-protection id format.
	JTIPrefix string
}

// DefaultAuditConfig returns the audit parameters matching the campus
// portal's token hardening requirements.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		ForbiddenClaims: []string{
			"username", "realName", "password", "email", "mobile",
			"phone", "idCard", "address", "departmentName", "className",
			"grade", "class", "birth", "gender",
		},
		RequiredClaims:    []string{"userId", "role"},
		StandardClaims:    []string{"iss", "aud", "sub", "exp", "iat", "jti"},
		AllowedAlgorithms: []string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512", "ES256"},
		MaxLifetime:       30 * time.Minute,
		MaxPayloadBytes:   500,
		JTIPrefix:         "jwt_v2_",
	}
}

// Audit runs every claim check against a decoded token and returns one
// finding per check. A leaked plaintext field is HIGH regardless of any
// probe's HTTP outcome; a disabled or unknown signing algorithm is
// CRITICAL; lifecycle and format defects are MEDIUM.
func Audit(roleName string, c *Claims, cfg AuditConfig, now time.Time) []verdict.Finding {
	findings := []verdict.Finding{
		auditForbidden(roleName, c, cfg),
		auditRequired(roleName, c, cfg),
		auditStandard(roleName, c, cfg),
		auditAlgorithm(roleName, c, cfg),
		auditLifecycle(roleName, c, cfg, now),
		auditJTI(roleName, c, cfg),
		auditSize(roleName, c, cfg),
	}
	return findings
}

func auditFinding(name, roleName string) verdict.Finding {
	return verdict.Finding{
		Name:           name,
		Role:           roleName,
		Class:          AuditClass,
		Classification: verdict.Pass,
	}
}

func fail(f verdict.Finding, sev verdict.Severity, detail string) verdict.Finding {
	f.Classification = verdict.Fail
	f.Severity = sev
	f.Detail = detail
	return f
}

func auditForbidden(roleName string, c *Claims, cfg AuditConfig) verdict.Finding {
	f := auditFinding("claims-sensitive-fields", roleName)

	var leaked []string
	for _, name := range cfg.ForbiddenClaims {
		if c.Has(name) {
			leaked = append(leaked, name)
		}
	}
	if len(leaked) > 0 {
		sort.Strings(leaked)
		return fail(f, verdict.SeverityHigh,
			fmt.Sprintf("payload leaks plaintext fields: %s", strings.Join(leaked, ", ")))
	}
	f.Detail = "payload carries no sensitive identity fields"
	return f
}

func auditRequired(roleName string, c *Claims, cfg AuditConfig) verdict.Finding {
	f := auditFinding("claims-required", roleName)
	if missing := missingClaims(c, cfg.RequiredClaims); len(missing) > 0 {
		return fail(f, verdict.SeverityMedium,
			fmt.Sprintf("missing business claims: %s", strings.Join(missing, ", ")))
	}
	return f
}

func auditStandard(roleName string, c *Claims, cfg AuditConfig) verdict.Finding {
	f := auditFinding("claims-standard", roleName)
	if missing := missingClaims(c, cfg.StandardClaims); len(missing) > 0 {
		return fail(f, verdict.SeverityMedium,
			fmt.Sprintf("missing standard claims: %s", strings.Join(missing, ", ")))
	}
	return f
}

func missingClaims(c *Claims, names []string) []string {
	var missing []string
	for _, name := range names {
		if !c.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func auditAlgorithm(roleName string, c *Claims, cfg AuditConfig) verdict.Finding {
	f := auditFinding("claims-algorithm", roleName)

	alg := strings.ToUpper(c.Algorithm())
	switch alg {
	case "", "NONE", "NULL":
		return fail(f, verdict.SeverityCritical,
			fmt.Sprintf("token declares bypassable algorithm %q", c.Algorithm()))
	}
	for _, allowed := range cfg.AllowedAlgorithms {
		if alg == allowed {
			f.Detail = fmt.Sprintf("algorithm %s", alg)
			return f
		}
	}
	return fail(f, verdict.SeverityHigh, fmt.Sprintf("algorithm %s outside the whitelist", alg))
}

func auditLifecycle(roleName string, c *Claims, cfg AuditConfig, now time.Time) verdict.Finding {
	f := auditFinding("claims-lifecycle", roleName)

	exp, hasExp := c.TimeClaim("exp")
	if !hasExp {
		return fail(f, verdict.SeverityHigh, "token has no expiry claim")
	}
	if exp.Before(now) {
		return fail(f, verdict.SeverityMedium, fmt.Sprintf("token expired at %s", exp.UTC().Format(time.RFC3339)))
	}

	iat, hasIat := c.TimeClaim("iat")
	if hasIat {
		if lifetime := exp.Sub(iat); lifetime > cfg.MaxLifetime {
			return fail(f, verdict.SeverityMedium,
				fmt.Sprintf("token lifetime %s exceeds the %s bound", lifetime, cfg.MaxLifetime))
		}
	}
	f.Detail = fmt.Sprintf("valid until %s", exp.UTC().Format(time.RFC3339))
	return f
}

func auditJTI(roleName string, c *Claims, cfg AuditConfig) verdict.Finding {
	f := auditFinding("claims-jti", roleName)

	jti, ok := c.StringClaim("jti")
	if !ok || jti == "" {
		return fail(f, verdict.SeverityMedium, "token has no replay-protection id (jti)")
	}
	if cfg.JTIPrefix != "" && !strings.HasPrefix(jti, cfg.JTIPrefix) {
		return fail(f, verdict.SeverityMedium,
			fmt.Sprintf("jti %q does not match the %q format", jti, cfg.JTIPrefix))
	}
	return f
}

func auditSize(roleName string, c *Claims, cfg AuditConfig) verdict.Finding {
	f := auditFinding("claims-size", roleName)

	size := c.PayloadSize()
	if cfg.MaxPayloadBytes > 0 && size > cfg.MaxPayloadBytes {
		return fail(f, verdict.SeverityMedium,
			fmt.Sprintf("payload is %d bytes, above the %d byte bound", size, cfg.MaxPayloadBytes))
	}
	f.Detail = fmt.Sprintf("payload is %d bytes", size)
	return f
}
